package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var screenCmd = &cobra.Command{
	Use:   "screen [screen-id]",
	Short: "Run one screening pass for a screen",
	Args:  cobra.ExactArgs(1),
	RunE:  runScreen,
}

func runScreen(cmd *cobra.Command, args []string) error {
	screenID, err := parseID(args[0], "screen-id")
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.orch.RunScreening(context.Background(), screenID)
	if err != nil {
		return err
	}

	fmt.Printf("Screen %d: processed=%d qualified=%d inserted=%d updated=%d skipped=%d\n",
		result.ScreenID, result.Processed, result.Qualified,
		result.Inserted, result.Updated, result.Skipped)

	return nil
}
