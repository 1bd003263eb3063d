package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var positionCmd = &cobra.Command{
	Use:   "position",
	Short: "Manage positions",
}

var positionSellCmd = &cobra.Command{
	Use:   "sell [position-id]",
	Short: "Close an open position at the current market price",
	Args:  cobra.ExactArgs(1),
	RunE:  runPositionSell,
}

func init() {
	positionCmd.AddCommand(positionSellCmd)
}

func runPositionSell(cmd *cobra.Command, args []string) error {
	positionID, err := parseID(args[0], "position-id")
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	trade, err := a.orch.SellPosition(context.Background(), positionID)
	if err != nil {
		return err
	}

	fmt.Printf("Sold %s: %d @ %.2f, realized P&L %.2f\n",
		trade.Ticker, trade.Quantity, trade.ExitPrice, trade.RealizedPnL)

	return nil
}
