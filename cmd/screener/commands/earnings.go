package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var earningsDate string

var earningsCmd = &cobra.Command{
	Use:   "earnings [screen-id]",
	Short: "Identify earnings beat opportunities on a screen's watchlist",
	Args:  cobra.ExactArgs(1),
	RunE:  runEarnings,
}

func init() {
	earningsCmd.Flags().StringVar(&earningsDate, "date", "", "calendar day (YYYY-MM-DD, default today)")
}

func runEarnings(cmd *cobra.Command, args []string) error {
	screenID, err := parseID(args[0], "screen-id")
	if err != nil {
		return err
	}

	var day time.Time
	if earningsDate != "" {
		day, err = time.Parse("2006-01-02", earningsDate)
		if err != nil {
			return fmt.Errorf("invalid --date %q: use YYYY-MM-DD", earningsDate)
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	opportunities, summary, err := a.orch.IdentifyEarningsOpportunities(context.Background(), screenID, day)
	if err != nil {
		return err
	}

	fmt.Printf("Calendar: scheduled=%d reported=%d beats=%d misses=%d pending=%d\n",
		summary.Scheduled, summary.Reported, summary.Beats, summary.Misses, summary.Pending)

	if len(opportunities) == 0 {
		fmt.Println("No opportunities found.")
		return nil
	}

	fmt.Printf("%-8s %-8s %-10s %-10s %s\n", "TICKER", "SCORE", "EST EPS", "ACT EPS", "SURPRISE")
	for _, opp := range opportunities {
		fmt.Printf("%-8s %-8.2f %-10.2f %-10.2f %+.1f%%\n",
			opp.Ticker, opp.Score, opp.EstimatedEPS, opp.ActualEPS, opp.Surprise)
	}

	return nil
}
