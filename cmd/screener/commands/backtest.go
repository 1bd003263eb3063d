package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwhitt/alphascreen/internal/orchestrator"
)

var (
	backtestStart    string
	backtestEnd      string
	backtestCapital  float64
	backtestMaxPos   int
	backtestStopPct  float64
	backtestWaitPoll = 2 * time.Second
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [screen-id]",
	Short: "Run a historical backtest over a screen's watchlist",
	Args:  cobra.ExactArgs(1),
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestStart, "start", "", "start date (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&backtestEnd, "end", "", "end date (YYYY-MM-DD)")
	backtestCmd.Flags().Float64Var(&backtestCapital, "capital", 100000, "starting capital")
	backtestCmd.Flags().IntVar(&backtestMaxPos, "max-positions", 0, "max concurrent positions (0 = config default)")
	backtestCmd.Flags().Float64Var(&backtestStopPct, "stop-pct", 0, "trailing stop percent (0 = config default)")
	_ = backtestCmd.MarkFlagRequired("start")
	_ = backtestCmd.MarkFlagRequired("end")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	screenID, err := parseID(args[0], "screen-id")
	if err != nil {
		return err
	}

	start, err := time.Parse("2006-01-02", backtestStart)
	if err != nil {
		return fmt.Errorf("invalid --start %q: use YYYY-MM-DD", backtestStart)
	}
	end, err := time.Parse("2006-01-02", backtestEnd)
	if err != nil {
		return fmt.Errorf("invalid --end %q: use YYYY-MM-DD", backtestEnd)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	req := orchestrator.BacktestRequest{
		ScreenID:        screenID,
		StartDate:       start,
		EndDate:         end,
		StartingCapital: backtestCapital,
		MaxPositions:    backtestMaxPos,
		TrailingStopPct: backtestStopPct,
	}
	if req.MaxPositions == 0 {
		req.MaxPositions = a.cfg.Engine.MaxPositions
	}
	if req.TrailingStopPct == 0 {
		req.TrailingStopPct = a.cfg.Engine.TrailingStopPct
	}

	ctx := context.Background()

	run, err := a.orch.StartBacktest(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("Backtest run %d started (%s to %s)\n", run.ID, backtestStart, backtestEnd)

	// Poll until the background simulation reaches a terminal state.
	for {
		time.Sleep(backtestWaitPoll)

		current, err := a.orch.GetRun(ctx, run.ID)
		if err != nil {
			return err
		}
		if current.Status.Terminal() {
			printRunSummary(current)
			return nil
		}
	}
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}
