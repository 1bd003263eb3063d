package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/internal/orchestrator"
)

var (
	papertradeCapital float64
	papertradeMaxPos  int
	papertradeStopPct float64
	papertradeResume  int64
)

var papertradeCmd = &cobra.Command{
	Use:   "papertrade [screen-id]",
	Short: "Start a live paper-trading run",
	Long: `Opens positions from the screen's watchlist and manages them against
real-time quotes until every position exits or the process is interrupted.
Interrupting stops the run gracefully between ticks.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPapertrade,
}

func init() {
	papertradeCmd.Flags().Float64Var(&papertradeCapital, "capital", 100000, "starting capital")
	papertradeCmd.Flags().IntVar(&papertradeMaxPos, "max-positions", 0, "max concurrent positions (0 = config default)")
	papertradeCmd.Flags().Float64Var(&papertradeStopPct, "stop-pct", 0, "trailing stop percent (0 = config default)")
	papertradeCmd.Flags().Int64Var(&papertradeResume, "resume", 0, "resume an existing RUNNING live run by id")
}

func runPapertrade(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	var run *contracts.Run
	if papertradeResume > 0 {
		run, err = a.orch.ResumeRun(ctx, papertradeResume)
		if err != nil {
			return err
		}
		fmt.Printf("Resumed live run %d\n", run.ID)
	} else {
		if len(args) != 1 {
			return fmt.Errorf("screen-id is required unless --resume is given")
		}
		screenID, err := parseID(args[0], "screen-id")
		if err != nil {
			return err
		}

		req := orchestrator.BacktestRequest{
			ScreenID:        screenID,
			StartingCapital: papertradeCapital,
			MaxPositions:    papertradeMaxPos,
			TrailingStopPct: papertradeStopPct,
		}
		if req.MaxPositions == 0 {
			req.MaxPositions = a.cfg.Engine.MaxPositions
		}
		if req.TrailingStopPct == 0 {
			req.TrailingStopPct = a.cfg.Engine.TrailingStopPct
		}

		run, err = a.orch.StartPaperTrade(ctx, req)
		if err != nil {
			return err
		}
		fmt.Printf("Live run %d started\n", run.ID)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	poll := time.NewTicker(5 * time.Second)
	defer poll.Stop()

	for {
		select {
		case <-sigCh:
			fmt.Println("Stop requested, finishing current tick...")
			if err := a.orch.StopRun(ctx, run.ID); err != nil {
				return err
			}

		case <-poll.C:
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
}

func printRunSummary(run *contracts.Run) {
	fmt.Printf("Run %d %s\n", run.ID, run.Status)
	if run.Error != "" {
		fmt.Printf("  error: %s\n", run.Error)
	}
	fmt.Printf("  capital: %.2f -> %.2f (%+.2f%%)\n",
		run.StartingCapital, run.FinalCapital, run.TotalReturnPct)
	fmt.Printf("  trades: %d (won %d, lost %d, win rate %.1f%%)\n",
		run.TotalTrades, run.WinningTrades, run.LosingTrades, run.WinRate)
	fmt.Printf("  avg win %.2f, avg loss %.2f, avg hold %.2f days\n",
		run.AvgWinAmount, run.AvgLossAmount, run.AvgHoldTimeDays)
}
