package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mwhitt/alphascreen/internal/scheduler"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the scheduled jobs without the API server",
	Long: `Runs the screening refresh, run watchdog and earnings-calendar sync
on their cron schedules until interrupted.`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

// registerJobs wires the standard job set: hourly weekday watchlist
// refresh, five-minute run watchdog, pre-open calendar sync.
func registerJobs(a *app, sched *scheduler.Scheduler) error {
	if err := scheduler.RegisterScreeningRefresh(sched, "0 * * * 1-5", a.screens, a.screener, a.logger); err != nil {
		return err
	}
	if err := scheduler.RegisterRunWatchdog(sched, "*/5 * * * *", a.runs, a.cfg.Engine.WatchdogStaleAfter, a.logger); err != nil {
		return err
	}
	return scheduler.RegisterCalendarSync(sched, "0 8 * * 1-5", a.calendar, a.earnings, a.logger)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	sched := scheduler.New(a.logger)
	if err := registerJobs(a, sched); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	fmt.Println("Scheduler running. Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	return nil
}
