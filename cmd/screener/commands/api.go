package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwhitt/alphascreen/internal/api"
	"github.com/mwhitt/alphascreen/internal/scheduler"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the HTTP API with scheduled screening refresh and run watchdog",
	RunE:  runAPI,
}

func runAPI(cmd *cobra.Command, args []string) error {
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

	server := api.NewServer(a.cfg, a.orch, a.screens, sched, a.db, a.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		a.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
