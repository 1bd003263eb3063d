package scheduler

import (
	"context"
	"time"

	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/internal/screening"
	"github.com/mwhitt/alphascreen/pkg/logger"
)

// ScreenLister enumerates active screens for the refresh job.
type ScreenLister interface {
	ListActiveScreens(ctx context.Context) ([]int64, error)
}

// RunReaper fails RUNNING runs that stopped making progress.
type RunReaper interface {
	MarkStaleRunsFailed(ctx context.Context, staleAfter time.Duration) ([]int64, error)
}

// CalendarFetcher pulls one day of the earnings calendar.
type CalendarFetcher interface {
	FetchDay(ctx context.Context, day time.Time) ([]contracts.EarningsRecord, error)
}

// EarningsWriter persists fetched calendar records.
type EarningsWriter interface {
	UpsertEarnings(ctx context.Context, rec *contracts.EarningsRecord) error
}

// Screening runner for the refresh job; a refresh-in-progress conflict is
// expected under overlap and treated as success.
type screenRunner interface {
	Run(ctx context.Context, screenID int64) (*screening.Result, error)
}

// RegisterScreeningRefresh refreshes every active screen's watchlist.
func RegisterScreeningRefresh(s *Scheduler, spec string, screens ScreenLister, runner screenRunner, log *logger.Logger) error {
	return s.AddJob("screening-refresh", spec, func(ctx context.Context) error {
		ids, err := screens.ListActiveScreens(ctx)
		if err != nil {
			return err
		}

		for _, id := range ids {
			if _, err := runner.Run(ctx, id); err != nil {
				if contracts.IsConflict(err) {
					log.WithField("screen", id).Warn("Refresh already running, skipping screen")
					continue
				}
				return err
			}
		}

		return nil
	})
}

// RegisterRunWatchdog reaps RUNNING runs whose updated_at went stale, so
// crashed processes cannot leave runs stuck forever.
func RegisterRunWatchdog(s *Scheduler, spec string, reaper RunReaper, staleAfter time.Duration, log *logger.Logger) error {
	return s.AddJob("run-watchdog", spec, func(ctx context.Context) error {
		ids, err := reaper.MarkStaleRunsFailed(ctx, staleAfter)
		if err != nil {
			return err
		}

		if len(ids) > 0 {
			log.WithFields(map[string]interface{}{
				"count":   len(ids),
				"run_ids": ids,
			}).Warn("Marked stale runs as failed")
		}

		return nil
	})
}

// RegisterCalendarSync ingests today's earnings calendar.
func RegisterCalendarSync(s *Scheduler, spec string, fetcher CalendarFetcher, writer EarningsWriter, log *logger.Logger) error {
	return s.AddJob("earnings-calendar-sync", spec, func(ctx context.Context) error {
		records, err := fetcher.FetchDay(ctx, time.Now())
		if err != nil {
			return err
		}

		for i := range records {
			if err := writer.UpsertEarnings(ctx, &records[i]); err != nil {
				return err
			}
		}

		log.WithField("count", len(records)).Info("Earnings calendar synced")
		return nil
	})
}
