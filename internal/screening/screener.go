package screening

import (
	"context"
	"fmt"
	"time"

	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/internal/scoring"
	"github.com/mwhitt/alphascreen/pkg/logger"
)

// Store is the persistence surface the screening pass needs.
type Store interface {
	// GetCriteria returns the screen configuration or a NotFoundError.
	GetCriteria(ctx context.Context, screenID int64) (*contracts.ScreenCriteria, error)

	// ListSnapshots returns the current stock universe.
	ListSnapshots(ctx context.Context) ([]contracts.StockSnapshot, error)

	// UpsertWatchlistEntry inserts or refreshes an entry keyed on
	// (ticker, screen_id). Returns true when a new row was inserted.
	UpsertWatchlistEntry(ctx context.Context, entry *contracts.WatchlistEntry) (bool, error)

	// AcquireRefreshLock transitions the refresh lock to RUNNING or
	// returns a PersistenceConflictError when a refresh is in progress.
	AcquireRefreshLock(ctx context.Context) error

	// ReleaseRefreshLock returns the lock to idle.
	ReleaseRefreshLock(ctx context.Context) error
}

// Result summarizes one screening pass so partial success is observable.
type Result struct {
	ScreenID  int64 `json:"screen_id"`
	Processed int   `json:"processed"`
	Qualified int   `json:"qualified"`
	Updated   int   `json:"updated"`
	Inserted  int   `json:"inserted"`
	Skipped   int   `json:"skipped"`
}

// Screener applies the factor scorer across the stock universe and keeps
// the watchlist for a screen current.
//
// Policy: tickers that stop qualifying are NOT removed here. Removal is an
// explicit watchlist operation, so manually curated entries are never lost
// by a routine refresh.
type Screener struct {
	store  Store
	scorer *scoring.Scorer
	logger *logger.Logger
}

// NewScreener creates a new screener.
func NewScreener(store Store, scorer *scoring.Scorer, log *logger.Logger) *Screener {
	return &Screener{
		store:  store,
		scorer: scorer,
		logger: log,
	}
}

// Run executes one screening pass for a screen. A missing criteria record
// fails the pass; individual snapshot problems are counted in Skipped and
// never abort it.
func (s *Screener) Run(ctx context.Context, screenID int64) (*Result, error) {
	criteria, err := s.store.GetCriteria(ctx, screenID)
	if err != nil {
		return nil, err
	}

	if err := s.store.AcquireRefreshLock(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.store.ReleaseRefreshLock(ctx); err != nil {
			s.logger.WithError(err).Warn("Failed to release refresh lock")
		}
	}()

	snapshots, err := s.store.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stock universe: %w", err)
	}

	result := &Result{ScreenID: screenID}
	now := time.Now()

	for i := range snapshots {
		snap := &snapshots[i]

		if snap.HasError {
			result.Skipped++
			continue
		}

		result.Processed++

		score := s.scorer.Score(snap, criteria)
		if !scoring.Qualifies(score, criteria) {
			continue
		}

		entry := &contracts.WatchlistEntry{
			Ticker:    snap.Symbol,
			ScreenID:  screenID,
			Score:     scoring.ClampForStorage(score),
			Price:     snap.Price,
			PE:        snap.PE,
			MarketCap: snap.MarketCap,
			DateAdded: now,
			UpdatedAt: now,
		}

		inserted, err := s.store.UpsertWatchlistEntry(ctx, entry)
		if err != nil {
			s.logger.WithFields(map[string]interface{}{
				"ticker": snap.Symbol,
				"screen": screenID,
				"error":  err.Error(),
			}).Warn("Watchlist upsert failed, skipping ticker")
			result.Skipped++
			continue
		}

		result.Qualified++
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"screen":    screenID,
		"processed": result.Processed,
		"qualified": result.Qualified,
		"updated":   result.Updated,
		"inserted":  result.Inserted,
		"skipped":   result.Skipped,
	}).Info("Screening pass completed")

	return result, nil
}
