package earnings

import (
	"context"
	"time"

	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/pkg/logger"
)

// Store is the persistence surface for earnings detection.
type Store interface {
	// ListWatchlist returns the watchlist for a screen ordered by score.
	ListWatchlist(ctx context.Context, screenID int64) ([]contracts.WatchlistEntry, error)

	// ListEarningsForDate returns all earnings records for one calendar day.
	ListEarningsForDate(ctx context.Context, day time.Time) ([]contracts.EarningsRecord, error)

	// UpsertEarnings inserts or refreshes a calendar record keyed on
	// (symbol, earnings_date).
	UpsertEarnings(ctx context.Context, rec *contracts.EarningsRecord) error
}

// ScreenStore resolves screen criteria; the detector only needs the
// per-screen surprise threshold.
type ScreenStore interface {
	GetCriteria(ctx context.Context, screenID int64) (*contracts.ScreenCriteria, error)
}

// Detector cross-references a screen's watchlist against the earnings
// calendar and flags beats above the screen's surprise threshold.
type Detector struct {
	store   Store
	screens ScreenStore
	logger  *logger.Logger

	// Fallback when a screen does not configure its own threshold.
	defaultMinSurprise float64
}

// NewDetector creates a new earnings beat detector.
func NewDetector(store Store, screens ScreenStore, defaultMinSurprise float64, log *logger.Logger) *Detector {
	return &Detector{
		store:              store,
		screens:            screens,
		defaultMinSurprise: defaultMinSurprise,
		logger:             log,
	}
}

// Identify returns the watchlist tickers that reported an earnings beat on
// the given day with a surprise at or above the screen's threshold, plus a
// summary of the watchlist's calendar day. Records for tickers not on the
// watchlist are ignored entirely. A zero day means today.
func (d *Detector) Identify(ctx context.Context, screenID int64, day time.Time) ([]contracts.EarningsOpportunity, *contracts.EarningsSummary, error) {
	if day.IsZero() {
		day = time.Now()
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	criteria, err := d.screens.GetCriteria(ctx, screenID)
	if err != nil {
		return nil, nil, err
	}

	minSurprise := d.defaultMinSurprise
	if criteria.MinEarningsSurprise > 0 {
		minSurprise = criteria.MinEarningsSurprise
	}

	watchlist, err := d.store.ListWatchlist(ctx, screenID)
	if err != nil {
		return nil, nil, err
	}

	records, err := d.store.ListEarningsForDate(ctx, day)
	if err != nil {
		return nil, nil, err
	}

	byTicker := make(map[string]*contracts.WatchlistEntry, len(watchlist))
	for i := range watchlist {
		byTicker[watchlist[i].Ticker] = &watchlist[i]
	}

	summary := &contracts.EarningsSummary{}
	opportunities := make([]contracts.EarningsOpportunity, 0)

	for i := range records {
		rec := &records[i]

		entry, onWatchlist := byTicker[rec.Symbol]
		if !onWatchlist {
			continue
		}
		summary.Scheduled++

		if !rec.Reported() {
			summary.Pending++
			continue
		}
		summary.Reported++

		if rec.Beat != nil && *rec.Beat {
			summary.Beats++
		} else {
			summary.Misses++
			continue
		}

		if rec.Surprise == nil || *rec.Surprise < minSurprise {
			continue
		}

		opportunities = append(opportunities, contracts.EarningsOpportunity{
			Ticker:       rec.Symbol,
			ScreenID:     screenID,
			Score:        entry.Score,
			EarningsDate: rec.EarningsDate,
			EstimatedEPS: rec.EstimatedEPS,
			ActualEPS:    *rec.ActualEPS,
			Surprise:     *rec.Surprise,
		})
	}

	d.logger.WithFields(map[string]interface{}{
		"screen":        screenID,
		"date":          day.Format("2006-01-02"),
		"scheduled":     summary.Scheduled,
		"beats":         summary.Beats,
		"opportunities": len(opportunities),
	}).Info("Earnings opportunities identified")

	return opportunities, summary, nil
}

// Record applies a reported actual EPS to a calendar record and persists
// the computed beat flag and surprise.
func (d *Detector) Record(ctx context.Context, symbol string, earningsDate time.Time, actualEPS float64) (*contracts.EarningsRecord, error) {
	records, err := d.store.ListEarningsForDate(ctx, earningsDate)
	if err != nil {
		return nil, err
	}

	var rec *contracts.EarningsRecord
	for i := range records {
		if records[i].Symbol == symbol {
			rec = &records[i]
			break
		}
	}
	if rec == nil {
		return nil, contracts.NewNotFound("earnings record", symbol)
	}

	rec.ApplyActual(actualEPS)

	if err := d.store.UpsertEarnings(ctx, rec); err != nil {
		return nil, err
	}

	return rec, nil
}
