package earnings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/pkg/logger"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type fakeStore struct {
	watchlist []contracts.WatchlistEntry
	records   []contracts.EarningsRecord
	upserted  []contracts.EarningsRecord
}

func (s *fakeStore) ListWatchlist(ctx context.Context, screenID int64) ([]contracts.WatchlistEntry, error) {
	return s.watchlist, nil
}

func (s *fakeStore) ListEarningsForDate(ctx context.Context, d time.Time) ([]contracts.EarningsRecord, error) {
	return s.records, nil
}

func (s *fakeStore) UpsertEarnings(ctx context.Context, rec *contracts.EarningsRecord) error {
	s.upserted = append(s.upserted, *rec)
	return nil
}

type fakeScreens struct {
	criteria *contracts.ScreenCriteria
	err      error
}

func (s *fakeScreens) GetCriteria(ctx context.Context, screenID int64) (*contracts.ScreenCriteria, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.criteria, nil
}

func reported(symbol string, est, actual float64) contracts.EarningsRecord {
	rec := contracts.EarningsRecord{Symbol: symbol, EarningsDate: day, EstimatedEPS: est}
	rec.ApplyActual(actual)
	return rec
}

func scheduled(symbol string, est float64) contracts.EarningsRecord {
	return contracts.EarningsRecord{Symbol: symbol, EarningsDate: day, EstimatedEPS: est}
}

func TestIdentifyOpportunities(t *testing.T) {
	store := &fakeStore{
		watchlist: []contracts.WatchlistEntry{
			{Ticker: "AAPL", ScreenID: 1, Score: 8.5},
			{Ticker: "MSFT", ScreenID: 1, Score: 7.0},
			{Ticker: "NVDA", ScreenID: 1, Score: 9.0},
			{Ticker: "AMZN", ScreenID: 1, Score: 6.5},
		},
		records: []contracts.EarningsRecord{
			reported("AAPL", 1.00, 1.10), // +10% beat
			reported("MSFT", 2.00, 2.04), // +2% beat, below threshold
			reported("TSLA", 0.50, 0.60), // +20% beat, not on watchlist
			reported("NVDA", 1.00, 0.90), // miss
			scheduled("AMZN", 0.75),      // not yet reported
		},
	}
	screens := &fakeScreens{criteria: &contracts.ScreenCriteria{ID: 1, MinEarningsSurprise: 5}}

	detector := NewDetector(store, screens, 5, logger.NewNop())

	opportunities, summary, err := detector.Identify(context.Background(), 1, day)
	require.NoError(t, err)

	require.Len(t, opportunities, 1)
	opp := opportunities[0]
	assert.Equal(t, "AAPL", opp.Ticker)
	assert.InDelta(t, 8.5, opp.Score, 1e-9)
	assert.InDelta(t, 10.0, opp.Surprise, 1e-9)

	// Counts cover watchlist tickers only; TSLA's beat is invisible here.
	assert.Equal(t, 4, summary.Scheduled)
	assert.Equal(t, 3, summary.Reported)
	assert.Equal(t, 2, summary.Beats)
	assert.Equal(t, 1, summary.Misses)
	assert.Equal(t, 1, summary.Pending)
}

func TestIdentifyNegativeEstimateSurprise(t *testing.T) {
	// est -0.50, actual -0.40: (−0.40 − −0.50) / |−0.50| * 100 = +20%.
	store := &fakeStore{
		watchlist: []contracts.WatchlistEntry{{Ticker: "UBER", ScreenID: 1, Score: 6}},
		records:   []contracts.EarningsRecord{reported("UBER", -0.50, -0.40)},
	}
	screens := &fakeScreens{criteria: &contracts.ScreenCriteria{ID: 1}}

	detector := NewDetector(store, screens, 5, logger.NewNop())

	opportunities, _, err := detector.Identify(context.Background(), 1, day)
	require.NoError(t, err)

	require.Len(t, opportunities, 1)
	assert.InDelta(t, 20.0, opportunities[0].Surprise, 1e-9)
}

func TestIdentifyZeroEstimateNeverQualifies(t *testing.T) {
	// Surprise is undefined for a zero estimate; the beat is counted but
	// never surfaces as an opportunity.
	store := &fakeStore{
		watchlist: []contracts.WatchlistEntry{{Ticker: "ZERO", ScreenID: 1, Score: 6}},
		records:   []contracts.EarningsRecord{reported("ZERO", 0, 0.10)},
	}
	screens := &fakeScreens{criteria: &contracts.ScreenCriteria{ID: 1}}

	detector := NewDetector(store, screens, 5, logger.NewNop())

	opportunities, summary, err := detector.Identify(context.Background(), 1, day)
	require.NoError(t, err)

	assert.Empty(t, opportunities)
	assert.Equal(t, 1, summary.Beats)
}

func TestIdentifyScreenThresholdOverridesDefault(t *testing.T) {
	store := &fakeStore{
		watchlist: []contracts.WatchlistEntry{{Ticker: "AAPL", ScreenID: 1, Score: 8}},
		records:   []contracts.EarningsRecord{reported("AAPL", 1.00, 1.10)}, // +10%
	}
	screens := &fakeScreens{criteria: &contracts.ScreenCriteria{ID: 1, MinEarningsSurprise: 15}}

	detector := NewDetector(store, screens, 5, logger.NewNop())

	opportunities, _, err := detector.Identify(context.Background(), 1, day)
	require.NoError(t, err)
	assert.Empty(t, opportunities)
}

func TestIdentifyPropagatesScreenNotFound(t *testing.T) {
	screens := &fakeScreens{err: contracts.NewNotFound("screen", "99")}
	detector := NewDetector(&fakeStore{}, screens, 5, logger.NewNop())

	_, _, err := detector.Identify(context.Background(), 99, day)
	assert.True(t, contracts.IsNotFound(err))
}

func TestRecordAppliesActual(t *testing.T) {
	store := &fakeStore{
		records: []contracts.EarningsRecord{scheduled("AAPL", 1.00)},
	}
	detector := NewDetector(store, &fakeScreens{}, 5, logger.NewNop())

	rec, err := detector.Record(context.Background(), "AAPL", day, 1.25)
	require.NoError(t, err)

	require.NotNil(t, rec.Beat)
	assert.True(t, *rec.Beat)
	require.NotNil(t, rec.Surprise)
	assert.InDelta(t, 25.0, *rec.Surprise, 1e-9)
	require.Len(t, store.upserted, 1)
}

func TestRecordUnknownSymbol(t *testing.T) {
	detector := NewDetector(&fakeStore{}, &fakeScreens{}, 5, logger.NewNop())

	_, err := detector.Record(context.Background(), "NOPE", day, 1.0)
	assert.True(t, contracts.IsNotFound(err))
}
