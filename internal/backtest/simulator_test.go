package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/pkg/logger"
)

type fakeStore struct {
	positions []contracts.Position
	trades    []contracts.Trade
	runs      map[int64]contracts.Run
	nextPosID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{runs: make(map[int64]contracts.Run)}
}

func (s *fakeStore) UpdateRun(ctx context.Context, run *contracts.Run) error {
	s.runs[run.ID] = *run
	return nil
}

func (s *fakeStore) TouchRun(ctx context.Context, runID int64) error { return nil }

func (s *fakeStore) SavePosition(ctx context.Context, pos *contracts.Position) error {
	if pos.ID == 0 {
		s.nextPosID++
		pos.ID = s.nextPosID
		s.positions = append(s.positions, *pos)
		return nil
	}
	for i := range s.positions {
		if s.positions[i].ID == pos.ID {
			s.positions[i] = *pos
		}
	}
	return nil
}

func (s *fakeStore) InsertTrade(ctx context.Context, trade *contracts.Trade) error {
	trade.ID = int64(len(s.trades) + 1)
	s.trades = append(s.trades, *trade)
	return nil
}

func (s *fakeStore) ListOpenPositions(ctx context.Context, runID int64) ([]contracts.Position, error) {
	open := make([]contracts.Position, 0)
	for _, p := range s.positions {
		if p.RunID == runID && p.Status == contracts.PositionOpen {
			open = append(open, p)
		}
	}
	return open, nil
}

func (s *fakeStore) ListTrades(ctx context.Context, runID int64) ([]contracts.Trade, error) {
	out := make([]contracts.Trade, 0)
	for _, t := range s.trades {
		if t.RunID == runID {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeWatchlist struct {
	entries []contracts.WatchlistEntry
}

func (w *fakeWatchlist) ListWatchlist(ctx context.Context, screenID int64) ([]contracts.WatchlistEntry, error) {
	return w.entries, nil
}

type fakeBars struct {
	bars map[string][]contracts.Bar
}

func (b *fakeBars) GetBars(ctx context.Context, symbols []string, timeframe string, start, end time.Time) (map[string][]contracts.Bar, error) {
	return b.bars, nil
}

// Monday 2026-03-02 onward.
func tradingDay(i int) time.Time {
	return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func dailyBars(symbol string, closes ...float64) []contracts.Bar {
	bars := make([]contracts.Bar, 0, len(closes))
	for i, c := range closes {
		bars = append(bars, contracts.Bar{
			Symbol: symbol,
			Open:   c, High: c, Low: c, Close: c,
			Volume: 1000,
			Date:   tradingDay(i),
		})
	}
	return bars
}

func newTestRun(maxPositions int) *contracts.Run {
	return &contracts.Run{
		ID:              1,
		ScreenID:        1,
		Type:            contracts.RunHistorical,
		StartDate:       tradingDay(0),
		EndDate:         tradingDay(4),
		StartingCapital: 10000,
		CurrentCapital:  10000,
		MaxPositions:    maxPositions,
		TrailingStopPct: 10,
		Status:          contracts.RunRunning,
	}
}

func TestSimulatorStopLossExit(t *testing.T) {
	store := newFakeStore()
	watchlist := &fakeWatchlist{entries: []contracts.WatchlistEntry{
		{Ticker: "AAPL", ScreenID: 1, Score: 8},
	}}
	// Entry at 100, stop ratchets to 108 at 120, then 95 breaches it.
	bars := &fakeBars{bars: map[string][]contracts.Bar{
		"AAPL": dailyBars("AAPL", 100, 120, 95, 96, 97),
	}}

	sim := NewSimulator(store, watchlist, bars, logger.NewNop())
	run := newTestRun(1)

	require.NoError(t, sim.Run(context.Background(), run))

	assert.Equal(t, contracts.RunCompleted, run.Status)
	require.Len(t, store.trades, 1)

	tr := store.trades[0]
	assert.Equal(t, "AAPL", tr.Ticker)
	assert.Equal(t, contracts.ExitStopLoss, tr.Reason)
	assert.Equal(t, int64(100), tr.Quantity) // floor(10000/1/100)
	assert.InDelta(t, -500.0, tr.RealizedPnL, 1e-9)

	// Capital: 10000 - 10000 + 100*95 = 9500.
	assert.InDelta(t, 9500.0, run.FinalCapital, 1e-9)
	assert.InDelta(t, -5.0, run.TotalReturnPct, 1e-9)
	assert.Equal(t, 1, run.TotalTrades)
	assert.Equal(t, 1, run.LosingTrades)
	assert.NotNil(t, run.CompletedAt)
}

func TestSimulatorRespectsMaxPositions(t *testing.T) {
	store := newFakeStore()
	watchlist := &fakeWatchlist{entries: []contracts.WatchlistEntry{
		{Ticker: "AAA", ScreenID: 1, Score: 9},
		{Ticker: "BBB", ScreenID: 1, Score: 8},
		{Ticker: "CCC", ScreenID: 1, Score: 7},
	}}
	bars := &fakeBars{bars: map[string][]contracts.Bar{
		"AAA": dailyBars("AAA", 100, 101, 102, 103, 104),
		"BBB": dailyBars("BBB", 50, 51, 52, 53, 54),
		"CCC": dailyBars("CCC", 25, 26, 27, 28, 29),
	}}

	sim := NewSimulator(store, watchlist, bars, logger.NewNop())
	run := newTestRun(2)

	require.NoError(t, sim.Run(context.Background(), run))

	// Only the two best-scored tickers ever open.
	opened := make(map[string]bool)
	for _, p := range store.positions {
		opened[p.Ticker] = true
	}
	assert.Len(t, opened, 2)
	assert.True(t, opened["AAA"])
	assert.True(t, opened["BBB"])
	assert.False(t, opened["CCC"])

	// Equal-weight sizing: 10000/2/100 = 50 shares, then 5000/1/50 = 100.
	assert.Equal(t, int64(50), store.positions[0].Quantity)
	assert.Equal(t, int64(100), store.positions[1].Quantity)

	// Everything still open liquidates at the end.
	assert.Equal(t, contracts.RunCompleted, run.Status)
	assert.Len(t, store.trades, 2)
	for _, tr := range store.trades {
		assert.Equal(t, contracts.ExitTimeCutoff, tr.Reason)
	}
}

func TestSimulatorEmptyWatchlistFails(t *testing.T) {
	store := newFakeStore()
	sim := NewSimulator(store, &fakeWatchlist{}, &fakeBars{}, logger.NewNop())
	run := newTestRun(1)

	err := sim.Run(context.Background(), run)
	require.Error(t, err)
	assert.True(t, contracts.IsValidation(err))

	// The terminal FAILED state must be persisted.
	assert.Equal(t, contracts.RunFailed, run.Status)
	assert.NotEmpty(t, run.Error)
	saved, ok := store.runs[run.ID]
	require.True(t, ok)
	assert.Equal(t, contracts.RunFailed, saved.Status)
}

func TestSimulatorSkipsWeekends(t *testing.T) {
	store := newFakeStore()
	watchlist := &fakeWatchlist{entries: []contracts.WatchlistEntry{
		{Ticker: "AAPL", ScreenID: 1, Score: 8},
	}}

	// Friday close then a poisoned Saturday bar that would trip the stop
	// if weekends were processed.
	friday := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	saturday := friday.AddDate(0, 0, 1)
	bars := &fakeBars{bars: map[string][]contracts.Bar{
		"AAPL": {
			{Symbol: "AAPL", Close: 100, Date: friday},
			{Symbol: "AAPL", Close: 1, Date: saturday},
		},
	}}

	sim := NewSimulator(store, watchlist, bars, logger.NewNop())
	run := newTestRun(1)
	run.StartDate = friday
	run.EndDate = saturday

	require.NoError(t, sim.Run(context.Background(), run))

	require.Len(t, store.trades, 1)
	// End-of-run liquidation at the Friday price, not the Saturday one.
	assert.InDelta(t, 100.0, store.trades[0].ExitPrice, 1e-9)
	assert.Equal(t, contracts.ExitTimeCutoff, store.trades[0].Reason)
}
