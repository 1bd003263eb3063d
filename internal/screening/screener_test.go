package screening

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/internal/scoring"
	"github.com/mwhitt/alphascreen/pkg/logger"
)

func f(v float64) *float64 { return &v }

type fakeStore struct {
	criteria  *contracts.ScreenCriteria
	snapshots []contracts.StockSnapshot
	watchlist map[string]contracts.WatchlistEntry

	locked      bool
	lockHeld    bool
	releases    int
	upsertFails map[string]bool
}

func newFakeStore(criteria *contracts.ScreenCriteria, snapshots []contracts.StockSnapshot) *fakeStore {
	return &fakeStore{
		criteria:    criteria,
		snapshots:   snapshots,
		watchlist:   make(map[string]contracts.WatchlistEntry),
		upsertFails: make(map[string]bool),
	}
}

func (s *fakeStore) GetCriteria(ctx context.Context, screenID int64) (*contracts.ScreenCriteria, error) {
	if s.criteria == nil {
		return nil, contracts.NewNotFound("screen", "missing")
	}
	return s.criteria, nil
}

func (s *fakeStore) ListSnapshots(ctx context.Context) ([]contracts.StockSnapshot, error) {
	return s.snapshots, nil
}

func (s *fakeStore) UpsertWatchlistEntry(ctx context.Context, entry *contracts.WatchlistEntry) (bool, error) {
	if s.upsertFails[entry.Ticker] {
		return false, errors.New("storage unavailable")
	}
	_, exists := s.watchlist[entry.Ticker]
	s.watchlist[entry.Ticker] = *entry
	return !exists, nil
}

func (s *fakeStore) AcquireRefreshLock(ctx context.Context) error {
	if s.lockHeld {
		return contracts.NewConflict("screening refresh already in progress")
	}
	s.locked = true
	return nil
}

func (s *fakeStore) ReleaseRefreshLock(ctx context.Context) error {
	s.locked = false
	s.releases++
	return nil
}

func snapshot(symbol string, pe float64) contracts.StockSnapshot {
	return contracts.StockSnapshot{Symbol: symbol, Price: 100, PE: f(pe)}
}

func testCriteria() *contracts.ScreenCriteria {
	return &contracts.ScreenCriteria{
		ID:   1,
		Name: "value",
		Factors: map[string]contracts.FactorBounds{
			contracts.FactorPE: {Max: f(20)},
		},
	}
}

func newTestScreener(store Store) *Screener {
	return NewScreener(store, scoring.NewScorer(logger.NewNop()), logger.NewNop())
}

func TestRunAddsQualifyingTickers(t *testing.T) {
	store := newFakeStore(testCriteria(), []contracts.StockSnapshot{
		snapshot("GOOD", 15), // inside band, qualifies
		snapshot("EDGE", 25), // 25% past the bound: score 0, rejected
	})

	result, err := newTestScreener(store).Run(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Qualified)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 0, result.Updated)

	_, ok := store.watchlist["GOOD"]
	assert.True(t, ok)
	_, ok = store.watchlist["EDGE"]
	assert.False(t, ok)

	assert.Equal(t, 1, store.releases)
}

func TestRunIsIdempotent(t *testing.T) {
	store := newFakeStore(testCriteria(), []contracts.StockSnapshot{snapshot("GOOD", 15)})
	screener := newTestScreener(store)

	first, err := screener.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Inserted)

	second, err := screener.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.Updated)
	assert.Len(t, store.watchlist, 1)
}

func TestRunSkipsErroredSnapshots(t *testing.T) {
	bad := snapshot("BAD", 15)
	bad.HasError = true

	store := newFakeStore(testCriteria(), []contracts.StockSnapshot{bad, snapshot("GOOD", 15)})

	result, err := newTestScreener(store).Run(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Qualified)
}

func TestRunUpsertFailureDoesNotAbort(t *testing.T) {
	store := newFakeStore(testCriteria(), []contracts.StockSnapshot{
		snapshot("FAIL", 15),
		snapshot("GOOD", 15),
	})
	store.upsertFails["FAIL"] = true

	result, err := newTestScreener(store).Run(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Qualified)
	assert.Equal(t, 1, result.Skipped)
	_, ok := store.watchlist["GOOD"]
	assert.True(t, ok)
}

func TestRunMissingScreen(t *testing.T) {
	store := newFakeStore(nil, nil)

	_, err := newTestScreener(store).Run(context.Background(), 99)
	assert.True(t, contracts.IsNotFound(err))
	assert.Equal(t, 0, store.releases) // lock never taken
}

func TestRunLockConflict(t *testing.T) {
	store := newFakeStore(testCriteria(), []contracts.StockSnapshot{snapshot("GOOD", 15)})
	store.lockHeld = true

	_, err := newTestScreener(store).Run(context.Background(), 1)
	assert.True(t, contracts.IsConflict(err))
	assert.Empty(t, store.watchlist)
}
