package screening

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwhitt/alphascreen/internal/contracts"
)

// Repository is the pgx-backed Store implementation.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new screening repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetCriteria loads a screen's criteria. Factors are stored as a sparse
// JSONB mapping from factor name to {min, max, weight}.
func (r *Repository) GetCriteria(ctx context.Context, screenID int64) (*contracts.ScreenCriteria, error) {
	query := `
		SELECT id, name, screen_type, factors, min_score,
		       min_earnings_surprise, allocated_capital, active,
		       created_at, updated_at
		FROM screening.screens
		WHERE id = $1
	`

	var criteria contracts.ScreenCriteria
	var factorsJSON []byte

	err := r.pool.QueryRow(ctx, query, screenID).Scan(
		&criteria.ID, &criteria.Name, &criteria.Type, &factorsJSON,
		&criteria.MinScore, &criteria.MinEarningsSurprise,
		&criteria.AllocatedCapital, &criteria.Active,
		&criteria.CreatedAt, &criteria.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, contracts.NewNotFound("screen", fmt.Sprintf("%d", screenID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get screen criteria: %w", err)
	}

	criteria.Factors = make(map[string]contracts.FactorBounds)
	if len(factorsJSON) > 0 {
		if err := json.Unmarshal(factorsJSON, &criteria.Factors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal screen factors: %w", err)
		}
	}

	return &criteria, nil
}

// ListActiveScreens returns the IDs of all active screens, for the
// scheduled refresh job.
func (r *Repository) ListActiveScreens(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM screening.screens WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active screens: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan screen id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ids, nil
}

// ListSnapshots returns the current stock universe.
func (r *Repository) ListSnapshots(ctx context.Context) ([]contracts.StockSnapshot, error) {
	query := `
		SELECT symbol, price, previous_close,
		       pe, ps, pb, pcf,
		       roe, debt_equity, current_ratio,
		       revenue_growth, earnings_growth,
		       dividend_yield, market_cap, volume,
		       momentum_1m, momentum_3m, momentum_6m, momentum_12m,
		       data_quality, completeness_tier, has_error, refreshed_at
		FROM data.stock_snapshots
		ORDER BY symbol
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]contracts.StockSnapshot, 0)

	for rows.Next() {
		var s contracts.StockSnapshot
		err := rows.Scan(
			&s.Symbol, &s.Price, &s.PreviousClose,
			&s.PE, &s.PS, &s.PB, &s.PCF,
			&s.ROE, &s.DebtEquity, &s.CurrentRatio,
			&s.RevenueGrowth, &s.EarningsGrowth,
			&s.DividendYield, &s.MarketCap, &s.Volume,
			&s.Momentum1M, &s.Momentum3M, &s.Momentum6M, &s.Momentum12M,
			&s.DataQuality, &s.Tier, &s.HasError, &s.RefreshedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return snapshots, nil
}

// UpsertWatchlistEntry inserts or refreshes one watchlist row keyed on
// (ticker, screen_id). Existing entries keep their date_added; score and
// display fields are always refreshed. Returns true on insert.
func (r *Repository) UpsertWatchlistEntry(ctx context.Context, entry *contracts.WatchlistEntry) (bool, error) {
	query := `
		INSERT INTO screening.watchlist (
			ticker, screen_id, score, price, pe, market_cap, date_added, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (ticker, screen_id) DO UPDATE SET
			score = EXCLUDED.score,
			price = EXCLUDED.price,
			pe = EXCLUDED.pe,
			market_cap = EXCLUDED.market_cap,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0)
	`

	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		entry.Ticker, entry.ScreenID, entry.Score, entry.Price,
		entry.PE, entry.MarketCap, entry.DateAdded, entry.UpdatedAt,
	).Scan(&inserted)

	if err != nil {
		return false, fmt.Errorf("failed to upsert watchlist entry: %w", err)
	}

	return inserted, nil
}

// ListWatchlist returns all entries for a screen ordered by score.
func (r *Repository) ListWatchlist(ctx context.Context, screenID int64) ([]contracts.WatchlistEntry, error) {
	query := `
		SELECT ticker, screen_id, score, price, pe, market_cap, date_added, updated_at
		FROM screening.watchlist
		WHERE screen_id = $1
		ORDER BY score DESC, ticker ASC
	`

	rows, err := r.pool.Query(ctx, query, screenID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	entries := make([]contracts.WatchlistEntry, 0)

	for rows.Next() {
		var e contracts.WatchlistEntry
		err := rows.Scan(
			&e.Ticker, &e.ScreenID, &e.Score, &e.Price,
			&e.PE, &e.MarketCap, &e.DateAdded, &e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

// RemoveWatchlistEntry deletes one entry. Screening never calls this; it
// backs the explicit removal operation.
func (r *Repository) RemoveWatchlistEntry(ctx context.Context, screenID int64, ticker string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM screening.watchlist WHERE screen_id = $1 AND ticker = $2`,
		screenID, ticker,
	)
	if err != nil {
		return fmt.Errorf("failed to remove watchlist entry: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return contracts.NewNotFound("watchlist entry", ticker)
	}

	return nil
}
