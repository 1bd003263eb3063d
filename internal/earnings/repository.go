package earnings

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwhitt/alphascreen/internal/contracts"
)

// Repository is the pgx-backed earnings calendar store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new earnings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListEarningsForDate returns all calendar records for one day.
func (r *Repository) ListEarningsForDate(ctx context.Context, day time.Time) ([]contracts.EarningsRecord, error) {
	query := `
		SELECT symbol, earnings_date, estimated_eps, actual_eps, beat, surprise
		FROM data.earnings_calendar
		WHERE earnings_date = $1
		ORDER BY symbol
	`

	rows, err := r.pool.Query(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query earnings calendar: %w", err)
	}
	defer rows.Close()

	records := make([]contracts.EarningsRecord, 0)

	for rows.Next() {
		var rec contracts.EarningsRecord
		err := rows.Scan(
			&rec.Symbol, &rec.EarningsDate, &rec.EstimatedEPS,
			&rec.ActualEPS, &rec.Beat, &rec.Surprise,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan earnings record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// UpsertEarnings inserts or refreshes one calendar record keyed on
// (symbol, earnings_date).
func (r *Repository) UpsertEarnings(ctx context.Context, rec *contracts.EarningsRecord) error {
	query := `
		INSERT INTO data.earnings_calendar (
			symbol, earnings_date, estimated_eps, actual_eps, beat, surprise, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, earnings_date) DO UPDATE SET
			estimated_eps = EXCLUDED.estimated_eps,
			actual_eps = EXCLUDED.actual_eps,
			beat = EXCLUDED.beat,
			surprise = EXCLUDED.surprise,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		rec.Symbol, rec.EarningsDate, rec.EstimatedEPS,
		rec.ActualEPS, rec.Beat, rec.Surprise, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert earnings record: %w", err)
	}

	return nil
}

// ListWatchlist returns the watchlist for a screen ordered by score. Shared
// with the screening schema so the detector needs only one store.
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
