package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwhitt/alphascreen/internal/contracts"
)

// Repository is the pgx-backed store for runs, positions and trades.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new backtest repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateRun inserts a new run and fills in its assigned ID.
func (r *Repository) CreateRun(ctx context.Context, run *contracts.Run) error {
	query := `
		INSERT INTO trading.runs (
			screen_id, run_type, start_date, end_date,
			starting_capital, current_capital, max_positions,
			trailing_stop_pct, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id
	`

	now := time.Now()
	run.CreatedAt = now
	run.UpdatedAt = now

	err := r.pool.QueryRow(ctx, query,
		run.ScreenID, run.Type, run.StartDate, run.EndDate,
		run.StartingCapital, run.CurrentCapital, run.MaxPositions,
		run.TrailingStopPct, run.Status, now,
	).Scan(&run.ID)

	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// GetRun loads one run.
func (r *Repository) GetRun(ctx context.Context, runID int64) (*contracts.Run, error) {
	query := `
		SELECT id, screen_id, run_type, start_date, end_date,
		       starting_capital, current_capital, final_capital,
		       max_positions, trailing_stop_pct, status, error,
		       total_return_pct, win_rate, avg_win_amount, avg_loss_amount,
		       avg_hold_time_days, total_trades, winning_trades, losing_trades,
		       created_at, updated_at, completed_at
		FROM trading.runs
		WHERE id = $1
	`

	var run contracts.Run
	err := r.pool.QueryRow(ctx, query, runID).Scan(
		&run.ID, &run.ScreenID, &run.Type, &run.StartDate, &run.EndDate,
		&run.StartingCapital, &run.CurrentCapital, &run.FinalCapital,
		&run.MaxPositions, &run.TrailingStopPct, &run.Status, &run.Error,
		&run.TotalReturnPct, &run.WinRate, &run.AvgWinAmount, &run.AvgLossAmount,
		&run.AvgHoldTimeDays, &run.TotalTrades, &run.WinningTrades, &run.LosingTrades,
		&run.CreatedAt, &run.UpdatedAt, &run.CompletedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, contracts.NewNotFound("run", fmt.Sprintf("%d", runID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return &run, nil
}

// UpdateRun persists mutable run state and aggregates.
func (r *Repository) UpdateRun(ctx context.Context, run *contracts.Run) error {
	query := `
		UPDATE trading.runs SET
			current_capital = $2,
			final_capital = $3,
			status = $4,
			error = $5,
			total_return_pct = $6,
			win_rate = $7,
			avg_win_amount = $8,
			avg_loss_amount = $9,
			avg_hold_time_days = $10,
			total_trades = $11,
			winning_trades = $12,
			losing_trades = $13,
			updated_at = $14,
			completed_at = $15
		WHERE id = $1
	`

	run.UpdatedAt = time.Now()

	tag, err := r.pool.Exec(ctx, query,
		run.ID, run.CurrentCapital, run.FinalCapital, run.Status, run.Error,
		run.TotalReturnPct, run.WinRate, run.AvgWinAmount, run.AvgLossAmount,
		run.AvgHoldTimeDays, run.TotalTrades, run.WinningTrades, run.LosingTrades,
		run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return contracts.NewNotFound("run", fmt.Sprintf("%d", run.ID))
	}

	return nil
}

// TouchRun bumps updated_at so the staleness watchdog sees progress.
func (r *Repository) TouchRun(ctx context.Context, runID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE trading.runs SET updated_at = $2 WHERE id = $1`,
		runID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to touch run: %w", err)
	}
	return nil
}

// MarkStaleRunsFailed transitions RUNNING runs whose updated_at is older
// than the cutoff to FAILED. Returns the IDs it reaped.
func (r *Repository) MarkStaleRunsFailed(ctx context.Context, staleAfter time.Duration) ([]int64, error) {
	query := `
		UPDATE trading.runs
		SET status = 'FAILED',
		    error = 'run abandoned: no progress before watchdog cutoff',
		    completed_at = $1,
		    updated_at = $1
		WHERE status = 'RUNNING' AND updated_at < $2
		RETURNING id
	`

	now := time.Now()
	rows, err := r.pool.Query(ctx, query, now, now.Add(-staleAfter))
	if err != nil {
		return nil, fmt.Errorf("failed to reap stale runs: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ids, nil
}

// SavePosition inserts or updates a position row.
func (r *Repository) SavePosition(ctx context.Context, pos *contracts.Position) error {
	if pos.ID == 0 {
		query := `
			INSERT INTO trading.positions (
				run_id, ticker, quantity, entry_price, entry_time,
				current_price, trailing_stop_price, unrealized_pnl,
				status, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`
		err := r.pool.QueryRow(ctx, query,
			pos.RunID, pos.Ticker, pos.Quantity, pos.EntryPrice, pos.EntryTime,
			pos.CurrentPrice, pos.TrailingStopPrice, pos.UnrealizedPnL,
			pos.Status, pos.UpdatedAt,
		).Scan(&pos.ID)
		if err != nil {
			return fmt.Errorf("failed to insert position: %w", err)
		}
		return nil
	}

	query := `
		UPDATE trading.positions SET
			current_price = $2,
			trailing_stop_price = $3,
			unrealized_pnl = $4,
			status = $5,
			updated_at = $6
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		pos.ID, pos.CurrentPrice, pos.TrailingStopPrice, pos.UnrealizedPnL,
		pos.Status, pos.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return contracts.NewNotFound("position", fmt.Sprintf("%d", pos.ID))
	}

	return nil
}

// GetPosition loads one position.
func (r *Repository) GetPosition(ctx context.Context, positionID int64) (*contracts.Position, error) {
	query := `
		SELECT id, run_id, ticker, quantity, entry_price, entry_time,
		       current_price, trailing_stop_price, unrealized_pnl,
		       status, updated_at
		FROM trading.positions
		WHERE id = $1
	`

	var pos contracts.Position
	err := r.pool.QueryRow(ctx, query, positionID).Scan(
		&pos.ID, &pos.RunID, &pos.Ticker, &pos.Quantity, &pos.EntryPrice,
		&pos.EntryTime, &pos.CurrentPrice, &pos.TrailingStopPrice,
		&pos.UnrealizedPnL, &pos.Status, &pos.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, contracts.NewNotFound("position", fmt.Sprintf("%d", positionID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	return &pos, nil
}

// ListOpenPositions returns OPEN positions for a run, used when resuming
// a live run after restart.
func (r *Repository) ListOpenPositions(ctx context.Context, runID int64) ([]contracts.Position, error) {
	query := `
		SELECT id, run_id, ticker, quantity, entry_price, entry_time,
		       current_price, trailing_stop_price, unrealized_pnl,
		       status, updated_at
		FROM trading.positions
		WHERE run_id = $1 AND status = 'OPEN'
		ORDER BY entry_time
	`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions: %w", err)
	}
	defer rows.Close()

	positions := make([]contracts.Position, 0)

	for rows.Next() {
		var pos contracts.Position
		err := rows.Scan(
			&pos.ID, &pos.RunID, &pos.Ticker, &pos.Quantity, &pos.EntryPrice,
			&pos.EntryTime, &pos.CurrentPrice, &pos.TrailingStopPrice,
			&pos.UnrealizedPnL, &pos.Status, &pos.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return positions, nil
}

// InsertTrade persists one closed trade.
func (r *Repository) InsertTrade(ctx context.Context, trade *contracts.Trade) error {
	query := `
		INSERT INTO trading.trades (
			run_id, ticker, quantity, entry_price, entry_time,
			exit_price, exit_time, realized_pnl, hold_time_minutes, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		trade.RunID, trade.Ticker, trade.Quantity, trade.EntryPrice, trade.EntryTime,
		trade.ExitPrice, trade.ExitTime, trade.RealizedPnL, trade.HoldTimeMinutes,
		trade.Reason,
	).Scan(&trade.ID)

	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	return nil
}

// ListTrades returns all trades for a run in exit order.
func (r *Repository) ListTrades(ctx context.Context, runID int64) ([]contracts.Trade, error) {
	query := `
		SELECT id, run_id, ticker, quantity, entry_price, entry_time,
		       exit_price, exit_time, realized_pnl, hold_time_minutes, reason
		FROM trading.trades
		WHERE run_id = $1
		ORDER BY exit_time
	`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]contracts.Trade, 0)

	for rows.Next() {
		var t contracts.Trade
		err := rows.Scan(
			&t.ID, &t.RunID, &t.Ticker, &t.Quantity, &t.EntryPrice, &t.EntryTime,
			&t.ExitPrice, &t.ExitTime, &t.RealizedPnL, &t.HoldTimeMinutes, &t.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return trades, nil
}
