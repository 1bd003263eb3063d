package screening

import (
	"context"
	"fmt"
	"time"

	"github.com/mwhitt/alphascreen/internal/contracts"
)

// Refresh lock: a single-row record with a status column. The transition
// to RUNNING is a conditional update, so two concurrent refreshes cannot
// both win; the loser gets a PersistenceConflictError.

// AcquireRefreshLock transitions the lock row to RUNNING.
func (r *Repository) AcquireRefreshLock(ctx context.Context) error {
	query := `
		UPDATE screening.refresh_lock
		SET status = 'RUNNING', started_at = $1, updated_at = $1
		WHERE id = 1 AND status <> 'RUNNING'
	`

	tag, err := r.pool.Exec(ctx, query, time.Now())
	if err != nil {
		return fmt.Errorf("failed to acquire refresh lock: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return contracts.NewConflict("screening refresh already in progress")
	}

	return nil
}

// ReleaseRefreshLock returns the lock row to IDLE.
func (r *Repository) ReleaseRefreshLock(ctx context.Context) error {
	query := `
		UPDATE screening.refresh_lock
		SET status = 'IDLE', updated_at = $1
		WHERE id = 1
	`

	if _, err := r.pool.Exec(ctx, query, time.Now()); err != nil {
		return fmt.Errorf("failed to release refresh lock: %w", err)
	}

	return nil
}
