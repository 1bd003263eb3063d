package contracts

import (
	"context"
	"time"
)

// QuoteProvider returns current prices. A per-symbol failure surfaces as
// an ExternalDataError; callers fall back to the last-known cached price.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}

// BarProvider returns historical bar series for the backtest time axis.
// Symbols that fail are omitted from the result, never aborting the batch.
type BarProvider interface {
	GetBars(ctx context.Context, symbols []string, timeframe string, start, end time.Time) (map[string][]Bar, error)
}

// Notifier is the fire-and-forget notification sink. Failures here must
// never fail a run; implementations log and swallow errors.
type Notifier interface {
	Notify(ctx context.Context, subject, message string)
}
