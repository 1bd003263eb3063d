package backtest

import (
	"context"
	"math"
	"time"

	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/internal/position"
	"github.com/mwhitt/alphascreen/pkg/logger"
)

// LiveStore extends Store with what a resumable live run needs.
type LiveStore interface {
	Store
	ListOpenPositions(ctx context.Context, runID int64) ([]contracts.Position, error)
	ListTrades(ctx context.Context, runID int64) ([]contracts.Trade, error)
}

// NewsSource reports whether a ticker currently has material negative
// news. A nil source means the trigger is disabled.
type NewsSource interface {
	HasNegativeNews(ctx context.Context, ticker string) bool
}

// PaperTrader drives a LIVE run against real-time quotes. Positions are
// opened from the watchlist once at start, then managed tick by tick until
// everything exits or the run is stopped. Stop requests take effect
// between ticks, never mid-position-update.
type PaperTrader struct {
	store     LiveStore
	watchlist WatchlistSource
	quotes    contracts.QuoteProvider
	news      NewsSource
	notifier  contracts.Notifier
	logger    *logger.Logger

	cutoffHour   int
	cutoffMinute int
	tickInterval time.Duration
}

// NewPaperTrader creates a live paper-trading driver.
func NewPaperTrader(
	store LiveStore,
	watchlist WatchlistSource,
	quotes contracts.QuoteProvider,
	news NewsSource,
	notifier contracts.Notifier,
	cutoffHour, cutoffMinute int,
	tickInterval time.Duration,
	log *logger.Logger,
) *PaperTrader {
	if tickInterval <= 0 {
		tickInterval = time.Minute
	}
	return &PaperTrader{
		store:        store,
		watchlist:    watchlist,
		quotes:       quotes,
		news:         news,
		notifier:     notifier,
		cutoffHour:   cutoffHour,
		cutoffMinute: cutoffMinute,
		tickInterval: tickInterval,
		logger:       log,
	}
}

// Run manages a live run until all positions close, the session cutoff
// passes, or the context is canceled. A terminal status is always written.
func (t *PaperTrader) Run(ctx context.Context, run *contracts.Run) (err error) {
	defer func() {
		if run.Status == contracts.RunRunning {
			if err != nil {
				run.Status = contracts.RunFailed
				run.Error = err.Error()
			} else if ctx.Err() != nil {
				run.Status = contracts.RunStopped
			} else {
				run.Status = contracts.RunCompleted
			}
		}
		if run.Status.Terminal() && run.CompletedAt == nil {
			now := time.Now()
			run.CompletedAt = &now
		}
		t.finalize(context.WithoutCancel(ctx), run)
	}()

	managers, cash, err := t.resume(ctx, run)
	if err != nil {
		return err
	}

	if len(managers) == 0 {
		managers, cash, err = t.openFromWatchlist(ctx, run, cash)
		if err != nil {
			return err
		}
	}

	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()

	for len(managers) > 0 {
		select {
		case <-ctx.Done():
			run.Status = contracts.RunStopped
			return nil
		case <-ticker.C:
		}

		now := time.Now()

		for symbol, mgr := range managers {
			quote, quoteErr := t.quotes.GetQuote(ctx, symbol)
			if quoteErr != nil {
				t.logger.WithFields(map[string]interface{}{
					"ticker": symbol,
					"error":  quoteErr.Error(),
				}).Warn("Quote unavailable, holding position")
				continue
			}

			if updateErr := mgr.OnPriceUpdate(quote.Price, now); updateErr != nil {
				return updateErr
			}

			negative := t.news != nil && t.news.HasNegativeNews(ctx, symbol)
			decision := mgr.EvaluateExit(quote.Price, now, t.cutoffHour, t.cutoffMinute, negative)

			if !decision.Exit {
				if saveErr := t.store.SavePosition(ctx, mgr.Position()); saveErr != nil {
					return saveErr
				}
				continue
			}

			trade, closeErr := mgr.Close(quote.Price, now, decision.Reason)
			if closeErr != nil {
				return closeErr
			}
			if saveErr := t.store.SavePosition(ctx, mgr.Position()); saveErr != nil {
				return saveErr
			}
			if insertErr := t.store.InsertTrade(ctx, trade); insertErr != nil {
				return insertErr
			}

			cash += quote.Price * float64(trade.Quantity)
			delete(managers, symbol)

			t.notifier.Notify(ctx, "Position closed",
				trade.Ticker+" exited: "+string(trade.Reason))
		}

		run.CurrentCapital = cash
		for _, mgr := range managers {
			pos := mgr.Position()
			run.CurrentCapital += pos.CurrentPrice * float64(pos.Quantity)
		}

		if touchErr := t.store.TouchRun(ctx, run.ID); touchErr != nil {
			t.logger.WithError(touchErr).Warn("Failed to touch run")
		}
	}

	run.CurrentCapital = cash
	run.FinalCapital = cash
	return nil
}

// resume rebuilds managers for positions left OPEN by a previous process.
// Cash is reconstructed from starting capital plus the realized P&L of
// trades already closed before the restart, minus what the open positions
// consumed at entry.
func (t *PaperTrader) resume(ctx context.Context, run *contracts.Run) (map[string]*position.Manager, float64, error) {
	open, err := t.store.ListOpenPositions(ctx, run.ID)
	if err != nil {
		return nil, 0, err
	}

	managers := make(map[string]*position.Manager, len(open))
	invested := 0.0
	for i := range open {
		pos := open[i]
		managers[pos.Ticker] = position.NewManagerFor(&pos, run.TrailingStopPct, t.logger)
		invested += pos.EntryPrice * float64(pos.Quantity)
	}

	cash := run.CurrentCapital
	if len(open) > 0 {
		trades, err := t.store.ListTrades(ctx, run.ID)
		if err != nil {
			return nil, 0, err
		}
		realized := 0.0
		for _, tr := range trades {
			realized += tr.RealizedPnL
		}

		cash = run.StartingCapital + realized - invested
		t.logger.WithFields(map[string]interface{}{
			"run_id":    run.ID,
			"positions": len(open),
			"realized":  realized,
		}).Info("Resumed live run with open positions")
	}

	return managers, cash, nil
}

// openFromWatchlist fills up to MaxPositions slots, best score first,
// equal-weight across remaining slots.
func (t *PaperTrader) openFromWatchlist(ctx context.Context, run *contracts.Run, cash float64) (map[string]*position.Manager, float64, error) {
	entries, err := t.watchlist.ListWatchlist(ctx, run.ScreenID)
	if err != nil {
		return nil, 0, err
	}
	if len(entries) == 0 {
		return nil, 0, contracts.NewValidation("screen_id", "watchlist is empty, nothing to trade")
	}

	if cash <= 0 {
		cash = run.StartingCapital
	}

	managers := make(map[string]*position.Manager)
	now := time.Now()

	for _, entry := range entries {
		if len(managers) >= run.MaxPositions {
			break
		}

		quote, quoteErr := t.quotes.GetQuote(ctx, entry.Ticker)
		if quoteErr != nil {
			t.logger.WithFields(map[string]interface{}{
				"ticker": entry.Ticker,
				"error":  quoteErr.Error(),
			}).Warn("Skipping entry candidate without a quote")
			continue
		}

		slots := run.MaxPositions - len(managers)
		quantity := int64(math.Floor(cash / float64(slots) / quote.Price))
		if quantity < 1 {
			continue
		}

		mgr := position.NewManager(run.TrailingStopPct, t.logger)
		pos, openErr := mgr.Open(entry.Ticker, quantity, quote.Price, now)
		if openErr != nil {
			return nil, 0, openErr
		}
		pos.RunID = run.ID

		if saveErr := t.store.SavePosition(ctx, pos); saveErr != nil {
			return nil, 0, saveErr
		}

		cash -= quote.Price * float64(quantity)
		managers[entry.Ticker] = mgr

		t.notifier.Notify(ctx, "Position opened", entry.Ticker)
	}

	return managers, cash, nil
}

// finalize computes aggregates from the run's recorded trades and writes
// the terminal state.
func (t *PaperTrader) finalize(ctx context.Context, run *contracts.Run) {
	trades, err := t.store.ListTrades(ctx, run.ID)
	if err != nil {
		t.logger.WithError(err).Error("Failed to load trades for run aggregates")
	} else {
		if run.FinalCapital == 0 {
			run.FinalCapital = run.CurrentCapital
		}
		ApplyStats(run, ComputeStats(run.StartingCapital, run.FinalCapital, trades, nil))
	}

	if err := t.store.UpdateRun(ctx, run); err != nil {
		t.logger.WithError(err).Error("Failed to persist terminal run state")
		return
	}

	t.logger.WithFields(map[string]interface{}{
		"run_id": run.ID,
		"status": run.Status,
		"trades": run.TotalTrades,
	}).Info("Live run finalized")
}
