package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/internal/position"
	"github.com/mwhitt/alphascreen/pkg/logger"
)

// Store is the persistence surface the simulator needs.
type Store interface {
	UpdateRun(ctx context.Context, run *contracts.Run) error
	TouchRun(ctx context.Context, runID int64) error
	SavePosition(ctx context.Context, pos *contracts.Position) error
	InsertTrade(ctx context.Context, trade *contracts.Trade) error
}

// WatchlistSource supplies entry candidates, best score first.
type WatchlistSource interface {
	ListWatchlist(ctx context.Context, screenID int64) ([]contracts.WatchlistEntry, error)
}

// Simulator replays a screen's watchlist over historical daily bars.
// Each day it first evaluates exits on open positions, then fills free
// slots from the watchlist with equal-weight sizing.
type Simulator struct {
	store     Store
	watchlist WatchlistSource
	bars      contracts.BarProvider
	logger    *logger.Logger
}

// NewSimulator creates a historical backtest simulator.
func NewSimulator(store Store, watchlist WatchlistSource, bars contracts.BarProvider, log *logger.Logger) *Simulator {
	return &Simulator{
		store:     store,
		watchlist: watchlist,
		bars:      bars,
		logger:    log,
	}
}

type openSlot struct {
	manager *position.Manager
}

// Run executes the backtest for an already-created RUNNING run and writes
// a terminal status no matter how it ends.
func (s *Simulator) Run(ctx context.Context, run *contracts.Run) (err error) {
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
		if updateErr := s.store.UpdateRun(context.WithoutCancel(ctx), run); updateErr != nil {
			s.logger.WithError(updateErr).Error("Failed to persist terminal run state")
			if err == nil {
				err = updateErr
			}
		}
	}()

	entries, err := s.watchlist.ListWatchlist(ctx, run.ScreenID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return contracts.NewValidation("screen_id", "watchlist is empty, nothing to trade")
	}

	symbols := make([]string, 0, len(entries))
	for _, e := range entries {
		symbols = append(symbols, e.Ticker)
	}

	allBars, err := s.bars.GetBars(ctx, symbols, "1D", run.StartDate, run.EndDate)
	if err != nil {
		return err
	}
	if len(allBars) == 0 {
		return contracts.NewValidation("date_range", "no historical bars for watchlist in range")
	}

	byDate := indexByDate(allBars)

	cash := run.StartingCapital
	open := make(map[string]*openSlot)
	traded := make(map[string]bool)
	equity := make([]EquityPoint, 0)
	trades := make([]contracts.Trade, 0)

	for day := run.StartDate; !day.After(run.EndDate); day = day.AddDate(0, 0, 1) {
		if ctx.Err() != nil {
			run.Status = contracts.RunStopped
			break
		}
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}

		prices, ok := byDate[dateKey(day)]
		if !ok {
			continue
		}

		// Exits first so freed capital is available for same-day entries.
		for ticker, slot := range open {
			price, has := prices[ticker]
			if !has {
				continue
			}

			if err := slot.manager.OnPriceUpdate(price, day); err != nil {
				return err
			}

			decision := slot.manager.EvaluateExit(price, day, 24, 0, false)
			if !decision.Exit {
				if saveErr := s.store.SavePosition(ctx, slot.manager.Position()); saveErr != nil {
					return saveErr
				}
				continue
			}

			trade, closeErr := s.closeSlot(ctx, slot, price, day, decision.Reason)
			if closeErr != nil {
				return closeErr
			}
			cash += price * float64(trade.Quantity)
			trades = append(trades, *trade)
			delete(open, ticker)
		}

		// Entries: best score first, equal-weight across remaining slots.
		for _, entry := range entries {
			if len(open) >= run.MaxPositions {
				break
			}
			if traded[entry.Ticker] {
				continue
			}

			price, has := prices[entry.Ticker]
			if !has || price <= 0 {
				continue
			}

			slots := run.MaxPositions - len(open)
			quantity := int64(math.Floor(cash / float64(slots) / price))
			if quantity < 1 {
				continue
			}

			mgr := position.NewManager(run.TrailingStopPct, s.logger)
			pos, openErr := mgr.Open(entry.Ticker, quantity, price, day)
			if openErr != nil {
				return openErr
			}
			pos.RunID = run.ID

			if saveErr := s.store.SavePosition(ctx, pos); saveErr != nil {
				return saveErr
			}

			cash -= price * float64(quantity)
			open[entry.Ticker] = &openSlot{manager: mgr}
			traded[entry.Ticker] = true
		}

		equity = append(equity, EquityPoint{Date: day, Equity: markToMarket(cash, open)})

		run.CurrentCapital = markToMarket(cash, open)
		if touchErr := s.store.TouchRun(ctx, run.ID); touchErr != nil {
			s.logger.WithError(touchErr).Warn("Failed to touch run")
		}
	}

	// Liquidate whatever is still open at its last seen price.
	for ticker, slot := range open {
		pos := slot.manager.Position()
		trade, closeErr := s.closeSlot(ctx, slot, pos.CurrentPrice, run.EndDate, contracts.ExitTimeCutoff)
		if closeErr != nil {
			return closeErr
		}
		cash += pos.CurrentPrice * float64(trade.Quantity)
		trades = append(trades, *trade)
		delete(open, ticker)
	}

	run.CurrentCapital = cash
	run.FinalCapital = cash
	ApplyStats(run, ComputeStats(run.StartingCapital, cash, trades, equity))

	s.logger.WithFields(map[string]interface{}{
		"run_id":        run.ID,
		"trades":        run.TotalTrades,
		"win_rate":      run.WinRate,
		"final_capital": run.FinalCapital,
		"return_pct":    run.TotalReturnPct,
	}).Info("Backtest finished")

	return nil
}

func (s *Simulator) closeSlot(ctx context.Context, slot *openSlot, price float64, when time.Time, reason contracts.ExitReason) (*contracts.Trade, error) {
	trade, err := slot.manager.Close(price, when, reason)
	if err != nil {
		return nil, err
	}

	if err := s.store.SavePosition(ctx, slot.manager.Position()); err != nil {
		return nil, err
	}
	if err := s.store.InsertTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("failed to record trade for %s: %w", trade.Ticker, err)
	}

	return trade, nil
}

func markToMarket(cash float64, open map[string]*openSlot) float64 {
	total := cash
	for _, slot := range open {
		pos := slot.manager.Position()
		total += pos.CurrentPrice * float64(pos.Quantity)
	}
	return total
}

func indexByDate(allBars map[string][]contracts.Bar) map[string]map[string]float64 {
	byDate := make(map[string]map[string]float64)
	for symbol, bars := range allBars {
		for _, bar := range bars {
			key := dateKey(bar.Date)
			if byDate[key] == nil {
				byDate[key] = make(map[string]float64)
			}
			byDate[key][symbol] = bar.Close
		}
	}
	return byDate
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
