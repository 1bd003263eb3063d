package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/mwhitt/alphascreen/internal/backtest"
	"github.com/mwhitt/alphascreen/internal/broker"
	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/internal/earnings"
	"github.com/mwhitt/alphascreen/internal/position"
	"github.com/mwhitt/alphascreen/internal/screening"
	"github.com/mwhitt/alphascreen/pkg/logger"
)

// RunStore is the run/position/trade persistence the orchestrator needs.
type RunStore interface {
	backtest.LiveStore
	CreateRun(ctx context.Context, run *contracts.Run) error
	GetRun(ctx context.Context, runID int64) (*contracts.Run, error)
	GetPosition(ctx context.Context, positionID int64) (*contracts.Position, error)
}

// ScreenStore resolves screen criteria for run validation.
type ScreenStore interface {
	GetCriteria(ctx context.Context, screenID int64) (*contracts.ScreenCriteria, error)
}

// BacktestRequest are the caller-supplied parameters for a new run.
type BacktestRequest struct {
	ScreenID        int64     `json:"screen_id"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	StartingCapital float64   `json:"starting_capital"`
	MaxPositions    int       `json:"max_positions"`
	TrailingStopPct float64   `json:"trailing_stop_pct"`
}

// Orchestrator coordinates the screening, earnings, backtest and
// paper-trading engines and owns the lifecycle of async runs.
type Orchestrator struct {
	screener  *screening.Screener
	detector  *earnings.Detector
	simulator *backtest.Simulator
	trader    *backtest.PaperTrader
	runs      RunStore
	screens   ScreenStore
	quotes    contracts.QuoteProvider
	broker    broker.Broker
	logger    *logger.Logger

	mu     sync.Mutex
	active map[int64]context.CancelFunc
}

// New creates the orchestrator.
func New(
	screener *screening.Screener,
	detector *earnings.Detector,
	simulator *backtest.Simulator,
	trader *backtest.PaperTrader,
	runs RunStore,
	screens ScreenStore,
	quotes contracts.QuoteProvider,
	brk broker.Broker,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		screener:  screener,
		detector:  detector,
		simulator: simulator,
		trader:    trader,
		runs:      runs,
		screens:   screens,
		quotes:    quotes,
		broker:    brk,
		logger:    log,
		active:    make(map[int64]context.CancelFunc),
	}
}

// RunScreening executes one synchronous screening pass.
func (o *Orchestrator) RunScreening(ctx context.Context, screenID int64) (*screening.Result, error) {
	return o.screener.Run(ctx, screenID)
}

// IdentifyEarningsOpportunities flags earnings beats on the watchlist.
func (o *Orchestrator) IdentifyEarningsOpportunities(ctx context.Context, screenID int64, day time.Time) ([]contracts.EarningsOpportunity, *contracts.EarningsSummary, error) {
	return o.detector.Identify(ctx, screenID, day)
}

// StartBacktest validates the request, creates the run record and kicks
// off the historical simulation in the background. The run is returned
// immediately in RUNNING state.
func (o *Orchestrator) StartBacktest(ctx context.Context, req BacktestRequest) (*contracts.Run, error) {
	run, err := o.createRun(ctx, req, contracts.RunHistorical)
	if err != nil {
		return nil, err
	}

	o.launch(run, func(runCtx context.Context) error {
		return o.simulator.Run(runCtx, run)
	})

	return run, nil
}

// StartPaperTrade creates a LIVE run and starts the tick loop in the
// background.
func (o *Orchestrator) StartPaperTrade(ctx context.Context, req BacktestRequest) (*contracts.Run, error) {
	req.StartDate = time.Now()
	req.EndDate = req.StartDate

	run, err := o.createRun(ctx, req, contracts.RunLive)
	if err != nil {
		return nil, err
	}

	o.launch(run, func(runCtx context.Context) error {
		return o.trader.Run(runCtx, run)
	})

	return run, nil
}

// ResumeRun re-attaches the paper trader to a RUNNING live run, e.g. after
// a process restart.
func (o *Orchestrator) ResumeRun(ctx context.Context, runID int64) (*contracts.Run, error) {
	run, err := o.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		return nil, contracts.NewValidation("run_id", "run is already finished")
	}
	if run.Type != contracts.RunLive {
		return nil, contracts.NewValidation("run_id", "only live runs can be resumed")
	}

	o.launch(run, func(runCtx context.Context) error {
		return o.trader.Run(runCtx, run)
	})

	return run, nil
}

// StopRun requests a graceful stop. The run finishes its current step and
// is finalized as STOPPED by its driver.
func (o *Orchestrator) StopRun(ctx context.Context, runID int64) error {
	o.mu.Lock()
	cancel, ok := o.active[runID]
	o.mu.Unlock()

	if ok {
		cancel()
		return nil
	}

	// Not owned by this process: verify it exists and is stoppable so the
	// caller gets a precise error.
	run, err := o.runs.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return contracts.NewValidation("run_id", "run is already finished")
	}

	return contracts.NewConflict("run is not managed by this process")
}

// SellPosition closes one open position at the current market price with
// reason MANUAL.
func (o *Orchestrator) SellPosition(ctx context.Context, positionID int64) (*contracts.Trade, error) {
	pos, err := o.runs.GetPosition(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if pos.Status != contracts.PositionOpen {
		return nil, contracts.NewValidation("position_id", "position is not open")
	}

	run, err := o.runs.GetRun(ctx, pos.RunID)
	if err != nil {
		return nil, err
	}

	quote, err := o.quotes.GetQuote(ctx, pos.Ticker)
	if err != nil {
		return nil, err
	}

	// Live runs route the sell through the broker. The position record is
	// the source of truth, so a broker failure is logged but does not block
	// the manual close.
	if run.Type == contracts.RunLive && o.broker != nil {
		if _, err := o.broker.CreateOrder(ctx, pos.Ticker, broker.SideSell, pos.Quantity, quote.Price); err != nil {
			o.logger.WithFields(map[string]interface{}{
				"ticker": pos.Ticker,
				"error":  err.Error(),
			}).Warn("Broker sell order failed, closing position record anyway")
		}
	}

	mgr := position.NewManagerFor(pos, run.TrailingStopPct, o.logger)
	trade, err := mgr.Close(quote.Price, time.Now(), contracts.ExitManual)
	if err != nil {
		return nil, err
	}

	if err := o.runs.SavePosition(ctx, pos); err != nil {
		return nil, err
	}
	if err := o.runs.InsertTrade(ctx, trade); err != nil {
		return nil, err
	}

	return trade, nil
}

// GetRun exposes run state for the API layer.
func (o *Orchestrator) GetRun(ctx context.Context, runID int64) (*contracts.Run, error) {
	return o.runs.GetRun(ctx, runID)
}

// createRun validates everything before any row is written.
func (o *Orchestrator) createRun(ctx context.Context, req BacktestRequest, runType contracts.RunType) (*contracts.Run, error) {
	if req.StartingCapital <= 0 {
		return nil, contracts.NewValidation("starting_capital", "must be positive")
	}
	if req.MaxPositions < 1 {
		return nil, contracts.NewValidation("max_positions", "must be at least 1")
	}
	if req.TrailingStopPct <= 0 || req.TrailingStopPct >= 100 {
		return nil, contracts.NewValidation("trailing_stop_pct", "must be between 0 and 100 exclusive")
	}
	if runType == contracts.RunHistorical && req.EndDate.Before(req.StartDate) {
		return nil, contracts.NewValidation("end_date", "must not precede start_date")
	}

	if _, err := o.screens.GetCriteria(ctx, req.ScreenID); err != nil {
		return nil, err
	}

	run := &contracts.Run{
		ScreenID:        req.ScreenID,
		Type:            runType,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		StartingCapital: req.StartingCapital,
		CurrentCapital:  req.StartingCapital,
		MaxPositions:    req.MaxPositions,
		TrailingStopPct: req.TrailingStopPct,
		Status:          contracts.RunRunning,
	}

	if err := o.runs.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	return run, nil
}

// launch runs a driver in the background, tracked so StopRun can cancel
// it. Drivers guarantee their own terminal status write.
func (o *Orchestrator) launch(run *contracts.Run, driver func(context.Context) error) {
	runCtx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	o.active[run.ID] = cancel
	o.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			o.mu.Lock()
			delete(o.active, run.ID)
			o.mu.Unlock()
		}()

		if err := driver(runCtx); err != nil {
			o.logger.WithFields(map[string]interface{}{
				"run_id": run.ID,
				"error":  err.Error(),
			}).Error("Run failed")
		}
	}()
}
