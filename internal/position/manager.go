package position

import (
	"fmt"
	"time"

	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/pkg/logger"
)

// Manager owns the lifecycle of one position: entry, trailing-stop
// ratchet, exit-trigger evaluation and realized P&L on close.
// State machine: PENDING -> OPEN -> CLOSED, CLOSED terminal.
type Manager struct {
	pos             *contracts.Position
	trailingStopPct float64
	logger          *logger.Logger
}

// ExitDecision is the outcome of one exit evaluation. Reason is only
// meaningful when Exit is true.
type ExitDecision struct {
	Exit   bool
	Reason contracts.ExitReason
}

// NewManager creates a manager for a not-yet-opened position.
func NewManager(trailingStopPct float64, log *logger.Logger) *Manager {
	return &Manager{
		trailingStopPct: trailingStopPct,
		logger:          log,
	}
}

// NewManagerFor adopts an existing open position, e.g. when resuming a
// live paper-trading run.
func NewManagerFor(pos *contracts.Position, trailingStopPct float64, log *logger.Logger) *Manager {
	return &Manager{
		pos:             pos,
		trailingStopPct: trailingStopPct,
		logger:          log,
	}
}

// Position returns the managed position, nil before Open.
func (m *Manager) Position() *contracts.Position {
	return m.pos
}

// Open creates the OPEN position and seeds the trailing stop at
// entryPrice * (1 - trailingStopPct/100).
func (m *Manager) Open(ticker string, quantity int64, entryPrice float64, entryTime time.Time) (*contracts.Position, error) {
	if m.pos != nil {
		return nil, fmt.Errorf("position already opened for %s", m.pos.Ticker)
	}
	if quantity <= 0 {
		return nil, contracts.NewValidation("quantity", "must be positive")
	}
	if entryPrice <= 0 {
		return nil, contracts.NewValidation("entryPrice", "must be positive")
	}

	m.pos = &contracts.Position{
		Ticker:            ticker,
		Quantity:          quantity,
		EntryPrice:        entryPrice,
		EntryTime:         entryTime,
		CurrentPrice:      entryPrice,
		TrailingStopPrice: entryPrice * (1 - m.trailingStopPct/100),
		Status:            contracts.PositionOpen,
		UpdatedAt:         entryTime,
	}

	m.logger.WithFields(map[string]interface{}{
		"ticker":      ticker,
		"quantity":    quantity,
		"entry_price": entryPrice,
		"stop_price":  m.pos.TrailingStopPrice,
	}).Info("Position opened")

	return m.pos, nil
}

// OnPriceUpdate ratchets the trailing stop and recomputes unrealized P&L.
// The stop only ever moves up: max(current stop, price * (1 - pct/100)).
func (m *Manager) OnPriceUpdate(currentPrice float64, now time.Time) error {
	if err := m.requireOpen(); err != nil {
		return err
	}

	m.pos.CurrentPrice = currentPrice
	m.pos.UnrealizedPnL = (currentPrice - m.pos.EntryPrice) * float64(m.pos.Quantity)
	m.pos.UpdatedAt = now

	candidate := currentPrice * (1 - m.trailingStopPct/100)
	if candidate > m.pos.TrailingStopPrice {
		m.pos.TrailingStopPrice = candidate

		m.logger.WithFields(map[string]interface{}{
			"ticker":     m.pos.Ticker,
			"price":      currentPrice,
			"stop_price": candidate,
		}).Debug("Trailing stop raised")
	}

	return nil
}

// EvaluateExit checks exit triggers in priority order: trailing stop,
// then negative news, then the session time cutoff. The first matching
// rule wins; later rules are not evaluated once one fires.
func (m *Manager) EvaluateExit(currentPrice float64, now time.Time, cutoffHour, cutoffMinute int, negativeNews bool) ExitDecision {
	if m.pos == nil || m.pos.Status != contracts.PositionOpen {
		return ExitDecision{}
	}

	if currentPrice <= m.pos.TrailingStopPrice {
		return ExitDecision{Exit: true, Reason: contracts.ExitStopLoss}
	}

	if negativeNews {
		return ExitDecision{Exit: true, Reason: contracts.ExitNegativeNews}
	}

	if pastCutoff(now, cutoffHour, cutoffMinute) {
		return ExitDecision{Exit: true, Reason: contracts.ExitTimeCutoff}
	}

	return ExitDecision{}
}

// Close transitions to CLOSED and emits the trade record. Terminal: a
// closed position cannot be mutated or reopened.
func (m *Manager) Close(exitPrice float64, exitTime time.Time, reason contracts.ExitReason) (*contracts.Trade, error) {
	if err := m.requireOpen(); err != nil {
		return nil, err
	}

	m.pos.Status = contracts.PositionClosed
	m.pos.CurrentPrice = exitPrice
	m.pos.UpdatedAt = exitTime

	realized := (exitPrice - m.pos.EntryPrice) * float64(m.pos.Quantity)
	m.pos.UnrealizedPnL = realized

	trade := &contracts.Trade{
		RunID:           m.pos.RunID,
		Ticker:          m.pos.Ticker,
		Quantity:        m.pos.Quantity,
		EntryPrice:      m.pos.EntryPrice,
		EntryTime:       m.pos.EntryTime,
		ExitPrice:       exitPrice,
		ExitTime:        exitTime,
		RealizedPnL:     realized,
		HoldTimeMinutes: exitTime.Sub(m.pos.EntryTime).Minutes(),
		Reason:          reason,
	}

	m.logger.WithFields(map[string]interface{}{
		"ticker":       trade.Ticker,
		"exit_price":   exitPrice,
		"realized_pnl": realized,
		"reason":       reason,
		"hold_minutes": trade.HoldTimeMinutes,
	}).Info("Position closed")

	return trade, nil
}

// requireOpen guards mutations against unopened or terminal positions.
func (m *Manager) requireOpen() error {
	if m.pos == nil {
		return fmt.Errorf("position not opened")
	}
	if m.pos.Status == contracts.PositionClosed {
		return fmt.Errorf("position %s is closed", m.pos.Ticker)
	}
	if m.pos.Status != contracts.PositionOpen {
		return fmt.Errorf("position %s is %s", m.pos.Ticker, m.pos.Status)
	}
	return nil
}

// pastCutoff reports whether the wall clock has reached the configured
// session cutoff.
func pastCutoff(now time.Time, hour, minute int) bool {
	if now.Hour() > hour {
		return true
	}
	return now.Hour() == hour && now.Minute() >= minute
}
