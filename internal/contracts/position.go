package contracts

import "time"

// PositionStatus is the position lifecycle state.
// Transitions: PENDING -> OPEN -> CLOSED. CLOSED is terminal.
type PositionStatus string

const (
	PositionPending PositionStatus = "PENDING"
	PositionOpen    PositionStatus = "OPEN"
	PositionClosed  PositionStatus = "CLOSED"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitNegativeNews ExitReason = "NEGATIVE_NEWS"
	ExitTimeCutoff   ExitReason = "TIME_CUTOFF"
	ExitManual       ExitReason = "MANUAL"
	ExitProfitTarget ExitReason = "PROFIT_TARGET"
)

// Position is one simulated or live holding. Mutated by the position
// manager on every price tick; terminal on CLOSED.
type Position struct {
	ID                int64
	RunID             int64
	Ticker            string
	Quantity          int64
	EntryPrice        float64
	EntryTime         time.Time
	CurrentPrice      float64
	TrailingStopPrice float64
	UnrealizedPnL     float64
	Status            PositionStatus
	UpdatedAt         time.Time
}

// Trade is the immutable record emitted when a position closes. A trade
// exists iff its source position reached CLOSED.
type Trade struct {
	ID              int64
	RunID           int64
	Ticker          string
	Quantity        int64
	EntryPrice      float64
	EntryTime       time.Time
	ExitPrice       float64
	ExitTime        time.Time
	RealizedPnL     float64
	HoldTimeMinutes float64
	Reason          ExitReason
}
