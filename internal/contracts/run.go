package contracts

import "time"

// RunType distinguishes historical replay from live paper trading.
type RunType string

const (
	RunHistorical RunType = "HISTORICAL"
	RunLive       RunType = "LIVE"
)

// RunStatus is the run lifecycle state. STOPPED, FAILED and COMPLETED are
// terminal; aggregates are never mutated after a terminal state.
type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunStopped   RunStatus = "STOPPED"
	RunFailed    RunStatus = "FAILED"
	RunCompleted RunStatus = "COMPLETED"
)

// Terminal reports whether the status allows no further mutation.
func (s RunStatus) Terminal() bool {
	return s == RunStopped || s == RunFailed || s == RunCompleted
}

// Run is one backtest or paper-trading execution. A run owns its trades
// exclusively.
type Run struct {
	ID              int64
	ScreenID        int64
	Type            RunType
	StartDate       time.Time
	EndDate         time.Time
	StartingCapital float64
	CurrentCapital  float64
	FinalCapital    float64
	MaxPositions    int
	TrailingStopPct float64
	Status          RunStatus
	Error           string

	// Aggregates, computed once on completion or stop
	TotalReturnPct  float64
	WinRate         float64
	AvgWinAmount    float64
	AvgLossAmount   float64
	AvgHoldTimeDays float64
	TotalTrades     int
	WinningTrades   int
	LosingTrades    int

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}
