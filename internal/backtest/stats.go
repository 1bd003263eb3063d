package backtest

import (
	"time"

	"github.com/mwhitt/alphascreen/internal/contracts"
)

const minutesPerDay = 1440.0

// Stats are the aggregate performance numbers for a finished run.
type Stats struct {
	TotalTrades     int     `json:"total_trades"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	WinRate         float64 `json:"win_rate"`
	AvgWinAmount    float64 `json:"avg_win_amount"`
	AvgLossAmount   float64 `json:"avg_loss_amount"`
	AvgHoldTimeDays float64 `json:"avg_hold_time_days"`
	TotalReturnPct  float64 `json:"total_return_pct"`
	MaxDrawdownPct  float64 `json:"max_drawdown_pct"`
}

// EquityPoint is one sample of the run's equity curve.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

// ComputeStats aggregates trade outcomes. A trade with zero P&L counts as
// a loss. Averages over an empty subset are zero, not NaN.
func ComputeStats(startingCapital, finalCapital float64, trades []contracts.Trade, equity []EquityPoint) Stats {
	stats := Stats{TotalTrades: len(trades)}

	var winSum, lossSum, holdSum float64

	for _, t := range trades {
		holdSum += t.HoldTimeMinutes

		if t.RealizedPnL > 0 {
			stats.WinningTrades++
			winSum += t.RealizedPnL
		} else {
			stats.LosingTrades++
			lossSum += t.RealizedPnL
		}
	}

	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100
		stats.AvgHoldTimeDays = holdSum / float64(stats.TotalTrades) / minutesPerDay
	}
	if stats.WinningTrades > 0 {
		stats.AvgWinAmount = winSum / float64(stats.WinningTrades)
	}
	if stats.LosingTrades > 0 {
		stats.AvgLossAmount = lossSum / float64(stats.LosingTrades)
	}
	if startingCapital > 0 {
		stats.TotalReturnPct = (finalCapital - startingCapital) / startingCapital * 100
	}

	stats.MaxDrawdownPct = maxDrawdown(equity)

	return stats
}

// maxDrawdown returns the largest peak-to-trough equity decline as a
// positive percentage.
func maxDrawdown(equity []EquityPoint) float64 {
	var peak, worst float64

	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak * 100
			if dd > worst {
				worst = dd
			}
		}
	}

	return worst
}

// ApplyStats copies the aggregates onto the run record.
func ApplyStats(run *contracts.Run, stats Stats) {
	run.TotalTrades = stats.TotalTrades
	run.WinningTrades = stats.WinningTrades
	run.LosingTrades = stats.LosingTrades
	run.WinRate = stats.WinRate
	run.AvgWinAmount = stats.AvgWinAmount
	run.AvgLossAmount = stats.AvgLossAmount
	run.AvgHoldTimeDays = stats.AvgHoldTimeDays
	run.TotalReturnPct = stats.TotalReturnPct
}
