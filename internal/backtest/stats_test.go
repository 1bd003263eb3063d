package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mwhitt/alphascreen/internal/contracts"
)

func trade(pnl, holdMinutes float64) contracts.Trade {
	return contracts.Trade{RealizedPnL: pnl, HoldTimeMinutes: holdMinutes}
}

func TestComputeStats(t *testing.T) {
	trades := []contracts.Trade{
		trade(50, 1440),
		trade(-20, 720),
		trade(30, 2880),
		trade(-10, 720),
	}

	stats := ComputeStats(10000, 10050, trades, nil)

	assert.Equal(t, 4, stats.TotalTrades)
	assert.Equal(t, 2, stats.WinningTrades)
	assert.Equal(t, 2, stats.LosingTrades)
	assert.InDelta(t, 50.0, stats.WinRate, 1e-9)
	assert.InDelta(t, 40.0, stats.AvgWinAmount, 1e-9)
	assert.InDelta(t, -15.0, stats.AvgLossAmount, 1e-9)
	assert.InDelta(t, 1.0, stats.AvgHoldTimeDays, 1e-9) // (1+0.5+2+0.5)/4 days
	assert.InDelta(t, 0.5, stats.TotalReturnPct, 1e-9)
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(10000, 10000, nil, nil)

	assert.Equal(t, 0, stats.TotalTrades)
	assert.Equal(t, 0.0, stats.WinRate)
	assert.Equal(t, 0.0, stats.AvgWinAmount)
	assert.Equal(t, 0.0, stats.AvgLossAmount)
	assert.Equal(t, 0.0, stats.AvgHoldTimeDays)
	assert.Equal(t, 0.0, stats.TotalReturnPct)
}

func TestComputeStatsZeroPnLCountsAsLoss(t *testing.T) {
	stats := ComputeStats(1000, 1000, []contracts.Trade{trade(0, 60)}, nil)

	assert.Equal(t, 1, stats.LosingTrades)
	assert.Equal(t, 0, stats.WinningTrades)
	assert.Equal(t, 0.0, stats.WinRate)
}

func TestComputeStatsAllWinners(t *testing.T) {
	stats := ComputeStats(1000, 1100, []contracts.Trade{trade(60, 60), trade(40, 60)}, nil)

	assert.InDelta(t, 100.0, stats.WinRate, 1e-9)
	assert.InDelta(t, 50.0, stats.AvgWinAmount, 1e-9)
	assert.Equal(t, 0.0, stats.AvgLossAmount)
	assert.InDelta(t, 10.0, stats.TotalReturnPct, 1e-9)
}

func TestMaxDrawdown(t *testing.T) {
	day := func(i int) time.Time {
		return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}

	equity := []EquityPoint{
		{Date: day(0), Equity: 100},
		{Date: day(1), Equity: 120},
		{Date: day(2), Equity: 90}, // 25% off the 120 peak
		{Date: day(3), Equity: 130},
		{Date: day(4), Equity: 117},
	}

	assert.InDelta(t, 25.0, maxDrawdown(equity), 1e-9)
	assert.Equal(t, 0.0, maxDrawdown(nil))
}
