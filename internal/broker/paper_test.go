package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhitt/alphascreen/pkg/logger"
)

func TestPaperBrokerBuySell(t *testing.T) {
	b := NewPaperBroker(10000, logger.NewNop())
	ctx := context.Background()

	buy, err := b.CreateOrder(ctx, "AAPL", SideBuy, 50, 100)
	require.NoError(t, err)
	assert.Equal(t, OrderFilled, buy.Status)
	assert.Equal(t, 100.0, buy.FillPrice)

	account, err := b.GetAccount(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 5000.0, account.Cash, 1e-9)
	assert.InDelta(t, 10000.0, account.Equity, 1e-9)

	positions, err := b.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Ticker)

	sell, err := b.CreateOrder(ctx, "AAPL", SideSell, 50, 110)
	require.NoError(t, err)
	assert.Equal(t, OrderFilled, sell.Status)

	account, err = b.GetAccount(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10500.0, account.Cash, 1e-9)

	positions, err = b.GetPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestPaperBrokerRejections(t *testing.T) {
	b := NewPaperBroker(1000, logger.NewNop())
	ctx := context.Background()

	t.Run("insufficient cash", func(t *testing.T) {
		order, err := b.CreateOrder(ctx, "AAPL", SideBuy, 100, 100)
		require.Error(t, err)
		assert.Equal(t, OrderRejected, order.Status)
	})

	t.Run("sell without position", func(t *testing.T) {
		order, err := b.CreateOrder(ctx, "MSFT", SideSell, 10, 100)
		require.Error(t, err)
		assert.Equal(t, OrderRejected, order.Status)
	})

	t.Run("partial sell", func(t *testing.T) {
		_, err := b.CreateOrder(ctx, "NVDA", SideBuy, 5, 100)
		require.NoError(t, err)

		order, err := b.CreateOrder(ctx, "NVDA", SideSell, 3, 100)
		require.Error(t, err)
		assert.Equal(t, OrderRejected, order.Status)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		_, err := b.CreateOrder(ctx, "AAPL", SideBuy, 0, 100)
		assert.Error(t, err)
	})
}
