package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/pkg/logger"
)

// PaperBroker fills every order immediately at the requested price against
// a simulated cash balance. Used by backtests and paper-trading runs.
type PaperBroker struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]*contracts.Position
	orderSeq  int64
	logger    *logger.Logger
}

// NewPaperBroker creates a paper broker with a starting cash balance.
func NewPaperBroker(startingCash float64, log *logger.Logger) *PaperBroker {
	return &PaperBroker{
		cash:      startingCash,
		positions: make(map[string]*contracts.Position),
		logger:    log,
	}
}

// CreateOrder fills immediately. Buys are rejected when they exceed cash;
// sells are rejected without a matching position.
func (b *PaperBroker) CreateOrder(ctx context.Context, symbol string, side OrderSide, quantity int64, price float64) (*Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if quantity <= 0 {
		return nil, contracts.NewValidation("quantity", "must be positive")
	}
	if price <= 0 {
		return nil, contracts.NewValidation("price", "must be positive")
	}

	now := time.Now()
	b.orderSeq++
	order := &Order{
		ID:        fmt.Sprintf("paper-%d", b.orderSeq),
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		CreatedAt: now,
	}

	cost := price * float64(quantity)

	switch side {
	case SideBuy:
		if cost > b.cash {
			order.Status = OrderRejected
			return order, fmt.Errorf("insufficient cash: need %.2f, have %.2f", cost, b.cash)
		}
		b.cash -= cost
		b.positions[symbol] = &contracts.Position{
			Ticker:       symbol,
			Quantity:     quantity,
			EntryPrice:   price,
			EntryTime:    now,
			CurrentPrice: price,
			Status:       contracts.PositionOpen,
			UpdatedAt:    now,
		}

	case SideSell:
		pos, ok := b.positions[symbol]
		if !ok {
			order.Status = OrderRejected
			return order, fmt.Errorf("no open position for %s", symbol)
		}
		if quantity != pos.Quantity {
			order.Status = OrderRejected
			return order, fmt.Errorf("partial sells not supported: position holds %d", pos.Quantity)
		}
		b.cash += cost
		delete(b.positions, symbol)

	default:
		return nil, contracts.NewValidation("side", "must be BUY or SELL")
	}

	order.Status = OrderFilled
	order.FillPrice = price
	order.FilledAt = now

	b.logger.WithFields(map[string]interface{}{
		"order_id": order.ID,
		"symbol":   symbol,
		"side":     side,
		"quantity": quantity,
		"price":    price,
	}).Debug("Paper order filled")

	return order, nil
}

// CancelOrder is a no-op; paper orders fill synchronously.
func (b *PaperBroker) CancelOrder(ctx context.Context, orderID string) error {
	return fmt.Errorf("order %s already filled", orderID)
}

// GetAccount returns the simulated account state.
func (b *PaperBroker) GetAccount(ctx context.Context) (*Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	equity := b.cash
	for _, pos := range b.positions {
		equity += pos.CurrentPrice * float64(pos.Quantity)
	}

	return &Account{
		Cash:      b.cash,
		Equity:    equity,
		UpdatedAt: time.Now(),
	}, nil
}

// GetPositions returns open simulated positions.
func (b *PaperBroker) GetPositions(ctx context.Context) ([]contracts.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]contracts.Position, 0, len(b.positions))
	for _, pos := range b.positions {
		out = append(out, *pos)
	}
	return out, nil
}
