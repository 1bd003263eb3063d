package broker

import (
	"context"
	"time"

	"github.com/mwhitt/alphascreen/internal/contracts"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderFilled   OrderStatus = "FILLED"
	OrderRejected OrderStatus = "REJECTED"
	OrderCanceled OrderStatus = "CANCELED"
)

// Order is a broker order request and its fill outcome.
type Order struct {
	ID        string
	Symbol    string
	Side      OrderSide
	Quantity  int64
	Price     float64
	FillPrice float64
	Status    OrderStatus
	CreatedAt time.Time
	FilledAt  time.Time
}

// Account is the broker account snapshot.
type Account struct {
	Cash      float64
	Equity    float64
	UpdatedAt time.Time
}

// Broker is the order execution surface. Simulated runs use PaperBroker;
// a live broker adapter implements the same interface.
type Broker interface {
	CreateOrder(ctx context.Context, symbol string, side OrderSide, quantity int64, price float64) (*Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetAccount(ctx context.Context) (*Account, error)
	GetPositions(ctx context.Context) ([]contracts.Position, error)
}
