package exchange

import (
	"context"
	"errors"

	"grid-bot-go/internal/models"
)

// ErrFeedExhausted is returned by FetchPrice when an offline feed in once
// mode has no prices left.
var ErrFeedExhausted = errors.New("exchange: price feed exhausted")

// OrderAck is the exchange's acknowledgement of a newly placed order.
type OrderAck struct {
	ID     string
	Symbol string
	Side   models.Side
	Price  float64
	Amount float64
	Status models.OrderStatus
}

// OrderInfo is the current exchange-side view of an order.
type OrderInfo struct {
	ID        string
	Status    models.OrderStatus
	FilledQty float64
	AvgPrice  float64
}

// Balance is the free and locked amount of one asset.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// Exchange is the market access contract. Live implementations talk to a
// real venue; the offline implementation replays a synthetic feed and never
// carries orders, since dry-run fills are simulated locally.
type Exchange interface {
	// FetchPrice returns the latest trade price for the symbol.
	FetchPrice(ctx context.Context, symbol string) (float64, error)
	// CreateLimitOrder places a resting limit order and returns its ack.
	CreateLimitOrder(ctx context.Context, symbol string, side models.Side, price, qty float64) (*OrderAck, error)
	// CreateMarketOrder places an immediate market order.
	CreateMarketOrder(ctx context.Context, symbol string, side models.Side, qty float64) (*OrderAck, error)
	// FetchOrder returns the current state of an order by id.
	FetchOrder(ctx context.Context, symbol, id string) (*OrderInfo, error)
	// CancelOrder cancels a resting order by id.
	CancelOrder(ctx context.Context, symbol, id string) error
	// FetchBalance returns the balance of one asset.
	FetchBalance(ctx context.Context, asset string) (Balance, error)

	Close() error
}
