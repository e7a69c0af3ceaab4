package exchange

import (
	"context"
	"errors"

	"grid-bot-go/internal/feed"
	"grid-bot-go/internal/models"
)

// ErrOfflineOrder is returned by order operations of the offline exchange.
// Offline runs imply dry-run, where fills are simulated locally and no order
// ever reaches an exchange.
var ErrOfflineOrder = errors.New("exchange: order operations are not available offline")

// OfflineExchange replays a synthetic price feed. It is deterministic when
// the feed is seeded.
type OfflineExchange struct {
	feed *feed.Feed
}

// NewOfflineExchange wraps an offline feed.
func NewOfflineExchange(f *feed.Feed) *OfflineExchange {
	return &OfflineExchange{feed: f}
}

// FetchPrice returns the next feed price, or ErrFeedExhausted when the feed
// has run dry.
func (e *OfflineExchange) FetchPrice(_ context.Context, _ string) (float64, error) {
	price, ok := e.feed.Next()
	if !ok {
		return 0, ErrFeedExhausted
	}
	return price, nil
}

// Exhausted reports whether the feed has run dry.
func (e *OfflineExchange) Exhausted() bool { return e.feed.Exhausted() }

func (e *OfflineExchange) CreateLimitOrder(context.Context, string, models.Side, float64, float64) (*OrderAck, error) {
	return nil, ErrOfflineOrder
}

func (e *OfflineExchange) CreateMarketOrder(context.Context, string, models.Side, float64) (*OrderAck, error) {
	return nil, ErrOfflineOrder
}

func (e *OfflineExchange) FetchOrder(context.Context, string, string) (*OrderInfo, error) {
	return nil, ErrOfflineOrder
}

func (e *OfflineExchange) CancelOrder(context.Context, string, string) error {
	return ErrOfflineOrder
}

func (e *OfflineExchange) FetchBalance(_ context.Context, asset string) (Balance, error) {
	return Balance{Asset: asset}, nil
}

func (e *OfflineExchange) Close() error { return nil }
