package exchange

import (
	"context"
	"testing"

	"grid-bot-go/internal/feed"
	"grid-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfflineExchangeReplaysFeed(t *testing.T) {
	f, err := feed.New(&models.Config{OfflinePrices: []float64{100, 101}, OfflineOnce: true})
	require.NoError(t, err)
	ex := NewOfflineExchange(f)

	ctx := context.Background()
	p, err := ex.FetchPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 100.0, p)

	p, err = ex.FetchPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 101.0, p)

	_, err = ex.FetchPrice(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, ErrFeedExhausted)
	assert.True(t, ex.Exhausted())
}

func TestOfflineExchangeRejectsOrders(t *testing.T) {
	f, err := feed.New(&models.Config{OfflinePrices: []float64{100}})
	require.NoError(t, err)
	ex := NewOfflineExchange(f)

	ctx := context.Background()
	_, err = ex.CreateLimitOrder(ctx, "BTCUSDT", models.SideBuy, 100, 1)
	assert.ErrorIs(t, err, ErrOfflineOrder)
	_, err = ex.CreateMarketOrder(ctx, "BTCUSDT", models.SideSell, 1)
	assert.ErrorIs(t, err, ErrOfflineOrder)
	assert.ErrorIs(t, ex.CancelOrder(ctx, "BTCUSDT", "x"), ErrOfflineOrder)
}
