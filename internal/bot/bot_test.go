package bot

import (
	"context"
	"testing"

	"grid-bot-go/internal/exchange"
	"grid-bot-go/internal/feed"
	"grid-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryRepository is an in-memory storage.Repository for engine tests.
// Orders keep insertion order so ticks are deterministic.
type memoryRepository struct {
	state  *models.BotState
	orders []models.Order
	trades []models.Trade
	snaps  []models.EquitySnapshot
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{}
}

func (m *memoryRepository) LoadBotState() (*models.BotState, error) {
	if m.state == nil {
		return nil, nil
	}
	copied := *m.state
	return &copied, nil
}

func (m *memoryRepository) SaveBotState(state *models.BotState) error {
	copied := *state
	m.state = &copied
	return nil
}

func (m *memoryRepository) LoadActiveOrders() ([]models.Order, error) {
	var open []models.Order
	for _, order := range m.orders {
		if order.Status == models.OrderOpen {
			open = append(open, order)
		}
	}
	return open, nil
}

func (m *memoryRepository) SaveActiveOrders(orders []models.Order) error {
	m.orders = append([]models.Order(nil), orders...)
	return nil
}

func (m *memoryRepository) UpsertActiveOrder(order models.Order) error {
	for i := range m.orders {
		if m.orders[i].ID == order.ID {
			m.orders[i] = order
			return nil
		}
	}
	m.orders = append(m.orders, order)
	return nil
}

func (m *memoryRepository) DeleteActiveOrder(id string) error {
	for i := range m.orders {
		if m.orders[i].ID == id {
			m.orders = append(m.orders[:i], m.orders[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memoryRepository) ReplaceActiveOrder(oldID string, newOrder *models.Order) error {
	m.DeleteActiveOrder(oldID)
	if newOrder != nil {
		m.orders = append(m.orders, *newOrder)
	}
	return nil
}

func (m *memoryRepository) ClearActiveOrders() error {
	m.orders = nil
	return nil
}

func (m *memoryRepository) LogTrade(trade models.Trade) error {
	m.trades = append(m.trades, trade)
	return nil
}

func (m *memoryRepository) SaveEquitySnapshot(snap models.EquitySnapshot) error {
	m.snaps = append(m.snaps, snap)
	return nil
}

func (m *memoryRepository) Reset(defaults models.BotState) error {
	m.orders = nil
	copied := defaults
	m.state = &copied
	return nil
}

func (m *memoryRepository) Close() error { return nil }

// testConfig builds an offline paper config over the canonical 100..200
// four-level grid.
func testConfig(prices []float64) *models.Config {
	return &models.Config{
		Symbol:          "BTCUSDT",
		BaseAsset:       "BTC",
		QuoteAsset:      "USDT",
		LowerPrice:      100,
		UpperPrice:      200,
		GridLevels:      4,
		GridType:        models.GridArithmetic,
		OrderSize:       0.1,
		StrategyID:      "classic_grid",
		DryRun:          true,
		Offline:         true,
		OfflineOnce:     true,
		OfflinePrices:   prices,
		IntervalSeconds: 0,
		Risk: models.RiskConfig{
			Enabled: false,
		},
		Accounting: models.AccountingConfig{
			Enabled:      true,
			InitialQuote: 1000,
			FeeRate:      0.001,
		},
	}
}

func newTestBot(t *testing.T, cfg *models.Config, repo *memoryRepository) *GridBot {
	t.Helper()
	f, err := feed.New(cfg)
	require.NoError(t, err)
	b, err := New(cfg, exchange.NewOfflineExchange(f), repo, zap.NewNop().Sugar())
	require.NoError(t, err)
	return b
}

func sides(orders []models.Order) (buys, sells int) {
	for _, order := range orders {
		if order.Side == models.SideBuy {
			buys++
		} else {
			sells++
		}
	}
	return buys, sells
}

func findByPrice(orders []models.Order, price float64) *models.Order {
	for i := range orders {
		if orders[i].Price == price {
			return &orders[i]
		}
	}
	return nil
}

func TestInitialLadderSkipsCurrentPrice(t *testing.T) {
	cfg := testConfig([]float64{150, 150})
	cfg.MaxSteps = 1
	repo := newMemoryRepository()
	b := newTestBot(t, cfg, repo)

	rep, err := b.Run(context.Background())
	require.NoError(t, err)

	orders, err := repo.LoadActiveOrders()
	require.NoError(t, err)
	require.Len(t, orders, 4)
	buys, sells := sides(orders)
	assert.Equal(t, 2, buys)
	assert.Equal(t, 2, sells)
	assert.Nil(t, findByPrice(orders, 150), "level at the current price stays empty")
	assert.Equal(t, models.SideBuy, findByPrice(orders, 100).Side)
	assert.Equal(t, models.SideBuy, findByPrice(orders, 125).Side)
	assert.Equal(t, models.SideSell, findByPrice(orders, 175).Side)
	assert.Equal(t, models.SideSell, findByPrice(orders, 200).Side)

	assert.Equal(t, models.StatusCompleted, rep.Status)
	assert.Equal(t, ReasonMaxSteps, rep.StopReason)
	assert.Equal(t, 1, rep.Steps)
	assert.Zero(t, rep.Trades)
}

func TestBuyFillRotatesToSell(t *testing.T) {
	cfg := testConfig([]float64{150, 120})
	cfg.MaxSteps = 1
	repo := newMemoryRepository()
	b := newTestBot(t, cfg, repo)

	rep, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Trades)

	orders, err := repo.LoadActiveOrders()
	require.NoError(t, err)
	require.Len(t, orders, 4, "rotation keeps the order count unchanged")
	assert.Nil(t, findByPrice(orders, 125), "the filled buy is gone")

	rotated := findByPrice(orders, 150)
	require.NotNil(t, rotated, "a sell appears one level above the filled buy")
	assert.Equal(t, models.SideSell, rotated.Side)

	require.Len(t, repo.trades, 1)
	assert.Equal(t, models.SideBuy, repo.trades[0].Side)
	assert.Equal(t, 125.0, repo.trades[0].Price)
}

func TestSellFillRotatesToBuy(t *testing.T) {
	cfg := testConfig([]float64{150, 180})
	cfg.MaxSteps = 1
	cfg.Accounting.InitialBase = 1
	repo := newMemoryRepository()
	b := newTestBot(t, cfg, repo)

	rep, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Trades)

	orders, err := repo.LoadActiveOrders()
	require.NoError(t, err)
	require.Len(t, orders, 4)
	assert.Nil(t, findByPrice(orders, 175))

	rotated := findByPrice(orders, 150)
	require.NotNil(t, rotated, "a buy appears one level below the filled sell")
	assert.Equal(t, models.SideBuy, rotated.Side)
}

func TestLedgerVetoRemovesOrderWithoutTrade(t *testing.T) {
	cfg := testConfig([]float64{150, 120})
	cfg.MaxSteps = 1
	cfg.OrderSize = 1
	cfg.Accounting.InitialQuote = 1 // cannot afford any buy
	repo := newMemoryRepository()
	b := newTestBot(t, cfg, repo)

	rep, err := b.Run(context.Background())
	require.NoError(t, err)

	orders, err := repo.LoadActiveOrders()
	require.NoError(t, err)
	assert.Len(t, orders, 3, "vetoed order is removed without a replacement")
	assert.Nil(t, findByPrice(orders, 125))
	assert.Empty(t, repo.trades)
	assert.Zero(t, rep.Trades)
	assert.Equal(t, 1, rep.SkippedBuyNoQuote)
}

func TestPanicSellOnStopLossBreach(t *testing.T) {
	cfg := testConfig([]float64{150, 90})
	cfg.MaxSteps = 10
	cfg.StopLossEnabled = true
	cfg.Accounting.InitialBase = 0.5
	repo := newMemoryRepository()
	b := newTestBot(t, cfg, repo)

	rep, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusStopped, rep.Status)
	assert.Equal(t, ReasonPanicSell, rep.StopReason)

	orders, err := repo.LoadActiveOrders()
	require.NoError(t, err)
	assert.Empty(t, orders, "panic sell clears the ladder")

	require.NotNil(t, repo.state)
	assert.Equal(t, models.StatusStopped, repo.state.Status)
	assert.Equal(t, ReasonPanicSell, repo.state.StopReason)

	// The base position was liquidated through the ledger.
	require.Len(t, repo.trades, 1)
	assert.Equal(t, models.SideSell, repo.trades[0].Side)
	assert.Equal(t, 0.5, repo.trades[0].Amount)
}

func TestDrawdownStopsAndClearsLadder(t *testing.T) {
	cfg := testConfig([]float64{150, 140})
	cfg.MaxSteps = 10
	cfg.StopLossEnabled = false
	cfg.Risk = models.RiskConfig{
		Enabled:              true,
		MaxConsecutiveErrors: 5,
		MaxPriceJumpPct:      1000,
		MaxDrawdownPct:       1,
		PanicOnStop:          true,
	}
	cfg.Accounting.InitialQuote = 0
	cfg.Accounting.InitialBase = 1
	repo := newMemoryRepository()
	b := newTestBot(t, cfg, repo)

	rep, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusStopped, rep.Status)
	assert.Equal(t, "max_drawdown", rep.StopReason)

	orders, err := repo.LoadActiveOrders()
	require.NoError(t, err)
	assert.Empty(t, orders, "panic_on_stop clears the ladder")
}

func TestFlashCrashScenarioStopsOnDrawdown(t *testing.T) {
	seed := int64(7)
	cfg := &models.Config{
		Symbol:          "BTCUSDT",
		BaseAsset:       "BTC",
		QuoteAsset:      "USDT",
		LowerPrice:      50000,
		UpperPrice:      120000,
		GridLevels:      10,
		GridType:        models.GridArithmetic,
		OrderSize:       0.001,
		StrategyID:      "classic_grid",
		DryRun:          true,
		Offline:         true,
		OfflineOnce:     true,
		OfflineScenario: "flash_crash",
		Seed:            &seed,
		MaxSteps:        500,
		Risk: models.RiskConfig{
			Enabled:              true,
			MaxConsecutiveErrors: 5,
			MaxPriceJumpPct:      1000,
			MaxDrawdownPct:       1,
			PanicOnStop:          true,
			AmplitudePct:         1,
			NoisePct:             0.5,
			PeriodSteps:          24,
		},
		Accounting: models.AccountingConfig{
			Enabled:     true,
			InitialBase: 1, // all-base holdings, equity tracks the price
			FeeRate:     0.001,
		},
	}
	repo := newMemoryRepository()
	b := newTestBot(t, cfg, repo)

	rep, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusStopped, rep.Status)
	assert.Equal(t, "max_drawdown", rep.StopReason)
	assert.Less(t, rep.Steps, 500, "the crash stops the run before the step budget")
}

func TestRestartDoesNotDuplicateOrders(t *testing.T) {
	repo := newMemoryRepository()

	cfg := testConfig([]float64{150, 150})
	cfg.MaxSteps = 1
	b := newTestBot(t, cfg, repo)
	_, err := b.Run(context.Background())
	require.NoError(t, err)

	before, err := repo.LoadActiveOrders()
	require.NoError(t, err)
	require.Len(t, before, 4)

	cfg2 := testConfig([]float64{150, 150})
	cfg2.MaxSteps = 1
	b2 := newTestBot(t, cfg2, repo)
	_, err = b2.Run(context.Background())
	require.NoError(t, err)

	after, err := repo.LoadActiveOrders()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(after), len(before))
	assert.Len(t, after, 4, "the persisted ladder is reused, not re-placed")
}

func TestInterruptPersistsStopped(t *testing.T) {
	cfg := testConfig([]float64{150, 150, 150})
	cfg.MaxSteps = 100
	repo := newMemoryRepository()
	b := newTestBot(t, cfg, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := b.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, models.StatusStopped, rep.Status)
	assert.Equal(t, ReasonManualStop, rep.StopReason)
	require.NotNil(t, repo.state)
	assert.Equal(t, models.StatusStopped, repo.state.Status)
}

func TestTrailingUpShiftsRange(t *testing.T) {
	cfg := testConfig([]float64{150, 230})
	cfg.MaxSteps = 1
	cfg.TrailingUp = true
	cfg.StopLossEnabled = false
	cfg.Accounting.InitialBase = 1
	repo := newMemoryRepository()
	b := newTestBot(t, cfg, repo)

	_, err := b.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, repo.state)
	assert.Equal(t, 125.0, repo.state.LowerPrice)
	assert.Equal(t, 225.0, repo.state.UpperPrice)

	orders, err := repo.LoadActiveOrders()
	require.NoError(t, err)
	assert.Nil(t, findByPrice(orders, 100), "the lowest buy was cancelled")
	require.Len(t, orders, 4, "one shift keeps the ladder size")
	// Every resting sell was below the tick price, so they all filled and
	// rotated into buys one level down on the shifted grid.
	buys, sells := sides(orders)
	assert.Equal(t, 4, buys)
	assert.Zero(t, sells)
}

func TestUnknownStrategyFails(t *testing.T) {
	cfg := testConfig([]float64{150})
	cfg.StrategyID = "no_such_strategy"
	f, err := feed.New(cfg)
	require.NoError(t, err)

	_, err = New(cfg, exchange.NewOfflineExchange(f), newMemoryRepository(), zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestResetRestoresDefaults(t *testing.T) {
	repo := newMemoryRepository()
	repo.state = &models.BotState{LowerPrice: 110, UpperPrice: 210, Status: models.StatusStopped, StopReason: "panic_sell"}
	repo.orders = []models.Order{{ID: "stale", Side: models.SideBuy, Price: 110, Status: models.OrderOpen}}

	cfg := testConfig([]float64{150})
	b := newTestBot(t, cfg, repo)
	require.NoError(t, b.Reset())

	orders, err := repo.LoadActiveOrders()
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, models.StatusRunning, repo.state.Status)
	assert.Equal(t, 100.0, repo.state.LowerPrice)
	assert.Equal(t, 200.0, repo.state.UpperPrice)
}
