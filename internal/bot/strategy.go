package bot

import (
	"context"
	"fmt"

	"grid-bot-go/internal/models"
)

// Strategy reacts to the engine's lifecycle. OnStart runs once after the
// ladder is initialized; OnTick handles one price observation and returns the
// updated active-order set.
type Strategy interface {
	OnStart(orders []models.Order) error
	OnTick(ctx context.Context, price float64, orders []models.Order) ([]models.Order, error)
}

// StrategyFactory builds a strategy bound to an engine.
type StrategyFactory func(b *GridBot) Strategy

var strategies = map[string]StrategyFactory{
	"classic_grid": newClassicGrid,
}

// RegisterStrategy adds a strategy to the registry. Registering an existing
// id replaces it.
func RegisterStrategy(id string, factory StrategyFactory) {
	strategies[id] = factory
}

// NewStrategy resolves a strategy id against the registry.
func NewStrategy(id string, b *GridBot) (Strategy, error) {
	factory, ok := strategies[id]
	if !ok {
		return nil, fmt.Errorf("bot: unknown strategy_id %q", id)
	}
	return factory(b), nil
}

// classicGrid is the default strategy: stop-loss check, trailing shift, then
// fill monitoring with rotation.
type classicGrid struct {
	bot *GridBot
}

func newClassicGrid(b *GridBot) Strategy {
	return &classicGrid{bot: b}
}

func (s *classicGrid) OnStart([]models.Order) error { return nil }

func (s *classicGrid) OnTick(ctx context.Context, price float64, orders []models.Order) ([]models.Order, error) {
	b := s.bot
	if b.cfg.StopLossEnabled && price < b.lowerPrice {
		if err := b.panicSell(ctx, price); err != nil {
			return orders, err
		}
		return nil, nil
	}
	if err := b.checkTrailing(ctx, price); err != nil {
		return b.activeOrders, err
	}
	return b.monitorGrid(ctx, price)
}
