package storage

import (
	"fmt"

	"grid-bot-go/internal/models"
)

// Repository is the durable persistence contract the engine depends on. It
// must survive process restarts: a bot started against an existing database
// resumes its persisted state and ladder instead of placing a new one.
//
// Only the engine mutates the repository, strictly sequentially within a
// tick, so implementations do not need cross-process coordination.
type Repository interface {
	// LoadBotState returns the singleton bot state, or (nil, nil) when no
	// state has been persisted yet.
	LoadBotState() (*models.BotState, error)
	// SaveBotState overwrites the singleton bot state.
	SaveBotState(state *models.BotState) error

	// LoadActiveOrders returns all currently open orders.
	LoadActiveOrders() ([]models.Order, error)
	// SaveActiveOrders replaces the whole active-order set with the given
	// snapshot.
	SaveActiveOrders(orders []models.Order) error
	// UpsertActiveOrder inserts or updates a single order by id.
	UpsertActiveOrder(order models.Order) error
	// DeleteActiveOrder removes a single order by id.
	DeleteActiveOrder(id string) error
	// ReplaceActiveOrder atomically deletes oldID and inserts newOrder, so
	// no observer ever sees a ladder gap during rotation. A nil newOrder
	// deletes without replacement.
	ReplaceActiveOrder(oldID string, newOrder *models.Order) error
	// ClearActiveOrders removes every active order.
	ClearActiveOrders() error

	// LogTrade appends a trade to the immutable history.
	LogTrade(trade models.Trade) error
	// SaveEquitySnapshot appends a per-tick ledger snapshot.
	SaveEquitySnapshot(snap models.EquitySnapshot) error

	// Reset clears active orders and restores the bot state to the given
	// defaults, for deterministic test and batch runs.
	Reset(defaults models.BotState) error

	Close() error
}

// Open creates the repository selected by the storage config.
func Open(cfg models.StorageConfig) (Repository, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLiteRepository(cfg.Path)
	case "badger":
		return NewBadgerRepository(cfg.Path)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
