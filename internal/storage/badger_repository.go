package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"grid-bot-go/internal/models"

	"github.com/dgraph-io/badger/v3"
)

var (
	keyBotState = []byte("bot_state")

	prefixOrder  = []byte("order/")
	prefixTrade  = []byte("trade/")
	prefixEquity = []byte("equity/")
)

// badgerRepository is the key-value Repository backend. Values are JSON;
// orders live under one key per order id, trades and equity snapshots under
// monotonically increasing sequence keys so history stays append-only.
type badgerRepository struct {
	db        *badger.DB
	tradeSeq  *badger.Sequence
	equitySeq *badger.Sequence
}

// NewBadgerRepository opens (creating if needed) a Badger database at path.
func NewBadgerRepository(path string) (Repository, error) {
	opts := badger.DefaultOptions(path)
	// Badger's own logging would drown the bot's logs.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	tradeSeq, err := db.GetSequence([]byte("seq/trades"), 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("trade sequence: %w", err)
	}
	equitySeq, err := db.GetSequence([]byte("seq/equity"), 64)
	if err != nil {
		tradeSeq.Release()
		db.Close()
		return nil, fmt.Errorf("equity sequence: %w", err)
	}
	return &badgerRepository{db: db, tradeSeq: tradeSeq, equitySeq: equitySeq}, nil
}

func orderKey(id string) []byte {
	return append(append([]byte{}, prefixOrder...), id...)
}

func (r *badgerRepository) LoadBotState() (*models.BotState, error) {
	var state models.BotState
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyBotState)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load bot state: %w", err)
	}
	return &state, nil
}

func (r *badgerRepository) SaveBotState(state *models.BotState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal bot state: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyBotState, data)
	})
}

func (r *badgerRepository) LoadActiveOrders() ([]models.Order, error) {
	var orders []models.Order
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefixOrder); it.ValidForPrefix(prefixOrder); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var order models.Order
				if err := json.Unmarshal(val, &order); err != nil {
					return err
				}
				if order.Status == models.OrderOpen {
					orders = append(orders, order)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load active orders: %w", err)
	}
	return orders, nil
}

func setOrderTx(txn *badger.Txn, order models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return txn.Set(orderKey(order.ID), data)
}

func deleteOrdersTx(txn *badger.Txn) error {
	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
	defer it.Close()
	var keys [][]byte
	for it.Seek(prefixOrder); it.ValidForPrefix(prefixOrder); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (r *badgerRepository) SaveActiveOrders(orders []models.Order) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if err := deleteOrdersTx(txn); err != nil {
			return err
		}
		for _, order := range orders {
			if err := setOrderTx(txn, order); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *badgerRepository) UpsertActiveOrder(order models.Order) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return setOrderTx(txn, order)
	})
}

func (r *badgerRepository) DeleteActiveOrder(id string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(orderKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

func (r *badgerRepository) ReplaceActiveOrder(oldID string, newOrder *models.Order) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(orderKey(oldID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if newOrder != nil {
			return setOrderTx(txn, *newOrder)
		}
		return nil
	})
}

func (r *badgerRepository) ClearActiveOrders() error {
	return r.db.Update(deleteOrdersTx)
}

func (r *badgerRepository) appendJSON(seq *badger.Sequence, prefix []byte, v any) error {
	n, err := seq.Next()
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	key := append(append([]byte{}, prefix...), fmt.Sprintf("%012d", n)...)
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (r *badgerRepository) LogTrade(trade models.Trade) error {
	if err := r.appendJSON(r.tradeSeq, prefixTrade, trade); err != nil {
		return fmt.Errorf("log trade: %w", err)
	}
	return nil
}

func (r *badgerRepository) SaveEquitySnapshot(snap models.EquitySnapshot) error {
	if err := r.appendJSON(r.equitySeq, prefixEquity, snap); err != nil {
		return fmt.Errorf("save equity snapshot: %w", err)
	}
	return nil
}

func (r *badgerRepository) Reset(defaults models.BotState) error {
	if err := r.ClearActiveOrders(); err != nil {
		return err
	}
	return r.SaveBotState(&defaults)
}

func (r *badgerRepository) Close() error {
	r.tradeSeq.Release()
	r.equitySeq.Release()
	return r.db.Close()
}
