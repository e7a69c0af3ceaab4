package storage

import (
	"database/sql"
	"fmt"
	"time"

	"grid-bot-go/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteRepository is the default Repository backend.
type sqliteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) a SQLite database at path
// and ensures the schema exists.
func NewSQLiteRepository(path string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &sqliteRepository{db: db}, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS active_orders (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			price REAL NOT NULL,
			amount REAL NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trades_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			price REAL NOT NULL,
			amount REAL NOT NULL,
			value REAL NOT NULL,
			fee REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS bot_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			lower_price REAL NOT NULL,
			upper_price REAL NOT NULL,
			status TEXT NOT NULL DEFAULT 'RUNNING',
			stop_reason TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS equity_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			price REAL NOT NULL,
			base_qty REAL NOT NULL,
			quote_qty REAL NOT NULL,
			equity REAL NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *sqliteRepository) LoadBotState() (*models.BotState, error) {
	row := r.db.QueryRow(`SELECT lower_price, upper_price, status, stop_reason FROM bot_state WHERE id = 1`)

	var state models.BotState
	err := row.Scan(&state.LowerPrice, &state.UpperPrice, &state.Status, &state.StopReason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load bot state: %w", err)
	}
	return &state, nil
}

func (r *sqliteRepository) SaveBotState(state *models.BotState) error {
	_, err := r.db.Exec(`
		INSERT INTO bot_state (id, lower_price, upper_price, status, stop_reason)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			lower_price = excluded.lower_price,
			upper_price = excluded.upper_price,
			status = excluded.status,
			stop_reason = excluded.stop_reason;`,
		state.LowerPrice, state.UpperPrice, string(state.Status), state.StopReason,
	)
	if err != nil {
		return fmt.Errorf("save bot state: %w", err)
	}
	return nil
}

func (r *sqliteRepository) LoadActiveOrders() ([]models.Order, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, side, price, amount, status, created_at
		FROM active_orders WHERE status = 'open' ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query active orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		var createdAt string
		if err := rows.Scan(&order.ID, &order.Symbol, &order.Side, &order.Price, &order.Amount, &order.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		order.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (r *sqliteRepository) SaveActiveOrders(orders []models.Order) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save orders: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM active_orders`); err != nil {
		return fmt.Errorf("clear active orders: %w", err)
	}
	for _, order := range orders {
		if err := upsertOrderTx(tx, order); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func upsertOrderTx(tx *sql.Tx, order models.Order) error {
	_, err := tx.Exec(`
		INSERT OR REPLACE INTO active_orders (id, symbol, side, price, amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.Symbol, string(order.Side), order.Price, order.Amount,
		string(order.Status), order.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert order %s: %w", order.ID, err)
	}
	return nil
}

func (r *sqliteRepository) UpsertActiveOrder(order models.Order) error {
	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO active_orders (id, symbol, side, price, amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.Symbol, string(order.Side), order.Price, order.Amount,
		string(order.Status), order.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert order %s: %w", order.ID, err)
	}
	return nil
}

func (r *sqliteRepository) DeleteActiveOrder(id string) error {
	if _, err := r.db.Exec(`DELETE FROM active_orders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	return nil
}

func (r *sqliteRepository) ReplaceActiveOrder(oldID string, newOrder *models.Order) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace order: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM active_orders WHERE id = ?`, oldID); err != nil {
		return fmt.Errorf("delete order %s: %w", oldID, err)
	}
	if newOrder != nil {
		if err := upsertOrderTx(tx, *newOrder); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *sqliteRepository) ClearActiveOrders() error {
	if _, err := r.db.Exec(`DELETE FROM active_orders`); err != nil {
		return fmt.Errorf("clear active orders: %w", err)
	}
	return nil
}

func (r *sqliteRepository) LogTrade(trade models.Trade) error {
	_, err := r.db.Exec(`
		INSERT INTO trades_history (timestamp, symbol, side, price, amount, value, fee)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		trade.Timestamp.Format(time.RFC3339Nano), trade.Symbol, string(trade.Side),
		trade.Price, trade.Amount, trade.Value, trade.Fee,
	)
	if err != nil {
		return fmt.Errorf("log trade: %w", err)
	}
	return nil
}

func (r *sqliteRepository) SaveEquitySnapshot(snap models.EquitySnapshot) error {
	_, err := r.db.Exec(`
		INSERT INTO equity_snapshots (timestamp, price, base_qty, quote_qty, equity)
		VALUES (?, ?, ?, ?, ?)`,
		snap.Timestamp.Format(time.RFC3339Nano), snap.Price, snap.BaseQty, snap.QuoteQty, snap.Equity,
	)
	if err != nil {
		return fmt.Errorf("save equity snapshot: %w", err)
	}
	return nil
}

func (r *sqliteRepository) Reset(defaults models.BotState) error {
	if err := r.ClearActiveOrders(); err != nil {
		return err
	}
	return r.SaveBotState(&defaults)
}

func (r *sqliteRepository) Close() error {
	return r.db.Close()
}
