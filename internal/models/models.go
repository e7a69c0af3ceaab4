package models

import "time"

// Side is the direction of an order or trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the flipped side, used when rotating a filled grid order.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderStatus is the lifecycle state of a single order.
type OrderStatus string

const (
	OrderOpen     OrderStatus = "open"
	OrderClosed   OrderStatus = "closed"
	OrderCanceled OrderStatus = "canceled"
)

// Status is the operating state of the bot as a whole.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusPaused    Status = "PAUSED"
	StatusStopped   Status = "STOPPED"
	StatusCompleted Status = "COMPLETED"
)

// GridType selects the spacing mode of the grid ladder.
type GridType string

const (
	GridArithmetic GridType = "arithmetic"
	GridGeometric  GridType = "geometric"
)

// Order is a resting limit order occupying one grid level.
// ID is unique among currently open orders and is the storage primary key.
type Order struct {
	ID        string      `json:"id"`
	Symbol    string      `json:"symbol"`
	Side      Side        `json:"side"`
	Price     float64     `json:"price"`
	Amount    float64     `json:"amount"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// Trade is an immutable record of one executed fill. Append-only history.
type Trade struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	Amount    float64   `json:"amount"`
	Value     float64   `json:"value"`
	Fee       float64   `json:"fee"`
}

// BotState is the singleton persisted state of the bot. The price range it
// carries is the range actually in force, which can differ from the config
// after trailing shifts.
type BotState struct {
	LowerPrice float64 `json:"lower_price"`
	UpperPrice float64 `json:"upper_price"`
	Status     Status  `json:"status"`
	StopReason string  `json:"stop_reason"`
}

// EquitySnapshot is a per-tick record of the paper ledger, persisted so that
// equity curves can be inspected after a run.
type EquitySnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	BaseQty   float64   `json:"base_qty"`
	QuoteQty  float64   `json:"quote_qty"`
	Equity    float64   `json:"equity"`
}

// RunReport is the summary emitted when the engine loop exits. It is the sole
// external artifact of a run and is kept stable for diffing across runs.
type RunReport struct {
	RunID      string `json:"run_id"`
	ConfigPath string `json:"config_path"`
	ConfigHash string `json:"config_hash,omitempty"`
	Offline    bool   `json:"offline"`
	Scenario   string `json:"scenario,omitempty"`
	Seed       *int64 `json:"seed,omitempty"`

	Status     Status     `json:"status"`
	StopReason string     `json:"reason"`
	Steps      int        `json:"steps"`
	StartTime  time.Time  `json:"start"`
	EndTime    *time.Time `json:"end,omitempty"`

	FinalPrice  *float64 `json:"price,omitempty"`
	FinalEquity *float64 `json:"equity,omitempty"`
	PeakEquity  *float64 `json:"peak_equity,omitempty"`
	DrawdownPct *float64 `json:"drawdown_pct,omitempty"`
	PnL         *float64 `json:"pnl,omitempty"`

	Trades    int     `json:"trades"`
	TotalFees float64 `json:"total_fees"`

	SkippedBuyNoQuote int `json:"skipped_buy_no_quote"`
	SkippedSellNoBase int `json:"skipped_sell_no_base"`
}
