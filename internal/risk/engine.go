package risk

import (
	"time"

	"grid-bot-go/internal/models"
)

// Reasons attached to risk-driven state transitions. They are persisted in
// the bot state and surfaced in the run report.
const (
	ReasonTooManyErrors = "too_many_errors"
	ReasonNoPrice       = "no_price"
	ReasonPriceJump     = "price_jump"
	ReasonMaxDrawdown   = "max_drawdown"
)

// Engine is the per-tick risk state machine. It is transient: a restart
// resets the error counter and pause window, so a fresh process always gets
// a clean error budget even when the persisted status is honored.
type Engine struct {
	cfg models.RiskConfig

	ConsecutiveErrors int
	PauseUntil        *time.Time
	PeakEquity        *float64
}

// New creates an engine with zeroed counters.
func New(cfg models.RiskConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the risk parameters the engine was built with.
func (e *Engine) Config() models.RiskConfig { return e.cfg }

// Evaluate runs one tick through the state machine and returns the new
// status plus the reason when the status carries one. Rules apply in
// priority order: pause window, error streak, missing price, price jump,
// drawdown. STOPPED is terminal and never produced from anything but these
// rules; transitions out of STOPPED require an external reset.
//
// price, lastPrice and equity are nil when unknown. tickErr is the error the
// tick raised, if any.
func (e *Engine) Evaluate(price, lastPrice *float64, status models.Status, tickErr error, now time.Time, equity *float64) (models.Status, string) {
	if !e.cfg.Enabled {
		return status, ""
	}

	if status == models.StatusPaused {
		if e.PauseUntil == nil || !now.Before(*e.PauseUntil) {
			e.PauseUntil = nil
			return models.StatusRunning, ""
		}
		return models.StatusPaused, ""
	}

	if tickErr != nil {
		e.ConsecutiveErrors++
		if e.ConsecutiveErrors >= e.cfg.MaxConsecutiveErrors {
			return models.StatusStopped, ReasonTooManyErrors
		}
		return status, ""
	}

	e.ConsecutiveErrors = 0

	if price == nil {
		return models.StatusStopped, ReasonNoPrice
	}

	if lastPrice != nil {
		ref := *lastPrice
		if ref < 1e-9 {
			ref = 1e-9
		}
		jumpPct := abs(*price-*lastPrice) / ref * 100
		if jumpPct > e.cfg.MaxPriceJumpPct {
			until := now.Add(time.Duration(e.cfg.PauseSeconds * float64(time.Second)))
			e.PauseUntil = &until
			return models.StatusPaused, ReasonPriceJump
		}
	}

	if equity != nil && e.cfg.MaxDrawdownPct > 0 {
		if e.PeakEquity == nil || *equity > *e.PeakEquity {
			eq := *equity
			e.PeakEquity = &eq
		}
		peak := *e.PeakEquity
		if peak < 1e-9 {
			peak = 1e-9
		}
		ddPct := (*e.PeakEquity - *equity) / peak * 100
		if ddPct >= e.cfg.MaxDrawdownPct {
			return models.StatusStopped, ReasonMaxDrawdown
		}
	}

	return status, ""
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
