package accounting

import (
	"grid-bot-go/internal/models"

	"go.uber.org/zap"
)

// epsilon absorbs float rounding when comparing balances against costs.
const epsilon = 1e-12

// Ledger tracks simulated base/quote balances for dry-run and offline fills.
// It is the single source of truth for equity in non-live mode. Balances can
// never go negative: a fill that would do so is rejected without any state
// change and the caller must drop the order without recording a trade.
type Ledger struct {
	BaseQty  float64
	QuoteQty float64

	PeakEquity        float64
	TradesExecuted    int
	SkippedBuyNoQuote int
	SkippedSellNoBase int

	logger *zap.SugaredLogger
}

// New creates a ledger seeded with the configured starting balances.
func New(cfg models.AccountingConfig, logger *zap.SugaredLogger) *Ledger {
	l := &Ledger{
		BaseQty:  cfg.InitialBase,
		QuoteQty: cfg.InitialQuote,
		logger:   logger,
	}
	l.PeakEquity = l.Equity(0)
	return l
}

// Equity returns the quote-currency value of the ledger at price. A
// non-positive price means the price is unknown and only the quote balance
// counts.
func (l *Ledger) Equity(price float64) float64 {
	if price <= 0 {
		return l.QuoteQty
	}
	return l.QuoteQty + l.BaseQty*price
}

// OnFill applies the balance effects of a fill. The fee is computed by the
// execution model and passed in. It returns whether the fill was accepted
// and the equity after the fill. Rejections log loudly once and quietly
// after that, to avoid flooding on a starved ladder.
func (l *Ledger) OnFill(side models.Side, price, qty, fee float64) (bool, float64) {
	value := price * qty

	switch side {
	case models.SideBuy:
		cost := value + fee
		if l.QuoteQty+epsilon < cost {
			l.SkippedBuyNoQuote++
			if l.SkippedBuyNoQuote == 1 {
				l.logger.Warnw("insufficient quote balance for buy, skipping fill", "quote", l.QuoteQty, "cost", cost)
			} else {
				l.logger.Debugw("insufficient quote balance for buy, skipping fill", "quote", l.QuoteQty, "cost", cost)
			}
			return false, l.Equity(price)
		}
		l.QuoteQty -= cost
		l.BaseQty += qty

	case models.SideSell:
		if l.BaseQty+epsilon < qty {
			l.SkippedSellNoBase++
			if l.SkippedSellNoBase == 1 {
				l.logger.Warnw("insufficient base balance for sell, skipping fill", "base", l.BaseQty, "qty", qty)
			} else {
				l.logger.Debugw("insufficient base balance for sell, skipping fill", "base", l.BaseQty, "qty", qty)
			}
			return false, l.Equity(price)
		}
		l.BaseQty -= qty
		l.QuoteQty += value - fee

	default:
		return false, l.Equity(price)
	}

	eq := l.Equity(price)
	if eq > l.PeakEquity {
		l.PeakEquity = eq
	}
	l.TradesExecuted++
	return true, eq
}
