package execution

import "grid-bot-go/internal/models"

// Model decides whether a resting limit order fills at an observed price and
// what the cost-adjusted execution price is. Market friction (spread and
// slippage) is expressed in basis points and is always worse for the trader.
type Model struct {
	FeeBps      float64
	SpreadBps   float64
	SlippageBps float64
	FeeRate     float64 // flat fraction, used when FeeBps is zero
	MakerFeeBps float64
	TakerFeeBps float64

	// ApplyCostsInPrice bakes spread and slippage into the execution price.
	// When false FillPrice returns the level price unchanged and costs have
	// to be accounted as explicit cost lines via CostEstimates.
	ApplyCostsInPrice bool
}

// FromAccounting builds a model from the accounting cost parameters.
func FromAccounting(cfg models.AccountingConfig) Model {
	return Model{
		FeeBps:            cfg.FeeBps,
		SpreadBps:         cfg.SpreadBps,
		SlippageBps:       cfg.SlippageBps,
		FeeRate:           cfg.FeeRate,
		MakerFeeBps:       cfg.MakerFeeBps,
		TakerFeeBps:       cfg.TakerFeeBps,
		ApplyCostsInPrice: cfg.ApplyCostsInPrice,
	}
}

// impactFrac is the one-sided price impact: half the spread plus slippage.
func (m Model) impactFrac() float64 {
	return (m.SpreadBps/2 + m.SlippageBps) / 10000
}

// ShouldFill reports whether a limit order at levelPrice fills given the
// low/high of the observed interval. Ticker-driven ticks without OHLC pass
// the current price as both low and high.
func (m Model) ShouldFill(side models.Side, levelPrice, low, high float64) bool {
	if side == models.SideBuy {
		return low <= levelPrice
	}
	return high >= levelPrice
}

// FillPrice returns the execution price for a fill at levelPrice: buys
// execute above the level, sells below.
func (m Model) FillPrice(side models.Side, levelPrice float64) float64 {
	if !m.ApplyCostsInPrice {
		return levelPrice
	}
	impact := m.impactFrac()
	if side == models.SideBuy {
		return levelPrice * (1 + impact)
	}
	return levelPrice * (1 - impact)
}

// Fee returns the fee on a notional value, selected from the most specific
// configured rate: explicit bps fee, then flat fee rate, then taker, then
// maker, else zero.
func (m Model) Fee(notional float64) float64 {
	switch {
	case m.FeeBps != 0:
		return notional * m.FeeBps / 10000
	case m.FeeRate != 0:
		return notional * m.FeeRate
	case m.TakerFeeBps != 0:
		return notional * m.TakerFeeBps / 10000
	case m.MakerFeeBps != 0:
		return notional * m.MakerFeeBps / 10000
	default:
		return 0
	}
}

// CostEstimates returns the (slippage, spread) costs in quote currency for a
// fill of qty at midPrice, used as explicit cost lines when costs are not
// baked into the execution price.
func (m Model) CostEstimates(qty, midPrice float64) (slippage, spread float64) {
	notional := qty * midPrice
	slippage = notional * m.SlippageBps / 10000
	spread = notional * (m.SpreadBps / 2) / 10000
	return slippage, spread
}
