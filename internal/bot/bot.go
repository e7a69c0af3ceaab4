package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grid-bot-go/internal/accounting"
	"grid-bot-go/internal/exchange"
	"grid-bot-go/internal/execution"
	"grid-bot-go/internal/grid"
	"grid-bot-go/internal/models"
	"grid-bot-go/internal/risk"
	"grid-bot-go/internal/storage"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/jxskiss/base62"
	"go.uber.org/zap"
)

// ReasonPanicSell and friends are the engine-driven stop reasons. Risk-driven
// reasons live in the risk package.
const (
	ReasonPanicSell     = "panic_sell"
	ReasonManualStop    = "manual_stop"
	ReasonMaxSteps      = "max_steps"
	ReasonFeedExhausted = "feed_exhausted"
)

const retryDelay = time.Second

// minStepPctWarn is the grid step below which the startup check warns that
// fees will likely eat the per-cell profit.
const minStepPctWarn = 0.2

// exhauster is implemented by price sources that can run dry.
type exhauster interface {
	Exhausted() bool
}

// GridBot owns the order ladder and drives the tick loop. All state mutation
// happens on the loop goroutine; storage and the ledger are only touched from
// here.
type GridBot struct {
	cfg    *models.Config
	ex     exchange.Exchange
	repo   storage.Repository
	logger *zap.SugaredLogger

	calc     *grid.Calculator
	exec     execution.Model
	ledger   *accounting.Ledger // nil in live mode or when accounting is off
	risk     *risk.Engine
	strategy Strategy

	// Grid range in force; moves with trailing shifts and is persisted.
	lowerPrice float64
	upperPrice float64

	status     models.Status
	stopReason string

	activeOrders  []models.Order
	lastPrice     *float64
	initialEquity *float64

	steps      int
	tradeCount int
	totalFees  float64
	startTime  time.Time
	endTime    *time.Time

	lastStatusLog time.Time
	pausedLogged  bool
}

// New builds an engine from its collaborators. Persisted bot state, when
// present, overrides the configured range and status so restarts resume
// where the previous process left off.
func New(cfg *models.Config, ex exchange.Exchange, repo storage.Repository, logger *zap.SugaredLogger) (*GridBot, error) {
	b := &GridBot{
		cfg:        cfg,
		ex:         ex,
		repo:       repo,
		logger:     logger,
		lowerPrice: cfg.LowerPrice,
		upperPrice: cfg.UpperPrice,
		status:     models.StatusRunning,
		exec:       execution.FromAccounting(cfg.Accounting),
		risk:       risk.New(cfg.Risk),
	}

	state, err := repo.LoadBotState()
	if err != nil {
		return nil, fmt.Errorf("load bot state: %w", err)
	}
	if state != nil {
		b.lowerPrice = state.LowerPrice
		b.upperPrice = state.UpperPrice
		b.status = state.Status
		b.stopReason = state.StopReason
	}

	b.calc, err = grid.New(b.lowerPrice, b.upperPrice, cfg.GridLevels, cfg.GridType)
	if err != nil {
		return nil, err
	}

	if cfg.Accounting.Enabled && (cfg.DryRun || cfg.Offline) {
		b.ledger = accounting.New(cfg.Accounting, logger)
	}

	b.strategy, err = NewStrategy(cfg.StrategyID, b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Reset clears persisted state and reverts the range to config defaults.
func (b *GridBot) Reset() error {
	defaults := models.BotState{
		LowerPrice: b.cfg.LowerPrice,
		UpperPrice: b.cfg.UpperPrice,
		Status:     models.StatusRunning,
	}
	if err := b.repo.Reset(defaults); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	b.lowerPrice = b.cfg.LowerPrice
	b.upperPrice = b.cfg.UpperPrice
	b.status = models.StatusRunning
	b.stopReason = ""
	calc, err := grid.New(b.lowerPrice, b.upperPrice, b.cfg.GridLevels, b.cfg.GridType)
	if err != nil {
		return err
	}
	b.calc = calc
	return nil
}

// Run drives the tick loop until a terminal state, the step budget, or
// context cancellation. It always returns a run report; the error is non-nil
// only when the loop could not start at all.
func (b *GridBot) Run(ctx context.Context) (*models.RunReport, error) {
	b.startTime = time.Now().UTC()

	if !b.cfg.DryRun {
		if _, err := b.ex.FetchBalance(ctx, b.cfg.QuoteAsset); err != nil {
			b.logger.Errorw("balance check failed, exchange keys may be invalid", "error", err)
		} else {
			b.logger.Info("balance fetched, exchange keys look valid")
		}
	} else {
		b.logger.Info("dry-run mode, skipping balance check")
	}

	initialPrice, err := b.fetchPrice(ctx)
	if err != nil && !errors.Is(err, exchange.ErrFeedExhausted) {
		b.logger.Errorw("initial price fetch failed", "error", err)
	}
	b.warnBreakeven()

	if b.ledger != nil {
		eq := b.ledger.Equity(initialPrice)
		b.initialEquity = &eq
		if b.risk.PeakEquity == nil {
			b.risk.PeakEquity = &eq
		}
	}

	b.activeOrders, err = b.repo.LoadActiveOrders()
	if err != nil {
		return nil, fmt.Errorf("load active orders: %w", err)
	}
	switch {
	case len(b.activeOrders) > 0:
		b.logger.Infow("loaded active orders from storage", "count", len(b.activeOrders))
	case initialPrice > 0:
		b.placeInitialGrid(ctx, initialPrice)
	default:
		return nil, errors.New("bot: cannot initialize grid without a starting price")
	}

	if err := b.saveBotState(); err != nil {
		return nil, err
	}
	if err := b.strategy.OnStart(b.activeOrders); err != nil {
		return nil, fmt.Errorf("strategy start: %w", err)
	}
	if initialPrice > 0 {
		b.lastPrice = &initialPrice
	}

	b.loop(ctx)

	now := time.Now().UTC()
	b.endTime = &now
	return b.report(), nil
}

func (b *GridBot) loop(ctx context.Context) {
	interval := time.Duration(b.cfg.IntervalSeconds * float64(time.Second))
	for {
		if ctx.Err() != nil {
			b.markStopped()
			return
		}

		price, fetchErr := b.fetchPrice(ctx)
		var pricePtr *float64
		var tickErr error
		switch {
		case fetchErr == nil && price > 0:
			pricePtr = &price
		case errors.Is(fetchErr, exchange.ErrFeedExhausted):
			// Feed ran dry: not an error, just no more prices.
		case fetchErr != nil:
			tickErr = fetchErr
			b.logger.Errorw("price fetch failed", "error", fetchErr)
		}

		var equityPtr *float64
		if b.ledger != nil {
			eq := b.ledger.Equity(price)
			equityPtr = &eq
		}

		if stopped := b.applyRisk(pricePtr, tickErr, equityPtr); stopped {
			return
		}

		if b.status == models.StatusPaused {
			if !b.pausedLogged {
				b.logger.Infow("bot paused", "reason", b.stopReason, "pause_seconds", b.cfg.Risk.PauseSeconds)
				b.pausedLogged = true
			}
			if b.stepAndMaybeFinish() {
				return
			}
			if !sleep(ctx, interval) {
				b.markStopped()
				return
			}
			continue
		}

		if pricePtr != nil {
			updated, err := b.strategy.OnTick(ctx, price, b.activeOrders)
			if err != nil {
				b.logger.Errorw("tick failed", "error", err)
				if stopped := b.applyRisk(nil, err, nil); stopped {
					return
				}
				if !sleep(ctx, interval) {
					b.markStopped()
					return
				}
				continue
			}
			b.activeOrders = updated
			if b.status == models.StatusStopped {
				// Panic sell inside the tick already persisted the stop.
				return
			}
			b.heartbeat(price)
			b.snapshotEquity(price)
			b.lastPrice = &price
		} else if b.feedExhausted() {
			b.logger.Info("offline feed consumed, exiting")
			if b.status == models.StatusRunning {
				b.status = models.StatusCompleted
				b.stopReason = ReasonFeedExhausted
				b.saveBotState()
			}
			return
		}

		if b.stepAndMaybeFinish() {
			return
		}
		if !sleep(ctx, interval) {
			b.markStopped()
			return
		}
	}
}

// applyRisk runs one risk evaluation, persists any transition and performs
// the stop side effects. It reports whether the loop must exit.
func (b *GridBot) applyRisk(price *float64, tickErr error, equity *float64) bool {
	newStatus, reason := b.risk.Evaluate(price, b.lastPrice, b.status, tickErr, time.Now(), equity)
	if newStatus != b.status || (reason != "" && reason != b.stopReason) {
		previous := b.status
		b.status = newStatus
		if reason != "" || newStatus == models.StatusRunning {
			b.stopReason = reason
		}
		b.saveBotState()
		if previous == models.StatusPaused && newStatus == models.StatusRunning {
			b.logger.Info("bot resumed")
			b.pausedLogged = false
		}
	}
	if b.status == models.StatusStopped {
		b.logger.Warnw("risk stop", "reason", b.stopReason)
		if b.cfg.Risk.PanicOnStop {
			b.clearLadder(context.Background())
		}
		return true
	}
	return false
}

// stepAndMaybeFinish advances the step counter and reports whether the step
// budget is exhausted. Hitting the budget while RUNNING completes the run.
func (b *GridBot) stepAndMaybeFinish() bool {
	b.steps++
	if b.cfg.MaxSteps > 0 && b.steps >= b.cfg.MaxSteps {
		b.logger.Infow("reached max steps, exiting", "max_steps", b.cfg.MaxSteps)
		if b.status == models.StatusRunning {
			b.status = models.StatusCompleted
			if b.stopReason == "" {
				b.stopReason = ReasonMaxSteps
			}
			b.saveBotState()
		}
		return true
	}
	return false
}

// fetchPrice returns the current price, retrying transient failures once.
func (b *GridBot) fetchPrice(ctx context.Context) (float64, error) {
	price, err := backoff.Retry(ctx, func() (float64, error) {
		p, err := b.ex.FetchPrice(ctx, b.cfg.Symbol)
		if errors.Is(err, exchange.ErrFeedExhausted) {
			return 0, backoff.Permanent(err)
		}
		return p, err
	}, backoff.WithBackOff(backoff.NewConstantBackOff(retryDelay)), backoff.WithMaxTries(2))
	if err != nil {
		return 0, err
	}
	return price, nil
}

// placeInitialGrid plants one order per level around the current price. A
// level exactly at the price stays empty.
func (b *GridBot) placeInitialGrid(ctx context.Context, currentPrice float64) {
	var orders []models.Order
	buys, sells := 0, 0
	for _, level := range b.calc.Levels() {
		if level == currentPrice {
			continue
		}
		side := models.SideBuy
		if level > currentPrice {
			side = models.SideSell
		}
		order := b.createLimitOrder(ctx, side, level, b.cfg.OrderSize)
		if order == nil {
			continue
		}
		orders = append(orders, *order)
		if side == models.SideBuy {
			buys++
		} else {
			sells++
		}
	}
	if len(orders) > 0 {
		if err := b.repo.SaveActiveOrders(orders); err != nil {
			b.logger.Errorw("failed to persist initial grid", "error", err)
		}
		b.logger.Infow("placed initial grid", "buys", buys, "sells", sells)
	}
	b.activeOrders = orders
}

// createLimitOrder places a limit order, simulated in dry-run mode. Returns
// nil when the order could not be placed; the caller continues without it.
func (b *GridBot) createLimitOrder(ctx context.Context, side models.Side, price, amount float64) *models.Order {
	if b.cfg.DryRun {
		return &models.Order{
			ID:        simOrderID(side),
			Symbol:    b.cfg.Symbol,
			Side:      side,
			Price:     price,
			Amount:    amount,
			Status:    models.OrderOpen,
			CreatedAt: time.Now().UTC(),
		}
	}

	ack, err := backoff.Retry(ctx, func() (*exchange.OrderAck, error) {
		ack, err := b.ex.CreateLimitOrder(ctx, b.cfg.Symbol, side, price, amount)
		if err != nil && exchange.IsInsufficientFunds(err) {
			return nil, backoff.Permanent(err)
		}
		return ack, err
	}, backoff.WithBackOff(backoff.NewConstantBackOff(retryDelay)), backoff.WithMaxTries(2))
	if err != nil {
		if exchange.IsInsufficientFunds(err) {
			b.logger.Errorw("insufficient funds for order", "side", side, "price", price, "amount", amount)
		} else {
			b.logger.Errorw("failed to place order", "side", side, "price", price, "amount", amount, "error", err)
		}
		return nil
	}

	b.logger.Infow("placed order", "id", ack.ID, "side", side, "price", price, "amount", amount)
	return &models.Order{
		ID:        ack.ID,
		Symbol:    b.cfg.Symbol,
		Side:      side,
		Price:     price,
		Amount:    amount,
		Status:    models.OrderOpen,
		CreatedAt: time.Now().UTC(),
	}
}

// simOrderID builds a unique id for a paper order. Uniqueness matters since
// the id is the storage primary key.
func simOrderID(side models.Side) string {
	u := uuid.New()
	return fmt.Sprintf("sim_%s_%s", side, base62.EncodeToString(u[:]))
}

// orderFill is the engine's view of one order's fate this tick.
type orderFill struct {
	status    models.OrderStatus
	fillPrice float64
	amount    float64
}

// checkOrder decides what happened to a resting order at the current price.
// In dry-run mode fills are simulated against the level price; live mode
// asks the exchange and keeps the order open on transient failures.
func (b *GridBot) checkOrder(ctx context.Context, order models.Order, price float64) orderFill {
	if b.cfg.DryRun {
		if b.exec.ShouldFill(order.Side, order.Price, price, price) {
			return orderFill{status: models.OrderClosed, fillPrice: b.exec.FillPrice(order.Side, order.Price), amount: order.Amount}
		}
		return orderFill{status: models.OrderOpen}
	}

	info, err := b.ex.FetchOrder(ctx, b.cfg.Symbol, order.ID)
	if err != nil {
		b.logger.Warnw("failed to fetch order status", "id", order.ID, "error", err)
		return orderFill{status: models.OrderOpen}
	}
	fill := orderFill{status: info.Status, fillPrice: info.AvgPrice, amount: info.FilledQty}
	if fill.fillPrice <= 0 {
		fill.fillPrice = order.Price
	}
	if fill.amount <= 0 {
		fill.amount = order.Amount
	}
	return fill
}

// monitorGrid detects fills and rotates each filled order to the opposite
// side one level away. Orders vetoed by the ledger are removed without a
// replacement.
func (b *GridBot) monitorGrid(ctx context.Context, price float64) ([]models.Order, error) {
	orders := b.activeOrders
	updated := make([]models.Order, 0, len(orders))
	modified := false

	for _, order := range orders {
		fill := b.checkOrder(ctx, order, price)

		if fill.status == models.OrderCanceled {
			if err := b.repo.DeleteActiveOrder(order.ID); err != nil {
				b.logger.Warnw("failed to remove canceled order", "id", order.ID, "error", err)
				updated = append(updated, order)
				continue
			}
			modified = true
			continue
		}
		if fill.status != models.OrderClosed {
			updated = append(updated, order)
			continue
		}

		fee := b.exec.Fee(fill.fillPrice * fill.amount)
		if b.ledger != nil {
			ok, _ := b.ledger.OnFill(order.Side, fill.fillPrice, fill.amount, fee)
			if !ok {
				if err := b.repo.ReplaceActiveOrder(order.ID, nil); err != nil {
					b.logger.Warnw("failed to drop vetoed order", "id", order.ID, "error", err)
				}
				modified = true
				continue
			}
		}

		trade := models.Trade{
			Timestamp: time.Now().UTC(),
			Symbol:    b.cfg.Symbol,
			Side:      order.Side,
			Price:     fill.fillPrice,
			Amount:    fill.amount,
			Value:     grid.Round(fill.fillPrice * fill.amount),
			Fee:       fee,
		}
		if err := b.repo.LogTrade(trade); err != nil {
			b.logger.Warnw("failed to log trade", "id", order.ID, "error", err)
		}
		b.tradeCount++
		b.totalFees += fee

		var rotatedPrice float64
		if order.Side == models.SideBuy {
			rotatedPrice = b.calc.StepUp(order.Price)
		} else {
			rotatedPrice = b.calc.StepDown(order.Price)
		}
		newOrder := b.createLimitOrder(ctx, order.Side.Opposite(), rotatedPrice, b.cfg.OrderSize)

		if err := b.repo.ReplaceActiveOrder(order.ID, newOrder); err != nil {
			b.logger.Warnw("failed to rotate order in storage", "id", order.ID, "error", err)
			updated = append(updated, order)
			continue
		}
		if newOrder != nil {
			updated = append(updated, *newOrder)
		}
		modified = true
	}

	if modified {
		if err := b.repo.SaveActiveOrders(updated); err != nil {
			b.logger.Warnw("failed to persist active orders", "error", err)
		}
	}
	return updated, nil
}

// checkTrailing shifts the whole range one level up when the price has
// cleared the upper bound by a full step. At most one shift per tick.
func (b *GridBot) checkTrailing(ctx context.Context, price float64) error {
	if !b.cfg.TrailingUp {
		return nil
	}
	trigger := b.calc.StepUp(b.upperPrice)
	if price <= trigger {
		return nil
	}

	newLower := b.calc.StepUp(b.lowerPrice)
	newUpper := b.calc.StepUp(b.upperPrice)

	orders := b.activeOrders
	lowestBuy := -1
	for i, order := range orders {
		if order.Side != models.SideBuy {
			continue
		}
		if lowestBuy < 0 || order.Price < orders[lowestBuy].Price {
			lowestBuy = i
		}
	}

	if lowestBuy >= 0 {
		victim := orders[lowestBuy]
		if !b.cfg.DryRun {
			if err := b.ex.CancelOrder(ctx, b.cfg.Symbol, victim.ID); err != nil {
				b.logger.Warnw("failed to cancel lowest buy for trailing shift", "id", victim.ID, "error", err)
				return nil
			}
		}
		if err := b.repo.DeleteActiveOrder(victim.ID); err != nil {
			b.logger.Warnw("failed to remove lowest buy", "id", victim.ID, "error", err)
			return nil
		}
		orders = append(orders[:lowestBuy], orders[lowestBuy+1:]...)
	}

	if newSell := b.createLimitOrder(ctx, models.SideSell, newUpper, b.cfg.OrderSize); newSell != nil {
		orders = append(orders, *newSell)
	}

	b.lowerPrice = newLower
	b.upperPrice = newUpper
	calc, err := grid.New(b.lowerPrice, b.upperPrice, b.cfg.GridLevels, b.cfg.GridType)
	if err != nil {
		return fmt.Errorf("rebuild grid after trailing shift: %w", err)
	}
	b.calc = calc
	b.activeOrders = orders
	b.saveBotState()
	if err := b.repo.SaveActiveOrders(orders); err != nil {
		b.logger.Warnw("failed to persist orders after trailing shift", "error", err)
	}
	b.logger.Infow("trailing shift, grid moved up", "lower", newLower, "upper", newUpper)
	return nil
}

// panicSell is the stop-loss action: drop every order and liquidate the base
// position, then stop. In paper mode the liquidation goes through the ledger
// at the model-adjusted market price.
func (b *GridBot) panicSell(ctx context.Context, price float64) error {
	b.logger.Warn("price broke below the grid range, executing panic sell")

	b.clearLadder(ctx)

	if b.cfg.DryRun {
		if b.ledger != nil && b.ledger.BaseQty > 0 {
			qty := b.ledger.BaseQty
			execPrice := b.exec.FillPrice(models.SideSell, price)
			fee := b.exec.Fee(execPrice * qty)
			if ok, _ := b.ledger.OnFill(models.SideSell, execPrice, qty, fee); ok {
				trade := models.Trade{
					Timestamp: time.Now().UTC(),
					Symbol:    b.cfg.Symbol,
					Side:      models.SideSell,
					Price:     execPrice,
					Amount:    qty,
					Value:     grid.Round(execPrice * qty),
					Fee:       fee,
				}
				if err := b.repo.LogTrade(trade); err != nil {
					b.logger.Warnw("failed to log panic sell trade", "error", err)
				}
				b.tradeCount++
				b.totalFees += fee
				b.logger.Infow("liquidated base position", "qty", qty, "price", execPrice)
			}
		}
	} else {
		balance, err := b.ex.FetchBalance(ctx, b.cfg.BaseAsset)
		if err != nil {
			b.logger.Warnw("failed to fetch balance for panic sell", "error", err)
		} else if balance.Free > 0 {
			if _, err := b.ex.CreateMarketOrder(ctx, b.cfg.Symbol, models.SideSell, balance.Free); err != nil {
				b.logger.Warnw("panic sell market order failed", "error", err)
			} else {
				b.logger.Infow("sold base position at market", "qty", balance.Free)
			}
		}
	}

	b.status = models.StatusStopped
	b.stopReason = ReasonPanicSell
	return b.saveBotState()
}

// clearLadder cancels every open order, best effort on a live exchange, and
// wipes the active set.
func (b *GridBot) clearLadder(ctx context.Context) {
	if !b.cfg.DryRun {
		for _, order := range b.activeOrders {
			if err := b.ex.CancelOrder(ctx, b.cfg.Symbol, order.ID); err != nil {
				b.logger.Warnw("failed to cancel order", "id", order.ID, "error", err)
			}
		}
	}
	if err := b.repo.ClearActiveOrders(); err != nil {
		b.logger.Warnw("failed to clear active orders", "error", err)
	}
	b.activeOrders = nil
}

// markStopped persists STOPPED on an external interrupt so a restart does
// not silently resume with stale orders.
func (b *GridBot) markStopped() {
	b.status = models.StatusStopped
	if b.stopReason == "" {
		b.stopReason = ReasonManualStop
	}
	b.saveBotState()
	b.logger.Infow("bot stopped", "reason", b.stopReason)
}

func (b *GridBot) saveBotState() error {
	state := &models.BotState{
		LowerPrice: b.lowerPrice,
		UpperPrice: b.upperPrice,
		Status:     b.status,
		StopReason: b.stopReason,
	}
	if err := b.repo.SaveBotState(state); err != nil {
		b.logger.Errorw("failed to persist bot state", "error", err)
		return err
	}
	return nil
}

// warnBreakeven logs the configured grid's step against its round-trip
// costs. A step thinner than the costs means every rotation loses money.
func (b *GridBot) warnBreakeven() {
	metrics := execution.ComputeBreakeven(
		b.lowerPrice, b.upperPrice, b.cfg.GridLevels, b.cfg.GridType,
		b.cfg.Accounting.FeeBps, b.cfg.Accounting.SpreadBps, b.cfg.Accounting.SlippageBps, 1.0,
	)
	b.logger.Infow("grid profile",
		"step_pct", fmt.Sprintf("%.4f", metrics.GridStepPct),
		"roundtrip_cost_pct", fmt.Sprintf("%.4f", metrics.RoundtripCostPct),
	)
	if metrics.GridStepPct < minStepPctWarn || !metrics.BreakevenOK {
		b.logger.Warnw("grid step may not cover exchange fees, consider fewer levels or a wider range",
			"step_pct", fmt.Sprintf("%.4f", metrics.GridStepPct),
			"recommended_levels", metrics.RecommendedLevels,
		)
	}
}

// heartbeat periodically logs one status line with the ledger totals.
func (b *GridBot) heartbeat(price float64) {
	if b.cfg.StatusEverySeconds <= 0 {
		b.logger.Debugw("tick", "symbol", b.cfg.Symbol, "price", price)
		return
	}
	now := time.Now()
	if now.Sub(b.lastStatusLog) < time.Duration(b.cfg.StatusEverySeconds*float64(time.Second)) {
		b.logger.Debugw("tick", "price", price)
		return
	}
	b.lastStatusLog = now

	if b.ledger == nil {
		b.logger.Infow("bot running", "symbol", b.cfg.Symbol, "price", price)
		return
	}
	eq := b.ledger.Equity(price)
	var pnl float64
	if b.initialEquity != nil {
		pnl = eq - *b.initialEquity
	}
	var ddPct float64
	if b.risk.PeakEquity != nil && *b.risk.PeakEquity > 0 {
		ddPct = (*b.risk.PeakEquity - eq) / *b.risk.PeakEquity * 100
	}
	b.logger.Infow("bot running",
		"symbol", b.cfg.Symbol,
		"price", price,
		"base", fmt.Sprintf("%.6f", b.ledger.BaseQty),
		"quote", fmt.Sprintf("%.2f", b.ledger.QuoteQty),
		"equity", fmt.Sprintf("%.2f", eq),
		"pnl", fmt.Sprintf("%.2f", pnl),
		"drawdown_pct", fmt.Sprintf("%.2f", ddPct),
	)
}

func (b *GridBot) snapshotEquity(price float64) {
	if b.ledger == nil {
		return
	}
	snap := models.EquitySnapshot{
		Timestamp: time.Now().UTC(),
		Price:     price,
		BaseQty:   b.ledger.BaseQty,
		QuoteQty:  b.ledger.QuoteQty,
		Equity:    b.ledger.Equity(price),
	}
	if err := b.repo.SaveEquitySnapshot(snap); err != nil {
		b.logger.Warnw("failed to save equity snapshot", "error", err)
	}
}

func (b *GridBot) feedExhausted() bool {
	ex, ok := b.ex.(exhauster)
	return ok && b.cfg.OfflineOnce && ex.Exhausted()
}

// report summarizes the finished run.
func (b *GridBot) report() *models.RunReport {
	rep := &models.RunReport{
		Offline:    b.cfg.Offline,
		Scenario:   b.cfg.OfflineScenario,
		Seed:       b.cfg.Seed,
		Status:     b.status,
		StopReason: b.stopReason,
		Steps:      b.steps,
		StartTime:  b.startTime,
		EndTime:    b.endTime,
		Trades:     b.tradeCount,
		TotalFees:  b.totalFees,
	}
	if b.lastPrice != nil {
		rep.FinalPrice = b.lastPrice
	}
	if b.ledger != nil {
		var price float64
		if b.lastPrice != nil {
			price = *b.lastPrice
		}
		eq := b.ledger.Equity(price)
		rep.FinalEquity = &eq
		rep.SkippedBuyNoQuote = b.ledger.SkippedBuyNoQuote
		rep.SkippedSellNoBase = b.ledger.SkippedSellNoBase
		if b.initialEquity != nil {
			pnl := eq - *b.initialEquity
			rep.PnL = &pnl
		}
	}
	if b.risk.PeakEquity != nil {
		peak := *b.risk.PeakEquity
		rep.PeakEquity = &peak
		if rep.FinalEquity != nil && peak > 0 {
			dd := (peak - *rep.FinalEquity) / peak * 100
			rep.DrawdownPct = &dd
		}
	}
	return rep
}

// sleep waits for d or until ctx is done, reporting whether the wait
// completed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
