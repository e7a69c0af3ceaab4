package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"grid-bot-go/internal/models"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	wsReadTimeout      = 90 * time.Second
	wsReconnectInitial = time.Second
	wsReconnectMax     = time.Minute
)

// LiveExchange implements Exchange against Binance spot. REST calls go
// through the official client behind a rate limiter; the latest price is
// streamed over the aggTrade websocket and cached, with REST as fallback
// until the first stream tick arrives.
type LiveExchange struct {
	client  *binance.Client
	limiter *rate.Limiter
	logger  *zap.SugaredLogger

	wsBaseURL string
	symbol    string

	mu        sync.RWMutex
	lastPrice float64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewLiveExchange builds the client and starts the price stream for symbol.
// Empty credentials are allowed; they restrict the client to public
// endpoints, which is all a dry run needs.
func NewLiveExchange(apiKey, secretKey string, cfg models.ExchangeConfig, symbol string, logger *zap.SugaredLogger) (*LiveExchange, error) {
	binance.UseTestnet = cfg.Testnet

	limit := cfg.RateLimitPerSec
	if limit <= 0 {
		limit = 10
	}

	e := &LiveExchange{
		client:    binance.NewClient(apiKey, secretKey),
		limiter:   rate.NewLimiter(rate.Limit(limit), int(limit)+1),
		logger:    logger,
		wsBaseURL: cfg.WSBaseURL,
		symbol:    symbol,
		done:      make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go e.streamPrices(ctx)

	return e, nil
}

// aggTradeEvent is the subset of the aggTrade payload the bot needs.
type aggTradeEvent struct {
	Price string `json:"p"`
}

// streamPrices keeps one aggTrade connection alive, reconnecting with
// exponential backoff, and updates the cached price on every trade.
func (e *LiveExchange) streamPrices(ctx context.Context) {
	defer close(e.done)

	delay := wsReconnectInitial
	for {
		if ctx.Err() != nil {
			return
		}
		if err := e.readStream(ctx); err != nil && ctx.Err() == nil {
			e.logger.Warnw("price stream disconnected, reconnecting", "error", err, "delay", delay)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > wsReconnectMax {
			delay = wsReconnectMax
		}
	}
}

func (e *LiveExchange) readStream(ctx context.Context) error {
	url := fmt.Sprintf("%s/ws/%s@aggTrade", e.wsBaseURL, strings.ToLower(e.symbol))
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	e.logger.Infow("price stream connected", "symbol", e.symbol)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			return err
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev aggTradeEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			continue
		}
		price, err := strconv.ParseFloat(ev.Price, 64)
		if err != nil || price <= 0 {
			continue
		}
		e.mu.Lock()
		e.lastPrice = price
		e.mu.Unlock()
	}
}

// FetchPrice returns the cached stream price, falling back to the REST
// ticker before the stream has delivered anything.
func (e *LiveExchange) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	e.mu.RLock()
	cached := e.lastPrice
	e.mu.RUnlock()
	if cached > 0 {
		return cached, nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	prices, err := e.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch price: %w", err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("fetch price: no ticker for %s", symbol)
	}
	return strconv.ParseFloat(prices[0].Price, 64)
}

func sideType(side models.Side) binance.SideType {
	if side == models.SideBuy {
		return binance.SideTypeBuy
	}
	return binance.SideTypeSell
}

func (e *LiveExchange) CreateLimitOrder(ctx context.Context, symbol string, side models.Side, price, qty float64) (*OrderAck, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := e.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType(side)).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(strconv.FormatFloat(qty, 'f', -1, 64)).
		Price(strconv.FormatFloat(price, 'f', -1, 64)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("create limit order: %w", err)
	}
	return &OrderAck{
		ID:     strconv.FormatInt(res.OrderID, 10),
		Symbol: symbol,
		Side:   side,
		Price:  price,
		Amount: qty,
		Status: mapOrderStatus(res.Status),
	}, nil
}

func (e *LiveExchange) CreateMarketOrder(ctx context.Context, symbol string, side models.Side, qty float64) (*OrderAck, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := e.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType(side)).
		Type(binance.OrderTypeMarket).
		Quantity(strconv.FormatFloat(qty, 'f', -1, 64)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("create market order: %w", err)
	}
	price, _ := strconv.ParseFloat(res.Price, 64)
	return &OrderAck{
		ID:     strconv.FormatInt(res.OrderID, 10),
		Symbol: symbol,
		Side:   side,
		Price:  price,
		Amount: qty,
		Status: mapOrderStatus(res.Status),
	}, nil
}

func (e *LiveExchange) FetchOrder(ctx context.Context, symbol, id string) (*OrderInfo, error) {
	orderID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("fetch order: bad id %q: %w", id, err)
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	order, err := e.client.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch order %s: %w", id, err)
	}
	filled, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	avg, _ := strconv.ParseFloat(order.Price, 64)
	return &OrderInfo{
		ID:        id,
		Status:    mapOrderStatus(order.Status),
		FilledQty: filled,
		AvgPrice:  avg,
	}, nil
}

func (e *LiveExchange) CancelOrder(ctx context.Context, symbol, id string) error {
	orderID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("cancel order: bad id %q: %w", id, err)
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := e.client.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx); err != nil {
		return fmt.Errorf("cancel order %s: %w", id, err)
	}
	return nil
}

func (e *LiveExchange) FetchBalance(ctx context.Context, asset string) (Balance, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return Balance{}, err
	}
	account, err := e.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return Balance{}, fmt.Errorf("fetch balance: %w", err)
	}
	for _, b := range account.Balances {
		if b.Asset == asset {
			free, _ := strconv.ParseFloat(b.Free, 64)
			locked, _ := strconv.ParseFloat(b.Locked, 64)
			return Balance{Asset: asset, Free: free, Locked: locked}, nil
		}
	}
	return Balance{Asset: asset}, nil
}

// Close stops the price stream and waits for it to exit.
func (e *LiveExchange) Close() error {
	e.cancel()
	<-e.done
	return nil
}

func mapOrderStatus(status binance.OrderStatusType) models.OrderStatus {
	switch status {
	case binance.OrderStatusTypeFilled:
		return models.OrderClosed
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired, binance.OrderStatusTypeRejected:
		return models.OrderCanceled
	default:
		return models.OrderOpen
	}
}

// IsInsufficientFunds reports whether err is the venue's insufficient
// balance rejection. These are not retried.
func IsInsufficientFunds(err error) bool {
	var apiErr *common.APIError
	return errors.As(err, &apiErr) && apiErr.Code == -2010
}
