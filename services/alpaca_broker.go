package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"signal-trader/interfaces"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AlpacaBroker implements interfaces.Broker against the Alpaca trading
// API. Options contracts trade with day time-in-force only.
type AlpacaBroker struct {
	client  *alpaca.Client
	baseURL string
	mu      sync.RWMutex
	logger  *logrus.Logger
}

// NewAlpacaBroker creates a broker client for the given credentials
func NewAlpacaBroker(apiKey, apiSecret, baseURL string) *AlpacaBroker {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &AlpacaBroker{
		client:  newAlpacaClient(apiKey, apiSecret, baseURL),
		baseURL: baseURL,
		logger:  logger,
	}
}

func newAlpacaClient(apiKey, apiSecret, baseURL string) *alpaca.Client {
	return alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
}

// Reload swaps the underlying client for new credentials. Called by the
// settings endpoint after keys are updated.
func (b *AlpacaBroker) Reload(apiKey, apiSecret string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.client = newAlpacaClient(apiKey, apiSecret, b.baseURL)
	b.logger.Info("Broker client credentials reloaded")
}

func (b *AlpacaBroker) api() *alpaca.Client {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.client
}

// SubmitMarketBuy submits a day market buy order
func (b *AlpacaBroker) SubmitMarketBuy(ctx context.Context, symbol string, qty int) (string, error) {
	return b.submit(ctx, alpaca.PlaceOrderRequest{
		Symbol:      symbol,
		Qty:         contractQty(qty),
		Side:        alpaca.Buy,
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
	})
}

// SubmitMarketSell submits a day market sell order
func (b *AlpacaBroker) SubmitMarketSell(ctx context.Context, symbol string, qty int) (string, error) {
	return b.submit(ctx, alpaca.PlaceOrderRequest{
		Symbol:      symbol,
		Qty:         contractQty(qty),
		Side:        alpaca.Sell,
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
	})
}

// SubmitLimitSell submits a day limit sell order at the given price
func (b *AlpacaBroker) SubmitLimitSell(ctx context.Context, symbol string, qty int, limitPrice float64) (string, error) {
	price := centPrice(limitPrice)
	return b.submit(ctx, alpaca.PlaceOrderRequest{
		Symbol:      symbol,
		Qty:         contractQty(qty),
		Side:        alpaca.Sell,
		Type:        alpaca.Limit,
		TimeInForce: alpaca.Day,
		LimitPrice:  &price,
	})
}

// SubmitStopSell submits a resting day stop sell order
func (b *AlpacaBroker) SubmitStopSell(ctx context.Context, symbol string, qty int, stopPrice float64) (string, error) {
	price := centPrice(stopPrice)
	return b.submit(ctx, alpaca.PlaceOrderRequest{
		Symbol:      symbol,
		Qty:         contractQty(qty),
		Side:        alpaca.Sell,
		Type:        alpaca.Stop,
		TimeInForce: alpaca.Day,
		StopPrice:   &price,
	})
}

func (b *AlpacaBroker) submit(ctx context.Context, req alpaca.PlaceOrderRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrBrokerUnavailable, err)
	}

	order, err := b.api().PlaceOrder(req)
	if err != nil {
		return "", classifyBrokerError(err)
	}

	b.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"symbol":   req.Symbol,
		"side":     req.Side,
		"type":     req.Type,
	}).Debug("Order submitted")

	return order.ID, nil
}

// CancelOrder cancels a resting order. A 404 or "not cancelable"
// response means the order already filled, expired or was cancelled;
// that is a terminal outcome, not a failure.
func (b *AlpacaBroker) CancelOrder(ctx context.Context, orderID string) (interfaces.CancelResult, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrBrokerUnavailable, err)
	}

	err := b.api().CancelOrder(orderID)
	if err == nil {
		return interfaces.CancelDone, nil
	}

	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusUnprocessableEntity {
			return interfaces.CancelAlreadyGone, nil
		}
	}

	return "", classifyBrokerError(err)
}

// GetOrderStatus returns a normalized snapshot of an order
func (b *AlpacaBroker) GetOrderStatus(ctx context.Context, orderID string) (*interfaces.OrderStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBrokerUnavailable, err)
	}

	order, err := b.api().GetOrder(orderID)
	if err != nil {
		return nil, classifyBrokerError(err)
	}

	status := &interfaces.OrderStatus{
		ID:        order.ID,
		State:     mapOrderState(order.Status),
		FilledQty: order.FilledQty.InexactFloat64(),
	}
	if order.FilledAvgPrice != nil {
		p := order.FilledAvgPrice.InexactFloat64()
		status.FilledAvgPrice = &p
	}

	return status, nil
}

// GetAccount returns the brokerage account summary
func (b *AlpacaBroker) GetAccount(ctx context.Context) (*interfaces.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBrokerUnavailable, err)
	}

	account, err := b.api().GetAccount()
	if err != nil {
		return nil, classifyBrokerError(err)
	}

	return &interfaces.Account{
		ID:               account.ID,
		Cash:             account.Cash.InexactFloat64(),
		BuyingPower:      account.BuyingPower.InexactFloat64(),
		PortfolioValue:   account.PortfolioValue.InexactFloat64(),
		DayTradeCount:    int(account.DaytradeCount),
		PatternDayTrader: account.PatternDayTrader,
	}, nil
}

// GetClock returns the market session clock
func (b *AlpacaBroker) GetClock(ctx context.Context) (*interfaces.Clock, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBrokerUnavailable, err)
	}

	clock, err := b.api().GetClock()
	if err != nil {
		return nil, classifyBrokerError(err)
	}

	return &interfaces.Clock{
		Timestamp: clock.Timestamp,
		IsOpen:    clock.IsOpen,
		NextOpen:  clock.NextOpen,
		NextClose: clock.NextClose,
	}, nil
}

// classifyBrokerError maps SDK errors onto the shared taxonomy: an API
// error body means the broker answered and rejected, anything else is a
// transport problem.
func classifyBrokerError(err error) error {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s (status %d)", interfaces.ErrBrokerRejected, apiErr.Message, apiErr.StatusCode)
	}
	return fmt.Errorf("%w: %v", interfaces.ErrBrokerUnavailable, err)
}

func mapOrderState(status string) interfaces.OrderState {
	switch status {
	case "filled":
		return interfaces.OrderFilled
	case "canceled", "pending_cancel", "stopped", "replaced":
		return interfaces.OrderCanceled
	case "expired":
		return interfaces.OrderExpired
	case "rejected":
		return interfaces.OrderRejected
	default:
		return interfaces.OrderPending
	}
}

func contractQty(qty int) *decimal.Decimal {
	d := decimal.NewFromInt(int64(qty))
	return &d
}

func centPrice(price float64) decimal.Decimal {
	return decimal.NewFromFloat(price).Round(2)
}
