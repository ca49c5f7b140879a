package interfaces

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy shared by the broker and quote clients. Callers match
// with errors.Is; implementations wrap these with fmt.Errorf("...: %w").
var (
	// ErrInvalidInput rejects bad fill prices/quantities before any order
	// is placed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBrokerRejected means the broker returned an error status for the
	// request itself.
	ErrBrokerRejected = errors.New("broker rejected request")

	// ErrBrokerUnavailable covers transport failures and timeouts.
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrQuoteUnavailable means no usable reference price exists right
	// now. It is a no-signal condition, not a failure.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrNoContract means the contracts catalog had no tradable match.
	ErrNoContract = errors.New("no matching option contract")
)

// OrderState is the normalized lifecycle state of a broker order.
type OrderState string

const (
	OrderPending  OrderState = "pending"
	OrderFilled   OrderState = "filled"
	OrderCanceled OrderState = "canceled"
	OrderExpired  OrderState = "expired"
	OrderRejected OrderState = "rejected"
)

// OrderStatus is a point-in-time snapshot of a broker order.
type OrderStatus struct {
	ID             string
	State          OrderState
	FilledQty      float64
	FilledAvgPrice *float64
}

// CancelResult distinguishes a real cancellation from an order that was
// already gone (filled, expired or previously cancelled). Both are
// terminal outcomes; neither is an error.
type CancelResult string

const (
	CancelDone        CancelResult = "cancelled"
	CancelAlreadyGone CancelResult = "already_gone"
)

// Account is a trimmed view of the brokerage account.
type Account struct {
	ID               string  `json:"id"`
	Cash             float64 `json:"cash"`
	BuyingPower      float64 `json:"buying_power"`
	PortfolioValue   float64 `json:"portfolio_value"`
	DayTradeCount    int     `json:"day_trade_count"`
	PatternDayTrader bool    `json:"pattern_day_trader"`
}

// Clock reports the market session state.
type Clock struct {
	Timestamp time.Time `json:"timestamp"`
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// Broker is the order-placement capability set the exit supervisor and
// the order intake depend on. Implementations are stateless HTTP
// wrappers and safe for concurrent use.
type Broker interface {
	SubmitMarketBuy(ctx context.Context, symbol string, qty int) (string, error)
	SubmitMarketSell(ctx context.Context, symbol string, qty int) (string, error)
	SubmitLimitSell(ctx context.Context, symbol string, qty int, limitPrice float64) (string, error)
	SubmitStopSell(ctx context.Context, symbol string, qty int, stopPrice float64) (string, error)

	// CancelOrder must report an already filled/expired/cancelled order as
	// CancelAlreadyGone, never as an error.
	CancelOrder(ctx context.Context, orderID string) (CancelResult, error)
	GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error)

	GetAccount(ctx context.Context) (*Account, error)
	GetClock(ctx context.Context) (*Clock, error)
}

// QuoteProvider returns a reference price for an option symbol: the
// bid/ask midpoint when both sides are positive, else the last trade
// price when positive, else ErrQuoteUnavailable.
type QuoteProvider interface {
	GetReferencePrice(ctx context.Context, symbol string) (float64, error)
}
