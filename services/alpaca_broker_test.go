package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"signal-trader/interfaces"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

func TestClassifyBrokerError(t *testing.T) {
	apiErr := &alpaca.APIError{
		StatusCode: 403,
		Code:       40310000,
		Message:    "insufficient buying power",
	}
	if err := classifyBrokerError(apiErr); !errors.Is(err, interfaces.ErrBrokerRejected) {
		t.Errorf("API error classified as %v, want ErrBrokerRejected", err)
	}
	if err := classifyBrokerError(fmt.Errorf("wrapped: %w", apiErr)); !errors.Is(err, interfaces.ErrBrokerRejected) {
		t.Error("wrapped API error not classified as ErrBrokerRejected")
	}
	if err := classifyBrokerError(errors.New("dial tcp: connection refused")); !errors.Is(err, interfaces.ErrBrokerUnavailable) {
		t.Errorf("transport error classified as %v, want ErrBrokerUnavailable", err)
	}
}

func TestMapOrderState(t *testing.T) {
	cases := []struct {
		status string
		want   interfaces.OrderState
	}{
		{"filled", interfaces.OrderFilled},
		{"canceled", interfaces.OrderCanceled},
		{"pending_cancel", interfaces.OrderCanceled},
		{"expired", interfaces.OrderExpired},
		{"rejected", interfaces.OrderRejected},
		{"new", interfaces.OrderPending},
		{"partially_filled", interfaces.OrderPending},
		{"accepted", interfaces.OrderPending},
	}
	for _, tc := range cases {
		if got := mapOrderState(tc.status); got != tc.want {
			t.Errorf("mapOrderState(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestCentPriceRounds(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{1.005, "1.01"},
		{3.799999, "3.8"},
		{0.01, "0.01"},
	}
	for _, tc := range cases {
		if got := centPrice(tc.in).String(); got != tc.want {
			t.Errorf("centPrice(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestBrokerRejectsCancelledContext(t *testing.T) {
	broker := NewAlpacaBroker("key", "secret", "https://paper-api.alpaca.markets")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := broker.SubmitMarketBuy(ctx, "SPY", 1); !errors.Is(err, interfaces.ErrBrokerUnavailable) {
		t.Errorf("submit with cancelled context: %v, want ErrBrokerUnavailable", err)
	}
	if _, err := broker.CancelOrder(ctx, "x"); !errors.Is(err, interfaces.ErrBrokerUnavailable) {
		t.Errorf("cancel with cancelled context: %v, want ErrBrokerUnavailable", err)
	}
	if _, err := broker.GetOrderStatus(ctx, "x"); !errors.Is(err, interfaces.ErrBrokerUnavailable) {
		t.Errorf("status with cancelled context: %v, want ErrBrokerUnavailable", err)
	}
}
