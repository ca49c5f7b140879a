package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"signal-trader/database"
	"signal-trader/interfaces"
)

// mockBroker scripts broker behavior for supervisor and intake tests
type mockBroker struct {
	mu sync.Mutex

	// status returned for any GetOrderStatus call
	orderState     interfaces.OrderState
	filledAvgPrice *float64
	statusErr      error

	stopErr      error
	sellErrs     []error // consumed one per sell submission
	cancelResult interfaces.CancelResult
	cancelErr    error

	stopSubmits    int
	marketBuys     int
	marketSells    int
	limitSells     int
	lastStopPrice  float64
	lastLimitPrice float64
	cancelled      []string

	seq int
}

func newMockBroker() *mockBroker {
	return &mockBroker{
		orderState:   interfaces.OrderPending,
		cancelResult: interfaces.CancelDone,
	}
}

func (m *mockBroker) setOrderState(state interfaces.OrderState, filledAvgPrice *float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderState = state
	m.filledAvgPrice = filledAvgPrice
}

func (m *mockBroker) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *mockBroker) popSellErr() error {
	if len(m.sellErrs) == 0 {
		return nil
	}
	err := m.sellErrs[0]
	m.sellErrs = m.sellErrs[1:]
	return err
}

func (m *mockBroker) SubmitMarketBuy(ctx context.Context, symbol string, qty int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marketBuys++
	return m.nextID("buy"), nil
}

func (m *mockBroker) SubmitMarketSell(ctx context.Context, symbol string, qty int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popSellErr(); err != nil {
		return "", err
	}
	m.marketSells++
	return m.nextID("sell"), nil
}

func (m *mockBroker) SubmitLimitSell(ctx context.Context, symbol string, qty int, limitPrice float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popSellErr(); err != nil {
		return "", err
	}
	m.limitSells++
	m.lastLimitPrice = limitPrice
	return m.nextID("sell"), nil
}

func (m *mockBroker) SubmitStopSell(ctx context.Context, symbol string, qty int, stopPrice float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopErr != nil {
		return "", m.stopErr
	}
	m.stopSubmits++
	m.lastStopPrice = stopPrice
	return m.nextID("stop"), nil
}

func (m *mockBroker) CancelOrder(ctx context.Context, orderID string) (interfaces.CancelResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelErr != nil {
		return "", m.cancelErr
	}
	m.cancelled = append(m.cancelled, orderID)
	return m.cancelResult, nil
}

func (m *mockBroker) GetOrderStatus(ctx context.Context, orderID string) (*interfaces.OrderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return &interfaces.OrderStatus{
		ID:             orderID,
		State:          m.orderState,
		FilledAvgPrice: m.filledAvgPrice,
	}, nil
}

func (m *mockBroker) GetAccount(ctx context.Context) (*interfaces.Account, error) {
	return &interfaces.Account{ID: "mock-account"}, nil
}

func (m *mockBroker) GetClock(ctx context.Context) (*interfaces.Clock, error) {
	return &interfaces.Clock{IsOpen: true}, nil
}

func (m *mockBroker) counts() (stops, marketSells, limitSells, cancels int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopSubmits, m.marketSells, m.limitSells, len(m.cancelled)
}

// mockQuotes scripts the reference price feed
type mockQuotes struct {
	mu    sync.Mutex
	price float64
	err   error
	calls int
}

func (m *mockQuotes) set(price float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.price = price
	m.err = err
}

func (m *mockQuotes) GetReferencePrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	return m.price, nil
}

func (m *mockQuotes) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockResolver returns a fixed contract
type mockResolver struct {
	contract *interfaces.OptionContract
	err      error
}

func (m *mockResolver) ResolveATM(ctx context.Context, ticker, direction string) (*interfaces.OptionContract, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.contract, nil
}

func newTestStorage(t *testing.T) *database.LocalStorage {
	t.Helper()
	storage, err := database.NewLocalStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func newTestJournal(t *testing.T) *TradeJournal {
	t.Helper()
	journal, err := NewTradeJournal(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create test journal: %v", err)
	}
	return journal
}
