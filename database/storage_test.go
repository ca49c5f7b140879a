package database

import (
	"path/filepath"
	"testing"
	"time"

	"signal-trader/models"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	storage, err := NewLocalStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestOrderRoundTrip(t *testing.T) {
	storage := newTestStorage(t)

	fillPrice := 2.15
	now := time.Now()
	order := &models.DBOrder{
		Ticker:         "SPY",
		Signal:         "CALL",
		ContractSymbol: "SPY260903C00640000",
		Quantity:       1,
		StrikePrice:    640,
		ExpiryDate:     "2026-09-03",
		Status:         "filled",
		BrokerOrderID:  "broker-1",
		FillPrice:      &fillPrice,
		FilledAt:       &now,
	}
	if err := storage.SaveOrder(order); err != nil {
		t.Fatalf("SaveOrder failed: %v", err)
	}
	if order.ID == 0 {
		t.Fatal("saved order has no ID")
	}

	got, err := storage.GetOrderByID(order.ID)
	if err != nil {
		t.Fatalf("GetOrderByID failed: %v", err)
	}
	if got.ContractSymbol != order.ContractSymbol || got.Status != "filled" {
		t.Errorf("got %+v", got)
	}
	if got.FillPrice == nil || *got.FillPrice != fillPrice {
		t.Errorf("fill price = %v, want %v", got.FillPrice, fillPrice)
	}
}

func TestGetRecentOrdersAndCounts(t *testing.T) {
	storage := newTestStorage(t)

	statuses := []string{"filled", "filled", "failed", "processing"}
	for i, status := range statuses {
		order := &models.DBOrder{Ticker: "SPY", Signal: "CALL", Quantity: i + 1, Status: status}
		if err := storage.SaveOrder(order); err != nil {
			t.Fatalf("SaveOrder failed: %v", err)
		}
	}

	recent, err := storage.GetRecentOrders(2)
	if err != nil {
		t.Fatalf("GetRecentOrders failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d orders, want 2", len(recent))
	}

	total, err := storage.CountOrders("")
	if err != nil {
		t.Fatalf("CountOrders failed: %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	filled, err := storage.CountOrders("filled")
	if err != nil {
		t.Fatalf("CountOrders failed: %v", err)
	}
	if filled != 2 {
		t.Errorf("filled = %d, want 2", filled)
	}
}

func TestWebhookLogRoundTrip(t *testing.T) {
	storage := newTestStorage(t)

	log := &models.DBWebhookLog{
		Payload:   `{"signal":"CALL"}`,
		IPAddress: "127.0.0.1",
		UserAgent: "test-agent",
	}
	if err := storage.SaveWebhookLog(log); err != nil {
		t.Fatalf("SaveWebhookLog failed: %v", err)
	}

	log.ResponseStatus = 200
	log.ResponseMessage = "ok"
	if err := storage.SaveWebhookLog(log); err != nil {
		t.Fatalf("webhook log update failed: %v", err)
	}

	logs, err := storage.GetRecentWebhookLogs(10)
	if err != nil {
		t.Fatalf("GetRecentWebhookLogs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}
	if logs[0].ResponseStatus != 200 {
		t.Errorf("response status = %d, want 200", logs[0].ResponseStatus)
	}
}

func TestTradingConfigSingleRow(t *testing.T) {
	storage := newTestStorage(t)

	got, err := storage.GetTradingConfig()
	if err != nil {
		t.Fatalf("GetTradingConfig failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil config before first save")
	}

	if err := storage.SaveTradingConfig(&models.DBTradingConfig{AlpacaAPIKey: "key-1", AlpacaSecretKey: "secret-1"}); err != nil {
		t.Fatalf("SaveTradingConfig failed: %v", err)
	}
	if err := storage.SaveTradingConfig(&models.DBTradingConfig{AlpacaAPIKey: "key-2", AlpacaSecretKey: "secret-2"}); err != nil {
		t.Fatalf("second SaveTradingConfig failed: %v", err)
	}

	got, err = storage.GetTradingConfig()
	if err != nil {
		t.Fatalf("GetTradingConfig failed: %v", err)
	}
	if got == nil || got.AlpacaAPIKey != "key-2" {
		t.Errorf("config = %+v, want latest key", got)
	}
}

func TestSupervisedPositionUpsert(t *testing.T) {
	storage := newTestStorage(t)

	position := &models.DBSupervisedPosition{
		PositionID:      "pos-1",
		OrderID:         1,
		Symbol:          "SPY260903C00640000",
		Quantity:        1,
		EntryPrice:      2.00,
		TakeProfitPrice: 3.80,
		StopPrice:       1.00,
		StopOrderID:     "stop-1",
		State:           "ACTIVE",
		UseMarketForTP:  true,
	}
	if err := storage.SaveSupervisedPosition(position); err != nil {
		t.Fatalf("SaveSupervisedPosition failed: %v", err)
	}

	exitPrice := 3.85
	now := time.Now()
	update := &models.DBSupervisedPosition{
		PositionID:      "pos-1",
		OrderID:         1,
		Symbol:          "SPY260903C00640000",
		Quantity:        1,
		EntryPrice:      2.00,
		TakeProfitPrice: 3.80,
		StopPrice:       1.00,
		StopOrderID:     "stop-1",
		ExitOrderID:     "sell-1",
		State:           "TAKE_PROFIT_FILLED",
		UseMarketForTP:  true,
		ExitPrice:       &exitPrice,
		ClosedAt:        &now,
	}
	if err := storage.SaveSupervisedPosition(update); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := storage.GetSupervisedPosition("pos-1")
	if err != nil {
		t.Fatalf("GetSupervisedPosition failed: %v", err)
	}
	if got.State != "TAKE_PROFIT_FILLED" {
		t.Errorf("state = %s, want TAKE_PROFIT_FILLED", got.State)
	}
	if got.ExitPrice == nil || *got.ExitPrice != exitPrice {
		t.Errorf("exit price = %v, want %v", got.ExitPrice, exitPrice)
	}

	all, err := storage.GetSupervisedPositions("")
	if err != nil {
		t.Fatalf("GetSupervisedPositions failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("upsert produced %d rows, want 1", len(all))
	}
}

func TestGetSupervisedPositionsStateFilter(t *testing.T) {
	storage := newTestStorage(t)

	for i, state := range []string{"ACTIVE", "ACTIVE", "STOP_FILLED"} {
		position := &models.DBSupervisedPosition{
			PositionID: string(rune('a' + i)),
			Symbol:     "X",
			Quantity:   1,
			State:      state,
		}
		if err := storage.SaveSupervisedPosition(position); err != nil {
			t.Fatalf("SaveSupervisedPosition failed: %v", err)
		}
	}

	active, err := storage.GetSupervisedPositions("ACTIVE")
	if err != nil {
		t.Fatalf("GetSupervisedPositions failed: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("active = %d, want 2", len(active))
	}
}
