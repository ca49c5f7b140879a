package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"signal-trader/config"
	"signal-trader/database"
	"signal-trader/interfaces"
	"signal-trader/metrics"
	"signal-trader/models"

	"github.com/sirupsen/logrus"
)

// SignalRequest is the normalized inbound trade signal
type SignalRequest struct {
	Signal   string // CALL or PUT
	Ticker   string
	Quantity int
}

// SignalResult is the synchronous response to a processed signal
type SignalResult struct {
	Success         bool               `json:"success"`
	Message         string             `json:"message,omitempty"`
	Error           string             `json:"error,omitempty"`
	OrderID         uint               `json:"order_id,omitempty"`
	ContractSymbol  string             `json:"contract_symbol,omitempty"`
	StrikePrice     float64            `json:"strike_price,omitempty"`
	ExpiryDate      string             `json:"expiry_date,omitempty"`
	BrokerOrderID   string             `json:"broker_order_id,omitempty"`
	FillPrice       float64            `json:"fill_price,omitempty"`
	Supervision     *SupervisionHandle `json:"supervision,omitempty"`
}

// TradingService turns a webhook signal into an entered, supervised
// position: resolve the ATM contract, buy at market, wait for the fill
// and hand the position to the exit manager.
type TradingService struct {
	broker   interfaces.Broker
	resolver interfaces.ContractResolver
	exits    *ExitManager
	storage  *database.LocalStorage
	cfg      *config.Config
	logger   *logrus.Logger

	fillPollInterval time.Duration
}

// NewTradingService creates a trading service
func NewTradingService(
	broker interfaces.Broker,
	resolver interfaces.ContractResolver,
	exits *ExitManager,
	storage *database.LocalStorage,
	cfg *config.Config,
) *TradingService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &TradingService{
		broker:           broker,
		resolver:         resolver,
		exits:            exits,
		storage:          storage,
		cfg:              cfg,
		logger:           logger,
		fillPollInterval: time.Second,
	}
}

// ProcessSignal validates and executes an inbound signal. The returned
// result mirrors what the webhook caller sees; the exit supervision it
// starts runs detached.
func (ts *TradingService) ProcessSignal(ctx context.Context, sig SignalRequest, ipAddress, userAgent string, rawPayload []byte) (*SignalResult, error) {
	webhookLog := &models.DBWebhookLog{
		Payload:   string(rawPayload),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	if err := ts.storage.SaveWebhookLog(webhookLog); err != nil {
		ts.logger.WithError(err).Warn("Failed to save webhook log")
	}

	result, order, err := ts.execute(ctx, sig)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues("rejected").Inc()
		ts.logger.WithError(err).Error("Error processing webhook signal")

		if order != nil {
			order.Status = "failed"
			order.ErrorMessage = err.Error()
			if saveErr := ts.storage.SaveOrder(order); saveErr != nil {
				ts.logger.WithError(saveErr).Warn("Failed to update failed order")
			}
		}

		webhookLog.ResponseStatus = http.StatusBadRequest
		webhookLog.ResponseMessage = err.Error()
		if saveErr := ts.storage.SaveWebhookLog(webhookLog); saveErr != nil {
			ts.logger.WithError(saveErr).Warn("Failed to update webhook log")
		}

		failed := &SignalResult{Success: false, Error: err.Error()}
		if order != nil {
			failed.OrderID = order.ID
		}
		return failed, err
	}

	metrics.WebhooksReceived.WithLabelValues("accepted").Inc()
	webhookLog.ResponseStatus = http.StatusOK
	webhookLog.ResponseMessage = result.Message
	if saveErr := ts.storage.SaveWebhookLog(webhookLog); saveErr != nil {
		ts.logger.WithError(saveErr).Warn("Failed to update webhook log")
	}

	return result, nil
}

func (ts *TradingService) execute(ctx context.Context, sig SignalRequest) (*SignalResult, *models.DBOrder, error) {
	if sig.Signal != "CALL" && sig.Signal != "PUT" {
		return nil, nil, fmt.Errorf("%w: signal must be CALL or PUT", interfaces.ErrInvalidInput)
	}
	if sig.Quantity <= 0 {
		return nil, nil, fmt.Errorf("%w: quantity must be positive", interfaces.ErrInvalidInput)
	}

	order := &models.DBOrder{
		Ticker:   sig.Ticker,
		Signal:   sig.Signal,
		Quantity: sig.Quantity,
		Status:   "processing",
	}
	if err := ts.storage.SaveOrder(order); err != nil {
		return nil, nil, fmt.Errorf("failed to create order record: %w", err)
	}

	contract, err := ts.resolver.ResolveATM(ctx, sig.Ticker, sig.Signal)
	if err != nil {
		return nil, order, fmt.Errorf("failed to resolve contract: %w", err)
	}

	order.ContractSymbol = contract.Symbol
	order.StrikePrice = contract.StrikePrice
	order.ExpiryDate = contract.ExpirationDate

	ts.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"contract": contract.Symbol,
		"qty":      sig.Quantity,
	}).Info("Placing entry order")

	brokerOrderID, err := ts.broker.SubmitMarketBuy(ctx, contract.Symbol, sig.Quantity)
	if err != nil {
		return nil, order, fmt.Errorf("failed to place entry order: %w", err)
	}
	metrics.EntriesPlaced.Inc()

	order.BrokerOrderID = brokerOrderID
	order.Status = "submitted"
	if err := ts.storage.SaveOrder(order); err != nil {
		ts.logger.WithError(err).Warn("Failed to update submitted order")
	}

	fillPrice, err := ts.waitForFill(ctx, brokerOrderID)
	if err != nil {
		return nil, order, fmt.Errorf("entry fill not confirmed: %w", err)
	}

	now := time.Now()
	order.Status = "filled"
	order.FillPrice = &fillPrice
	order.FilledAt = &now
	if err := ts.storage.SaveOrder(order); err != nil {
		ts.logger.WithError(err).Warn("Failed to update filled order")
	}

	takeProfitMult, stopMult := ts.exitMultipliers(sig.Signal)
	handle, err := ts.exits.StartSupervision(ctx, StartSupervisionRequest{
		OrderID:        order.ID,
		Symbol:         contract.Symbol,
		Quantity:       sig.Quantity,
		EntryPrice:     fillPrice,
		TakeProfitMult: takeProfitMult,
		StopMult:       stopMult,
		UseMarketForTP: ts.cfg.UseMarketForTP,
	})
	if err != nil {
		// Position is entered but unprotected; surface this loudly.
		ts.logger.WithError(err).WithField("order_id", order.ID).Error("Position entered but exit supervision failed to start")
		return nil, order, fmt.Errorf("position entered but unprotected: %w", err)
	}

	return &SignalResult{
		Success:        true,
		Message:        fmt.Sprintf("%s order placed successfully: %s", sig.Signal, contract.Symbol),
		OrderID:        order.ID,
		ContractSymbol: contract.Symbol,
		StrikePrice:    contract.StrikePrice,
		ExpiryDate:     contract.ExpirationDate,
		BrokerOrderID:  brokerOrderID,
		FillPrice:      fillPrice,
		Supervision:    handle,
	}, order, nil
}

// waitForFill polls the entry order until it fills or reaches another
// terminal state. Transient status failures are retried until the
// configured timeout.
func (ts *TradingService) waitForFill(ctx context.Context, brokerOrderID string) (float64, error) {
	deadline := time.Now().Add(ts.cfg.EntryFillTimeout)

	for {
		status, err := ts.broker.GetOrderStatus(ctx, brokerOrderID)
		if err != nil {
			ts.logger.WithError(err).Debug("Entry order status check failed; retrying")
		} else {
			switch status.State {
			case interfaces.OrderFilled:
				if status.FilledAvgPrice == nil {
					return 0, errors.New("filled order has no average price")
				}
				return *status.FilledAvgPrice, nil
			case interfaces.OrderCanceled, interfaces.OrderExpired, interfaces.OrderRejected:
				return 0, fmt.Errorf("entry order terminal without fill: %s", status.State)
			}
		}

		if time.Now().After(deadline) {
			return 0, fmt.Errorf("timed out waiting for entry fill after %s", ts.cfg.EntryFillTimeout)
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(ts.fillPollInterval):
		}
	}
}

func (ts *TradingService) exitMultipliers(signal string) (takeProfit, stop float64) {
	if signal == "PUT" {
		return ts.cfg.PutTakeProfitMult, ts.cfg.PutStopMult
	}
	return ts.cfg.CallTakeProfitMult, ts.cfg.CallStopMult
}

// TestConnection verifies broker API connectivity
func (ts *TradingService) TestConnection(ctx context.Context) (bool, string) {
	account, err := ts.broker.GetAccount(ctx)
	if err != nil {
		return false, fmt.Sprintf("Connection failed: %v", err)
	}
	return true, fmt.Sprintf("Connection successful (account %s)", account.ID)
}
