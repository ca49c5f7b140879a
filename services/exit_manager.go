package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"signal-trader/database"
	"signal-trader/interfaces"
	"signal-trader/metrics"
	"signal-trader/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PositionState is the supervision lifecycle state of one position
type PositionState string

const (
	StateActive           PositionState = "ACTIVE"
	StateTakeProfitFilled PositionState = "TAKE_PROFIT_FILLED"
	StateStopFilled       PositionState = "STOP_FILLED"
	StateAborted          PositionState = "ABORTED"
)

// minTickSize is the smallest valid option order price
const minTickSize = 0.01

// SupervisedPosition is one position under exit supervision
type SupervisedPosition struct {
	ID              string        `json:"id"`
	OrderID         uint          `json:"order_id,omitempty"`
	Symbol          string        `json:"symbol"`
	Quantity        int           `json:"quantity"`
	EntryPrice      float64       `json:"entry_price"`
	TakeProfitPrice float64       `json:"take_profit_price"`
	StopPrice       float64       `json:"stop_price"`
	StopOrderID     string        `json:"stop_order_id"`
	ExitOrderID     string        `json:"exit_order_id,omitempty"`
	State           PositionState `json:"state"`
	UseMarketForTP  bool          `json:"use_market_for_tp"`
	ExitPrice       *float64      `json:"exit_price,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	ClosedAt        *time.Time    `json:"closed_at,omitempty"`

	cancel context.CancelFunc
}

// SupervisionHandle is the synchronous result of starting supervision
type SupervisionHandle struct {
	PositionID      string  `json:"position_id"`
	StopOrderID     string  `json:"stop_order_id"`
	TakeProfitPrice float64 `json:"take_profit_price"`
	StopPrice       float64 `json:"stop_price"`
}

// StartSupervisionRequest describes a freshly filled position to
// supervise
type StartSupervisionRequest struct {
	OrderID        uint
	Symbol         string
	Quantity       int
	EntryPrice     float64
	TakeProfitMult float64
	StopMult       float64
	UseMarketForTP bool
}

// ExitManager supervises open option positions with a client-side
// one-cancels-other construct: a real stop order rests at the broker
// while a goroutine polls quotes for the take-profit trigger. The stop
// check runs before the take-profit check every cycle, so a stop that
// filled between cycles wins over a take-profit signal seen in the same
// pass. Because the stop is live at the broker, a fill landing while a
// take-profit order is in flight can still double-exit; that residual
// race is not preventable client-side without broker OCO support.
type ExitManager struct {
	broker       interfaces.Broker
	quotes       interfaces.QuoteProvider
	storage      *database.LocalStorage
	journal      *TradeJournal
	pollInterval time.Duration

	positions map[string]*SupervisedPosition
	mu        sync.RWMutex
	wg        sync.WaitGroup
	logger    *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewExitManager creates an exit manager
func NewExitManager(
	broker interfaces.Broker,
	quotes interfaces.QuoteProvider,
	storage *database.LocalStorage,
	journal *TradeJournal,
	pollInterval time.Duration,
) *ExitManager {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	ctx, cancel := context.WithCancel(context.Background())

	return &ExitManager{
		broker:       broker,
		quotes:       quotes,
		storage:      storage,
		journal:      journal,
		pollInterval: pollInterval,
		positions:    make(map[string]*SupervisedPosition),
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// StartSupervision places the protective stop order and launches the
// monitoring goroutine. It returns as soon as the stop is resting; the
// monitor runs detached until the position reaches a terminal state.
// Stop placement is the only fatal path: if it fails the caller holds
// an unprotected position and must decide how to react.
func (em *ExitManager) StartSupervision(ctx context.Context, req StartSupervisionRequest) (*SupervisionHandle, error) {
	if req.EntryPrice <= 0 {
		return nil, fmt.Errorf("%w: entry price must be positive", interfaces.ErrInvalidInput)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", interfaces.ErrInvalidInput)
	}
	if req.TakeProfitMult <= 0 || req.StopMult <= 0 {
		return nil, fmt.Errorf("%w: exit multipliers must be positive", interfaces.ErrInvalidInput)
	}

	stopPrice := math.Max(minTickSize, roundCents(req.EntryPrice*req.StopMult))
	takeProfitPrice := roundCents(req.EntryPrice * req.TakeProfitMult)

	stopOrderID, err := em.broker.SubmitStopSell(ctx, req.Symbol, req.Quantity, stopPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to place protective stop: %w", err)
	}

	monitorCtx, cancel := context.WithCancel(em.ctx)
	position := &SupervisedPosition{
		ID:              uuid.NewString(),
		OrderID:         req.OrderID,
		Symbol:          req.Symbol,
		Quantity:        req.Quantity,
		EntryPrice:      req.EntryPrice,
		TakeProfitPrice: takeProfitPrice,
		StopPrice:       stopPrice,
		StopOrderID:     stopOrderID,
		State:           StateActive,
		UseMarketForTP:  req.UseMarketForTP,
		CreatedAt:       time.Now(),
		cancel:          cancel,
	}

	em.mu.Lock()
	em.positions[position.ID] = position
	em.mu.Unlock()

	em.persist(position)
	em.journal.Record(JournalEvent{
		Event:      "entry",
		PositionID: position.ID,
		Symbol:     position.Symbol,
		Quantity:   position.Quantity,
		Price:      position.EntryPrice,
	})

	em.logger.WithFields(logrus.Fields{
		"position_id":   position.ID,
		"symbol":        position.Symbol,
		"qty":           position.Quantity,
		"entry_price":   position.EntryPrice,
		"stop_price":    stopPrice,
		"tp_price":      takeProfitPrice,
		"stop_order_id": stopOrderID,
	}).Info("Exit supervision started")

	em.wg.Add(1)
	go em.monitor(monitorCtx, position)

	return &SupervisionHandle{
		PositionID:      position.ID,
		StopOrderID:     stopOrderID,
		TakeProfitPrice: takeProfitPrice,
		StopPrice:       stopPrice,
	}, nil
}

// monitor runs the polling loop for one position until a terminal state
func (em *ExitManager) monitor(ctx context.Context, position *SupervisedPosition) {
	defer em.wg.Done()

	log := em.logger.WithFields(logrus.Fields{
		"position_id": position.ID,
		"symbol":      position.Symbol,
	})

	for {
		if em.runCycle(ctx, position, log) {
			return
		}

		select {
		case <-ctx.Done():
			em.abort(position, log)
			return
		case <-time.After(em.pollInterval):
		}
	}
}

// runCycle executes one stop-then-take-profit pass and reports whether
// the position reached a terminal state. Broker and quote failures are
// absorbed: the next cycle is the retry.
func (em *ExitManager) runCycle(ctx context.Context, position *SupervisedPosition, log *logrus.Entry) bool {
	// The stop check always runs first so a stop that filled between
	// cycles beats a take-profit trigger observed in the same pass.
	status, err := em.broker.GetOrderStatus(ctx, position.StopOrderID)
	if err != nil {
		metrics.MonitorErrors.WithLabelValues("order_status").Inc()
		log.WithError(err).Debug("Stop order status check failed; retrying next cycle")
	} else if status.State == interfaces.OrderFilled {
		em.finish(position, StateStopFilled, status.FilledAvgPrice, "")
		log.Info("Protective stop filled; supervision complete")
		return true
	}

	price, err := em.quotes.GetReferencePrice(ctx, position.Symbol)
	if err != nil {
		metrics.MonitorErrors.WithLabelValues("quote").Inc()
		log.WithError(err).Debug("No reference price this cycle")
		return false
	}

	if price < position.TakeProfitPrice {
		return false
	}

	var exitOrderID string
	if position.UseMarketForTP {
		exitOrderID, err = em.broker.SubmitMarketSell(ctx, position.Symbol, position.Quantity)
	} else {
		exitOrderID, err = em.broker.SubmitLimitSell(ctx, position.Symbol, position.Quantity, position.TakeProfitPrice)
	}
	if err != nil {
		metrics.MonitorErrors.WithLabelValues("tp_submit").Inc()
		log.WithError(err).WithField("price", price).Warn("Take-profit submission failed; retrying next cycle")
		return false
	}

	// The exit is in; cancellation failures must not block the
	// transition, and an already-gone stop is a normal outcome.
	result, err := em.broker.CancelOrder(ctx, position.StopOrderID)
	switch {
	case err != nil:
		metrics.MonitorErrors.WithLabelValues("stop_cancel").Inc()
		log.WithError(err).Warn("Failed to cancel protective stop after take-profit")
	case result == interfaces.CancelAlreadyGone:
		log.Debug("Protective stop already gone at cancellation")
	}

	em.finish(position, StateTakeProfitFilled, &price, exitOrderID)
	log.WithFields(logrus.Fields{
		"exit_order_id": exitOrderID,
		"price":         price,
	}).Info("Take-profit exit submitted; supervision complete")
	return true
}

// abort marks a position aborted on external cancellation. The stop
// order is deliberately left resting so the position stays protected.
func (em *ExitManager) abort(position *SupervisedPosition, log *logrus.Entry) {
	em.finish(position, StateAborted, nil, "")
	log.Info("Supervision aborted; protective stop left resting")
}

// finish moves a position into a terminal state exactly once
func (em *ExitManager) finish(position *SupervisedPosition, state PositionState, exitPrice *float64, exitOrderID string) {
	now := time.Now()

	em.mu.Lock()
	position.State = state
	position.ClosedAt = &now
	if exitPrice != nil {
		price := *exitPrice
		position.ExitPrice = &price
	}
	if exitOrderID != "" {
		position.ExitOrderID = exitOrderID
	}
	snapshot := *position
	em.mu.Unlock()

	em.persist(&snapshot)
	metrics.ExitsTotal.WithLabelValues(exitKind(state)).Inc()
	em.journal.Record(JournalEvent{
		Event:      exitKind(state),
		PositionID: snapshot.ID,
		Symbol:     snapshot.Symbol,
		Quantity:   snapshot.Quantity,
		Price:      floatOrZero(snapshot.ExitPrice),
	})
}

func exitKind(state PositionState) string {
	switch state {
	case StateTakeProfitFilled:
		return "take_profit"
	case StateStopFilled:
		return "stop_loss"
	default:
		return "aborted"
	}
}

// persist writes the current state machine snapshot to the database
func (em *ExitManager) persist(position *SupervisedPosition) {
	record := &models.DBSupervisedPosition{
		PositionID:      position.ID,
		OrderID:         position.OrderID,
		Symbol:          position.Symbol,
		Quantity:        position.Quantity,
		EntryPrice:      position.EntryPrice,
		TakeProfitPrice: position.TakeProfitPrice,
		StopPrice:       position.StopPrice,
		StopOrderID:     position.StopOrderID,
		ExitOrderID:     position.ExitOrderID,
		State:           string(position.State),
		UseMarketForTP:  position.UseMarketForTP,
		ExitPrice:       position.ExitPrice,
		ClosedAt:        position.ClosedAt,
	}

	if err := em.storage.SaveSupervisedPosition(record); err != nil {
		em.logger.WithError(err).WithField("position_id", position.ID).Error("Failed to persist supervised position")
	}
}

// GetPosition returns a copy of a supervised position
func (em *ExitManager) GetPosition(positionID string) (SupervisedPosition, error) {
	em.mu.RLock()
	defer em.mu.RUnlock()

	position, exists := em.positions[positionID]
	if !exists {
		return SupervisedPosition{}, fmt.Errorf("position not found: %s", positionID)
	}
	return *position, nil
}

// ListPositions returns copies of supervised positions, optionally
// filtered by state
func (em *ExitManager) ListPositions(state PositionState) []SupervisedPosition {
	em.mu.RLock()
	defer em.mu.RUnlock()

	positions := make([]SupervisedPosition, 0, len(em.positions))
	for _, position := range em.positions {
		if state == "" || position.State == state {
			positions = append(positions, *position)
		}
	}
	return positions
}

// Abort cancels supervision of one position. The monitoring goroutine
// transitions it to Aborted and leaves the stop order resting.
func (em *ExitManager) Abort(positionID string) error {
	em.mu.RLock()
	position, exists := em.positions[positionID]
	var state PositionState
	if exists {
		state = position.State
	}
	em.mu.RUnlock()

	if !exists {
		return fmt.Errorf("position not found: %s", positionID)
	}
	if state != StateActive {
		return fmt.Errorf("position %s already terminal: %s", positionID, state)
	}

	position.cancel()
	return nil
}

// Shutdown stops all monitoring goroutines and waits for them to
// finish. Every still-active position is aborted with its stop order
// left resting.
func (em *ExitManager) Shutdown() {
	em.cancel()
	em.wg.Wait()
}
