package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"signal-trader/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SignalProcessor processes a normalized trade signal
type SignalProcessor interface {
	ProcessSignal(ctx context.Context, sig services.SignalRequest, ipAddress, userAgent string, rawPayload []byte) (*services.SignalResult, error)
}

// WebhookController receives inbound trading signals
type WebhookController struct {
	trading SignalProcessor
	logger  *logrus.Logger
}

// NewWebhookController creates a webhook controller
func NewWebhookController(trading SignalProcessor) *WebhookController {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &WebhookController{
		trading: trading,
		logger:  logger,
	}
}

// qtyField accepts a quantity sent as a JSON number or a quoted string
type qtyField struct {
	set   bool
	value int
}

func (q *qtyField) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid quantity %q", s)
		}
		n = int(f)
	}
	q.set = true
	q.value = n
	return nil
}

// webhookPayload accepts the field variants alerting platforms send
type webhookPayload struct {
	Signal    string   `json:"signal"`
	Action    string   `json:"action"`
	Ticker    string   `json:"ticker"`
	Symbol    string   `json:"symbol"`
	Qty       qtyField `json:"qty"`
	Quantity  qtyField `json:"quantity"`
	Contracts qtyField `json:"contracts"`
}

// HandleWebhook handles POST /webhook
func (wc *WebhookController) HandleWebhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "failed to read request body"})
		return
	}

	sig, err := parseSignalPayload(raw)
	if err != nil {
		wc.logger.WithError(err).Warn("Rejected malformed webhook payload")
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	result, err := wc.trading.ProcessSignal(c.Request.Context(), sig, c.ClientIP(), c.Request.UserAgent(), raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, result)
		return
	}

	c.JSON(http.StatusOK, result)
}

// parseSignalPayload normalizes heterogeneous webhook formats into the
// canonical {signal, ticker, qty} triple
func parseSignalPayload(raw []byte) (services.SignalRequest, error) {
	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return services.SignalRequest{}, fmt.Errorf("invalid JSON payload: %w", err)
	}

	signal := strings.ToUpper(strings.TrimSpace(firstOf(payload.Signal, payload.Action)))
	if signal == "" {
		return services.SignalRequest{}, fmt.Errorf("missing signal")
	}

	ticker := strings.ToUpper(strings.TrimSpace(firstOf(payload.Ticker, payload.Symbol)))
	if ticker == "" {
		ticker = "SPY"
	}

	qty := 1
	for _, field := range []qtyField{payload.Qty, payload.Quantity, payload.Contracts} {
		if field.set {
			qty = field.value
			break
		}
	}

	return services.SignalRequest{
		Signal:   signal,
		Ticker:   ticker,
		Quantity: qty,
	}, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
