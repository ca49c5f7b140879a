package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"signal-trader/services"

	"github.com/gin-gonic/gin"
)

type mockSignalProcessor struct {
	lastSignal services.SignalRequest
	lastRaw    []byte
	result     *services.SignalResult
	err        error
}

func (m *mockSignalProcessor) ProcessSignal(ctx context.Context, sig services.SignalRequest, ipAddress, userAgent string, rawPayload []byte) (*services.SignalResult, error) {
	m.lastSignal = sig
	m.lastRaw = rawPayload
	return m.result, m.err
}

func postWebhook(t *testing.T, processor *mockSignalProcessor, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/webhook", NewWebhookController(processor).HandleWebhook)

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestParseSignalPayloadVariants(t *testing.T) {
	cases := []struct {
		name string
		body string
		want services.SignalRequest
	}{
		{
			"canonical fields",
			`{"signal":"CALL","ticker":"SPY","qty":2}`,
			services.SignalRequest{Signal: "CALL", Ticker: "SPY", Quantity: 2},
		},
		{
			"action and symbol aliases",
			`{"action":"put","symbol":"qqq","contracts":3}`,
			services.SignalRequest{Signal: "PUT", Ticker: "QQQ", Quantity: 3},
		},
		{
			"quantity as quoted string",
			`{"signal":"CALL","ticker":"SPY","qty":"5"}`,
			services.SignalRequest{Signal: "CALL", Ticker: "SPY", Quantity: 5},
		},
		{
			"quantity as float",
			`{"signal":"CALL","ticker":"SPY","quantity":2.0}`,
			services.SignalRequest{Signal: "CALL", Ticker: "SPY", Quantity: 2},
		},
		{
			"defaults applied",
			`{"signal":"call"}`,
			services.SignalRequest{Signal: "CALL", Ticker: "SPY", Quantity: 1},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseSignalPayload([]byte(tc.body))
			if err != nil {
				t.Fatalf("parseSignalPayload failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseSignalPayloadErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `not json at all`},
		{"missing signal", `{"ticker":"SPY","qty":1}`},
		{"unparseable quantity", `{"signal":"CALL","qty":"lots"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseSignalPayload([]byte(tc.body)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestHandleWebhookSuccess(t *testing.T) {
	processor := &mockSignalProcessor{
		result: &services.SignalResult{Success: true, Message: "CALL order placed successfully: SPY260903C00640000"},
	}
	body := `{"signal":"CALL","ticker":"SPY","qty":1}`
	w := postWebhook(t, processor, body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var result services.SignalResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !result.Success {
		t.Error("response not marked successful")
	}
	if processor.lastSignal.Signal != "CALL" || processor.lastSignal.Quantity != 1 {
		t.Errorf("processor received %+v", processor.lastSignal)
	}
	if string(processor.lastRaw) != body {
		t.Errorf("processor received raw payload %q", processor.lastRaw)
	}
}

func TestHandleWebhookMalformedPayload(t *testing.T) {
	processor := &mockSignalProcessor{}
	w := postWebhook(t, processor, `{"ticker":"SPY"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if processor.lastRaw != nil {
		t.Error("malformed payload reached the signal processor")
	}
}

func TestHandleWebhookProcessingFailure(t *testing.T) {
	processor := &mockSignalProcessor{
		result: &services.SignalResult{Success: false, Error: "failed to resolve contract"},
		err:    errors.New("failed to resolve contract"),
	}
	w := postWebhook(t, processor, `{"signal":"CALL"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var result services.SignalResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if result.Success || result.Error == "" {
		t.Errorf("failure response = %+v", result)
	}
}
