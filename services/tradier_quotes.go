package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"signal-trader/interfaces"

	"github.com/sirupsen/logrus"
)

// TradierQuotes fetches OCC option quotes from Tradier and reduces them
// to a single reference price: bid/ask midpoint when both sides are
// positive, else last trade price when positive.
type TradierQuotes struct {
	token   string
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// NewTradierQuotes creates a quote client against the Tradier sandbox
// or production API depending on the sandbox flag
func NewTradierQuotes(token string, sandbox bool) *TradierQuotes {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	baseURL := "https://api.tradier.com"
	if sandbox {
		baseURL = "https://sandbox.tradier.com"
	}

	return &TradierQuotes{
		token:   token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 20 * time.Second},
		logger:  logger,
	}
}

type tradierQuote struct {
	Symbol string   `json:"symbol"`
	Bid    *float64 `json:"bid"`
	Ask    *float64 `json:"ask"`
	Last   *float64 `json:"last"`
}

type tradierQuotesResponse struct {
	Quotes struct {
		Quote json.RawMessage `json:"quote"`
	} `json:"quotes"`
}

// GetReferencePrice returns the quote value used to evaluate exit
// triggers. Every failure mode collapses into ErrQuoteUnavailable; the
// caller treats it as "no signal this cycle".
func (q *TradierQuotes) GetReferencePrice(ctx context.Context, symbol string) (float64, error) {
	reqURL := fmt.Sprintf("%s/v1/markets/quotes?symbols=%s", q.baseURL, url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", interfaces.ErrQuoteUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+q.token)
	req.Header.Set("Accept", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", interfaces.ErrQuoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: quote API status %d", interfaces.ErrQuoteUnavailable, resp.StatusCode)
	}

	var payload tradierQuotesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("%w: %v", interfaces.ErrQuoteUnavailable, err)
	}

	quote, err := firstQuote(payload.Quotes.Quote)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", interfaces.ErrQuoteUnavailable, err)
	}

	bid := floatOrZero(quote.Bid)
	ask := floatOrZero(quote.Ask)
	last := floatOrZero(quote.Last)

	if bid > 0 && ask > 0 {
		return roundCents((bid + ask) / 2), nil
	}
	if last > 0 {
		return roundCents(last), nil
	}

	return 0, fmt.Errorf("%w: no bid/ask or last for %s", interfaces.ErrQuoteUnavailable, symbol)
}

// Tradier returns a bare object for one symbol and an array for many
func firstQuote(raw json.RawMessage) (*tradierQuote, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty quote payload")
	}

	var single tradierQuote
	if err := json.Unmarshal(raw, &single); err == nil && single.Symbol != "" {
		return &single, nil
	}

	var many []tradierQuote
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return &many[0], nil
	}

	return nil, fmt.Errorf("unrecognized quote payload")
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
