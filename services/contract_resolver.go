package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"signal-trader/interfaces"

	"github.com/sirupsen/logrus"
)

// AlpacaContractResolver maps a ticker and a CALL/PUT direction to an
// at-the-money contract: latest underlying trade price, nearest-dollar
// strike, two business days to expiry. When no contract exists at the
// exact strike it falls back to the nearest strike within a dollar.
type AlpacaContractResolver struct {
	creds      *CredentialSource
	tradingURL string
	dataURL    string
	client     *http.Client
	logger     *logrus.Logger
}

// NewAlpacaContractResolver creates a contract resolver
func NewAlpacaContractResolver(creds *CredentialSource, tradingURL, dataURL string) *AlpacaContractResolver {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &AlpacaContractResolver{
		creds:      creds,
		tradingURL: tradingURL,
		dataURL:    dataURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type alpacaLatestTradesResponse struct {
	Trades map[string]struct {
		Price float64 `json:"p"`
	} `json:"trades"`
}

type alpacaContractsResponse struct {
	OptionContracts []struct {
		Symbol           string  `json:"symbol"`
		UnderlyingSymbol string  `json:"underlying_symbol"`
		Type             string  `json:"type"`
		StrikePrice      float64 `json:"strike_price,string"`
		ExpirationDate   string  `json:"expiration_date"`
	} `json:"option_contracts"`
}

// ResolveATM resolves the tradable ATM contract for a signal
func (r *AlpacaContractResolver) ResolveATM(ctx context.Context, ticker, direction string) (*interfaces.OptionContract, error) {
	price, err := r.latestTradePrice(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying price: %w", err)
	}

	strike := math.Round(price)
	expiry := targetExpiry(time.Now(), 2)
	optionType := "call"
	if direction == "PUT" {
		optionType = "put"
	}

	r.logger.WithFields(logrus.Fields{
		"ticker": ticker,
		"type":   optionType,
		"strike": strike,
		"expiry": expiry,
	}).Info("Resolving ATM contract")

	contract, err := r.lookupContract(ctx, ticker, optionType, expiry, strike, strike)
	if err != nil {
		return nil, err
	}
	if contract != nil {
		return contract, nil
	}

	// No listing at the exact dollar strike; widen by a dollar each side
	// and take the nearest
	contract, err = r.lookupContract(ctx, ticker, optionType, expiry, strike-1, strike+1)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, fmt.Errorf("%w: %s %s %s near %.0f", interfaces.ErrNoContract, ticker, optionType, expiry, strike)
	}

	return contract, nil
}

func (r *AlpacaContractResolver) latestTradePrice(ctx context.Context, ticker string) (float64, error) {
	reqURL := fmt.Sprintf("%s/v2/stocks/trades/latest?symbols=%s", r.dataURL, url.QueryEscape(ticker))

	var payload alpacaLatestTradesResponse
	if err := r.getJSON(ctx, reqURL, &payload); err != nil {
		return 0, err
	}

	trade, ok := payload.Trades[ticker]
	if !ok || trade.Price <= 0 {
		return 0, fmt.Errorf("no trade price data available for %s", ticker)
	}

	return trade.Price, nil
}

func (r *AlpacaContractResolver) lookupContract(ctx context.Context, ticker, optionType, expiry string, strikeLow, strikeHigh float64) (*interfaces.OptionContract, error) {
	params := url.Values{}
	params.Set("underlying_symbols", ticker)
	params.Set("expiration_date", expiry)
	params.Set("type", optionType)
	params.Set("strike_price_gte", fmt.Sprintf("%.2f", strikeLow))
	params.Set("strike_price_lte", fmt.Sprintf("%.2f", strikeHigh))

	reqURL := fmt.Sprintf("%s/v1beta1/options/contracts?%s", r.tradingURL, params.Encode())

	var payload alpacaContractsResponse
	if err := r.getJSON(ctx, reqURL, &payload); err != nil {
		return nil, err
	}

	if len(payload.OptionContracts) == 0 {
		return nil, nil
	}

	target := (strikeLow + strikeHigh) / 2
	best := payload.OptionContracts[0]
	for _, c := range payload.OptionContracts[1:] {
		if math.Abs(c.StrikePrice-target) < math.Abs(best.StrikePrice-target) {
			best = c
		}
	}

	return &interfaces.OptionContract{
		Symbol:           best.Symbol,
		UnderlyingSymbol: best.UnderlyingSymbol,
		ContractType:     best.Type,
		StrikePrice:      best.StrikePrice,
		ExpirationDate:   best.ExpirationDate,
	}, nil
}

func (r *AlpacaContractResolver) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return err
	}

	key, secret := r.creds.AlpacaKeys()
	req.Header.Set("APCA-API-KEY-ID", key)
	req.Header.Set("APCA-API-SECRET-KEY", secret)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBrokerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: API error %d: %s", interfaces.ErrBrokerRejected, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// targetExpiry returns the date the given number of business days out,
// skipping weekends
func targetExpiry(from time.Time, businessDays int) string {
	date := from
	for remaining := businessDays; remaining > 0; {
		date = date.AddDate(0, 0, 1)
		if date.Weekday() != time.Saturday && date.Weekday() != time.Sunday {
			remaining--
		}
	}
	return date.Format("2006-01-02")
}
