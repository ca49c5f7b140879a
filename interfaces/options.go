package interfaces

import "context"

// OptionContract identifies a tradable option contract.
type OptionContract struct {
	Symbol           string  `json:"symbol"` // OCC symbol, e.g. SPY250903C00645000
	UnderlyingSymbol string  `json:"underlying_symbol"`
	ContractType     string  `json:"contract_type"` // "call" or "put"
	StrikePrice      float64 `json:"strike_price"`
	ExpirationDate   string  `json:"expiration_date"` // YYYY-MM-DD
}

// ContractResolver maps an underlying ticker and a signal direction
// (CALL or PUT) to an at-the-money contract at the target expiry.
type ContractResolver interface {
	ResolveATM(ctx context.Context, ticker, direction string) (*OptionContract, error)
}
