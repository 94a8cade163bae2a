package interfaces

import (
	"context"
	"time"
)

// OptionContract represents a single option contract snapshot at one expiration
type OptionContract struct {
	Symbol            string    `json:"symbol"`            // OCC symbol (e.g., "AAPL231215C00150000")
	UnderlyingSymbol  string    `json:"underlying_symbol"` // Underlying stock symbol
	ContractType      string    `json:"contract_type"`     // "call" or "put"
	StrikePrice       float64   `json:"strike"`
	ExpirationDate    time.Time `json:"expiration_date"`
	LastPrice         float64   `json:"last_price"`
	Bid               float64   `json:"bid"`
	Ask               float64   `json:"ask"`
	ImpliedVolatility float64   `json:"implied_volatility"` // fraction, 0.4 = 40%
	Volume            int64     `json:"volume"`
	OpenInterest      int64     `json:"open_interest"`
}

// OptionChain represents the call contracts for one underlying and expiration
type OptionChain struct {
	UnderlyingSymbol string            `json:"underlying_symbol"`
	ExpirationDate   time.Time         `json:"expiration_date"`
	Calls            []*OptionContract `json:"calls"`
}

// Empty reports whether the chain has no contracts
func (c *OptionChain) Empty() bool {
	return c == nil || len(c.Calls) == 0
}

// OptionChainProvider defines interface for options market data
type OptionChainProvider interface {
	// ListExpirations returns the available expirations, nearest first. May be empty.
	ListExpirations(ctx context.Context, ticker string) ([]time.Time, error)
	// FetchCalls returns the call chain for one expiration. May be empty.
	FetchCalls(ctx context.Context, ticker string, expiration time.Time) (*OptionChain, error)
}
