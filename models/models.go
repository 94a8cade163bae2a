package models

import (
	"time"

	"gorm.io/gorm"
)

// Fetch kinds
const (
	FetchKindBars        = "bars"
	FetchKindExpirations = "expirations"
	FetchKindCalls       = "calls"
)

// DBFetch records when a provider result was cached. Rows for the same key
// are replaced together with their payload rows.
type DBFetch struct {
	gorm.Model
	Kind      string    `gorm:"uniqueIndex:idx_fetch_key"`
	Symbol    string    `gorm:"uniqueIndex:idx_fetch_key"`
	Param     string    `gorm:"uniqueIndex:idx_fetch_key"` // period days or expiration date
	FetchedAt time.Time `gorm:"index"`
}

// DBBar represents a cached daily bar
type DBBar struct {
	gorm.Model
	Symbol     string    `gorm:"index:idx_bar_symbol_period"`
	PeriodDays int       `gorm:"index:idx_bar_symbol_period"`
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
}

// DBExpiration represents a cached expiration listing entry
type DBExpiration struct {
	gorm.Model
	Symbol         string `gorm:"index"`
	Position       int
	ExpirationDate time.Time
}

// DBOptionContract represents a cached call contract
type DBOptionContract struct {
	gorm.Model
	ContractSymbol    string
	UnderlyingSymbol  string    `gorm:"index:idx_contract_chain"`
	ExpirationDate    time.Time `gorm:"index:idx_contract_chain"`
	ContractType      string
	StrikePrice       float64
	LastPrice         float64
	Bid               float64
	Ask               float64
	ImpliedVolatility float64
	Volume            int64
	OpenInterest      int64
}

// TableName overrides for cleaner table names
func (DBFetch) TableName() string {
	return "fetches"
}

func (DBBar) TableName() string {
	return "bars"
}

func (DBExpiration) TableName() string {
	return "expirations"
}

func (DBOptionContract) TableName() string {
	return "option_contracts"
}
