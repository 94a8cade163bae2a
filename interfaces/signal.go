package interfaces

import (
	"context"
	"time"
)

// Signal is the discrete outcome of a signal evaluation
type Signal string

const (
	SignalBuyCall  Signal = "BUY_CALL"
	SignalNoSignal Signal = "NO_SIGNAL"
)

// SnapshotStatus tells the presentation layer whether a signal could be computed
type SnapshotStatus string

const (
	StatusOK               SnapshotStatus = "OK"
	StatusInsufficientData SnapshotStatus = "INSUFFICIENT_DATA"
)

// Thresholds are the process-wide signal thresholds
type Thresholds struct {
	RSIThreshold float64 `json:"rsi_threshold"`
	IVThreshold  float64 `json:"iv_threshold"` // fraction, 0.4 = 40%
}

// DashboardSnapshot is everything the presentation layer renders for one ticker
type DashboardSnapshot struct {
	Symbol      string         `json:"symbol"`
	LatestRSI   *float64       `json:"latest_rsi"`
	AverageIV   float64        `json:"average_iv"`
	Signal      *Signal        `json:"signal"`
	Status      SnapshotStatus `json:"status"`
	RSISeries   RSISeries      `json:"rsi_series"`
	Bars        []PriceBar     `json:"bars"`
	OptionChain *OptionChain   `json:"option_chain"`
	Expiration  *time.Time     `json:"expiration"`
	Thresholds  Thresholds     `json:"thresholds"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// SignalEvaluator defines the orchestration surface used by controllers and the CLI
type SignalEvaluator interface {
	Evaluate(ctx context.Context, ticker string) (*DashboardSnapshot, error)
	Tickers() []string
}
