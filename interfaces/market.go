package interfaces

import (
	"context"
	"encoding/json"
	"math"
	"time"
)

// PriceBar is one daily OHLC bar
type PriceBar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// PriceHistoryProvider defines the interface for daily price history
type PriceHistoryProvider interface {
	// FetchPriceHistory returns chronologically ordered daily bars covering the
	// trailing periodDays calendar days. May be empty.
	FetchPriceHistory(ctx context.Context, ticker string, periodDays int) ([]PriceBar, error)
}

// Closes extracts the closing prices of bars in order
func Closes(bars []PriceBar) []float64 {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	return closes
}

// RSISeries is index-aligned with the bars it was computed from.
// Undefined entries hold NaN.
type RSISeries []float64

// Latest returns the last entry and whether it is defined
func (s RSISeries) Latest() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	last := s[len(s)-1]
	if math.IsNaN(last) {
		return 0, false
	}
	return last, true
}

// Defined counts the defined entries
func (s RSISeries) Defined() int {
	n := 0
	for _, v := range s {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// MarshalJSON writes undefined entries as null
func (s RSISeries) MarshalJSON() ([]byte, error) {
	out := make([]*float64, len(s))
	for i := range s {
		if !math.IsNaN(s[i]) {
			v := s[i]
			out[i] = &v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads null entries back as NaN
func (s *RSISeries) UnmarshalJSON(data []byte) error {
	var in []*float64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	series := make(RSISeries, len(in))
	for i, v := range in {
		if v == nil {
			series[i] = math.NaN()
		} else {
			series[i] = *v
		}
	}
	*s = series
	return nil
}
