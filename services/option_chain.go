package services

import (
	"errors"
	"time"

	"github.com/montanaflynn/stats"

	"options-signal/interfaces"
)

// Bounds of the options table implied volatility filter
const (
	MinIVFilter     = 0.1
	MaxIVFilter     = 1.0
	DefaultIVFilter = 0.6
)

var ErrInvalidMaxIV = errors.New("max implied volatility filter out of range")

// AverageImpliedVolatility returns the arithmetic mean implied volatility of
// the chain's calls. An empty or nil chain averages to exactly 0.
func AverageImpliedVolatility(chain *interfaces.OptionChain) float64 {
	if chain.Empty() {
		return 0.0
	}

	ivs := make(stats.Float64Data, len(chain.Calls))
	for i, contract := range chain.Calls {
		ivs[i] = contract.ImpliedVolatility
	}

	mean, err := stats.Mean(ivs)
	if err != nil {
		return 0.0
	}
	return mean
}

// NearestExpiration picks the first expiration the provider listed
func NearestExpiration(expirations []time.Time) (time.Time, bool) {
	if len(expirations) == 0 {
		return time.Time{}, false
	}
	return expirations[0], true
}

// ValidateMaxIV checks an options table filter value
func ValidateMaxIV(maxIV float64) error {
	if maxIV < MinIVFilter || maxIV > MaxIVFilter {
		return ErrInvalidMaxIV
	}
	return nil
}

// FilterCallsByMaxIV keeps calls whose implied volatility is strictly below maxIV.
// This is a display filter only; signal evaluation always uses the full chain.
func FilterCallsByMaxIV(chain *interfaces.OptionChain, maxIV float64) []*interfaces.OptionContract {
	filtered := make([]*interfaces.OptionContract, 0)
	if chain.Empty() {
		return filtered
	}

	for _, contract := range chain.Calls {
		if contract.ImpliedVolatility < maxIV {
			filtered = append(filtered, contract)
		}
	}
	return filtered
}
