package services

import (
	"math"

	"options-signal/interfaces"
)

// ComputeRSI calculates the Relative Strength Index over closes using Wilder's
// smoothing (recursive exponential average with alpha = 1/window).
//
// The result has one entry per close. The first window-1 entries are NaN, and
// every entry is NaN when there are fewer than window closes or window < 1.
func ComputeRSI(closes []float64, window int) interfaces.RSISeries {
	series := make(interfaces.RSISeries, len(closes))
	for i := range series {
		series[i] = math.NaN()
	}
	if window < 1 || len(closes) < window {
		return series
	}

	alpha := 1.0 / float64(window)
	avgGain, avgLoss := 0.0, 0.0

	for i := range closes {
		// The first close has no delta; it contributes a zero gain and loss
		gain, loss := 0.0, 0.0
		if i > 0 {
			delta := closes[i] - closes[i-1]
			if delta > 0 {
				gain = delta
			} else {
				loss = -delta
			}
		}

		avgGain = (1-alpha)*avgGain + alpha*gain
		avgLoss = (1-alpha)*avgLoss + alpha*loss

		if i < window-1 {
			continue
		}
		series[i] = rsiFromAverages(avgGain, avgLoss)
	}

	return series
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	if avgGain == 0 {
		return 0.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
