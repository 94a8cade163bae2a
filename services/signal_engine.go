package services

import "options-signal/interfaces"

// EvaluateSignal returns BUY_CALL when both the latest RSI and the average
// implied volatility sit strictly below their thresholds.
//
// Callers must not invoke it without a defined RSI.
func EvaluateSignal(latestRSI, avgIV float64, thresholds interfaces.Thresholds) interfaces.Signal {
	if latestRSI < thresholds.RSIThreshold && avgIV < thresholds.IVThreshold {
		return interfaces.SignalBuyCall
	}
	return interfaces.SignalNoSignal
}
