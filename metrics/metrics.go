// Package metrics holds the Prometheus collectors for the signal service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the signal service.
type Metrics struct {
	Registry *prometheus.Registry

	EvaluationsTotal *prometheus.CounterVec   // labels: signal (BUY_CALL, NO_SIGNAL, INSUFFICIENT_DATA)
	FetchErrorsTotal *prometheus.CounterVec   // labels: stage (price_history, expirations, calls)
	FetchDuration    *prometheus.HistogramVec // labels: stage
	CacheHitsTotal   *prometheus.CounterVec   // labels: kind (bars, expirations, calls)
	CacheMissesTotal *prometheus.CounterVec   // labels: kind

	LatestRSI       *prometheus.GaugeVec // labels: symbol (configured tickers only)
	LatestAverageIV *prometheus.GaugeVec // labels: symbol (configured tickers only)
}

// NewMetrics creates the collectors and registers them on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "options_signal_evaluations_total",
			Help: "Signal evaluations by outcome",
		}, []string{"signal"}),
		FetchErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "options_signal_fetch_errors_total",
			Help: "Market data fetch failures by pipeline stage",
		}, []string{"stage"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "options_signal_fetch_duration_seconds",
			Help:    "Market data fetch latency by pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),
		CacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "options_signal_cache_hits_total",
			Help: "Market data cache hits",
		}, []string{"kind"}),
		CacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "options_signal_cache_misses_total",
			Help: "Market data cache misses",
		}, []string{"kind"}),
		LatestRSI: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "options_signal_latest_rsi",
			Help: "Most recent defined RSI per configured ticker",
		}, []string{"symbol"}),
		LatestAverageIV: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "options_signal_latest_average_iv",
			Help: "Most recent average call implied volatility per configured ticker",
		}, []string{"symbol"}),
	}

	m.Registry.MustRegister(
		m.EvaluationsTotal,
		m.FetchErrorsTotal,
		m.FetchDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.LatestRSI,
		m.LatestAverageIV,
	)

	return m
}
