package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"options-signal/interfaces"
	"options-signal/metrics"
)

var ErrInvalidTicker = errors.New("ticker symbol required")

// Pipeline stages, used as metric labels
const (
	stagePriceHistory = "price_history"
	stageExpirations  = "expirations"
	stageCalls        = "calls"
)

// SignalServiceConfig configures a SignalService
type SignalServiceConfig struct {
	RSIWindow       int
	PricePeriodDays int
	Thresholds      interfaces.Thresholds
	DefaultTickers  []string
}

// SignalService runs the signal pipeline for one ticker at a time
type SignalService struct {
	prices  interfaces.PriceHistoryProvider
	options interfaces.OptionChainProvider
	cfg     SignalServiceConfig
	metrics *metrics.Metrics
	logger  *logrus.Logger
	now     func() time.Time

	// symbols that get per-symbol gauges
	tracked map[string]struct{}
}

// NewSignalService creates a new signal service
func NewSignalService(
	prices interfaces.PriceHistoryProvider,
	options interfaces.OptionChainProvider,
	cfg SignalServiceConfig,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *SignalService {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	if m == nil {
		m = metrics.NewMetrics()
	}

	tracked := make(map[string]struct{}, len(cfg.DefaultTickers))
	for _, ticker := range cfg.DefaultTickers {
		tracked[strings.ToUpper(strings.TrimSpace(ticker))] = struct{}{}
	}

	return &SignalService{
		prices:  prices,
		options: options,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		tracked: tracked,
	}
}

// Tickers returns the selectable tickers in configured order
func (s *SignalService) Tickers() []string {
	out := make([]string, len(s.cfg.DefaultTickers))
	copy(out, s.cfg.DefaultTickers)
	return out
}

// Evaluate fetches market data for ticker and computes its dashboard snapshot.
//
// Missing data never fails the evaluation: an empty or short price history
// yields INSUFFICIENT_DATA with no signal, and a missing expiration or empty
// chain averages to zero implied volatility. Only transport errors are returned.
func (s *SignalService) Evaluate(ctx context.Context, ticker string) (*interfaces.DashboardSnapshot, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if symbol == "" {
		return nil, ErrInvalidTicker
	}

	log := s.logger.WithField("symbol", symbol)

	snapshot := &interfaces.DashboardSnapshot{
		Symbol:      symbol,
		Thresholds:  s.cfg.Thresholds,
		GeneratedAt: s.now(),
	}

	// Price history and RSI
	bars, err := s.fetchPriceHistory(ctx, symbol)
	if err != nil {
		return nil, err
	}
	snapshot.Bars = bars
	snapshot.RSISeries = ComputeRSI(interfaces.Closes(bars), s.cfg.RSIWindow)

	// Nearest expiration call chain
	chain, expiration, err := s.fetchNearestCalls(ctx, symbol)
	if err != nil {
		return nil, err
	}
	snapshot.OptionChain = chain
	snapshot.Expiration = expiration
	snapshot.AverageIV = AverageImpliedVolatility(chain)

	_, tracked := s.tracked[symbol]
	if tracked {
		s.metrics.LatestAverageIV.WithLabelValues(symbol).Set(snapshot.AverageIV)
	}

	latestRSI, ok := snapshot.RSISeries.Latest()
	if !ok {
		snapshot.Status = interfaces.StatusInsufficientData
		s.metrics.EvaluationsTotal.WithLabelValues(string(interfaces.StatusInsufficientData)).Inc()

		log.WithFields(logrus.Fields{
			"bars":   len(bars),
			"window": s.cfg.RSIWindow,
		}).Warn("Not enough price history for RSI, skipping signal")
		return snapshot, nil
	}

	signal := EvaluateSignal(latestRSI, snapshot.AverageIV, s.cfg.Thresholds)
	snapshot.Status = interfaces.StatusOK
	snapshot.LatestRSI = &latestRSI
	snapshot.Signal = &signal

	if tracked {
		s.metrics.LatestRSI.WithLabelValues(symbol).Set(latestRSI)
	}
	s.metrics.EvaluationsTotal.WithLabelValues(string(signal)).Inc()

	log.WithFields(logrus.Fields{
		"rsi":        latestRSI,
		"avg_iv":     snapshot.AverageIV,
		"calls":      len(chain.Calls),
		"expiration": formatExpiration(expiration),
		"signal":     signal,
	}).Info("Signal evaluated")

	return snapshot, nil
}

func (s *SignalService) fetchPriceHistory(ctx context.Context, symbol string) ([]interfaces.PriceBar, error) {
	start := time.Now()
	bars, err := s.prices.FetchPriceHistory(ctx, symbol, s.cfg.PricePeriodDays)
	s.metrics.FetchDuration.WithLabelValues(stagePriceHistory).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.FetchErrorsTotal.WithLabelValues(stagePriceHistory).Inc()
		return nil, fmt.Errorf("failed to fetch price history for %s: %w", symbol, err)
	}
	if bars == nil {
		bars = []interfaces.PriceBar{}
	}
	return bars, nil
}

func (s *SignalService) fetchNearestCalls(ctx context.Context, symbol string) (*interfaces.OptionChain, *time.Time, error) {
	empty := &interfaces.OptionChain{
		UnderlyingSymbol: symbol,
		Calls:            []*interfaces.OptionContract{},
	}

	start := time.Now()
	expirations, err := s.options.ListExpirations(ctx, symbol)
	s.metrics.FetchDuration.WithLabelValues(stageExpirations).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.FetchErrorsTotal.WithLabelValues(stageExpirations).Inc()
		return nil, nil, fmt.Errorf("failed to list expirations for %s: %w", symbol, err)
	}

	expiration, ok := NearestExpiration(expirations)
	if !ok {
		s.logger.WithField("symbol", symbol).Debug("No option expirations listed")
		return empty, nil, nil
	}

	start = time.Now()
	chain, err := s.options.FetchCalls(ctx, symbol, expiration)
	s.metrics.FetchDuration.WithLabelValues(stageCalls).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.FetchErrorsTotal.WithLabelValues(stageCalls).Inc()
		return nil, nil, fmt.Errorf("failed to fetch calls for %s %s: %w", symbol, expiration.Format("2006-01-02"), err)
	}

	if chain == nil {
		empty.ExpirationDate = expiration
		chain = empty
	}
	if chain.Calls == nil {
		chain.Calls = []*interfaces.OptionContract{}
	}
	return chain, &expiration, nil
}

func formatExpiration(expiration *time.Time) string {
	if expiration == nil {
		return "none"
	}
	return expiration.Format("2006-01-02")
}
