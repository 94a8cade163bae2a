package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"options-signal/config"
	"options-signal/database"
	"options-signal/interfaces"
	"options-signal/metrics"
	"options-signal/services"
)

// app holds the wired services shared by the CLI commands
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	metrics *metrics.Metrics
	cache   *database.MarketDataCache
	signals *services.SignalService
	done    chan struct{}
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  cfg.NewLogger(),
		metrics: metrics.NewMetrics(),
		done:    make(chan struct{}),
	}

	prices, options, err := newProviders(cfg, a.logger)
	if err != nil {
		return nil, err
	}

	if cfg.CacheEnabled {
		a.cache, err = database.NewMarketDataCache(cfg.CacheDSN, cfg.CacheTTL, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
		cached := database.NewCachedMarketData(prices, options, a.cache, a.metrics)
		prices, options = cached, cached
		go a.purgeLoop()
	}

	a.signals = services.NewSignalService(prices, options, services.SignalServiceConfig{
		RSIWindow:       cfg.RSIWindow,
		PricePeriodDays: cfg.PricePeriodDays,
		Thresholds:      cfg.Thresholds(),
		DefaultTickers:  cfg.DefaultTickers,
	}, a.metrics, a.logger)

	a.logger.WithFields(logrus.Fields{
		"data_source": cfg.DataSource,
		"cache":       cfg.CacheEnabled,
		"tickers":     cfg.DefaultTickers,
	}).Debug("Services initialized")

	return a, nil
}

func newProviders(cfg *config.Config, logger *logrus.Logger) (interfaces.PriceHistoryProvider, interfaces.OptionChainProvider, error) {
	alpacaConfig := services.AlpacaConfig{
		APIKey:     cfg.AlpacaAPIKey,
		SecretKey:  cfg.AlpacaSecretKey,
		DataURL:    cfg.AlpacaDataURL,
		TradingURL: cfg.AlpacaTradingURL,
	}

	switch cfg.DataSource {
	case config.SourceAlpaca:
		alpaca := services.NewAlpacaMarketDataService(alpacaConfig, logger)
		return alpaca, alpaca, nil
	case config.SourcePolygon:
		return services.NewPolygonPriceHistoryService(cfg.PolygonAPIKey, logger),
			services.NewAlpacaMarketDataService(alpacaConfig, logger), nil
	case config.SourceCSV:
		csv := services.NewCSVMarketDataService(cfg.CSVDataDir, logger)
		return csv, csv, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownDataSource, cfg.DataSource)
	}
}

// purgeLoop evicts expired cache entries once per TTL
func (a *app) purgeLoop() {
	interval := a.cfg.CacheTTL
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			if err := a.cache.Purge(); err != nil {
				a.logger.WithError(err).Warn("Failed to purge market data cache")
			}
		}
	}
}

// Close stops background work and releases the cache
func (a *app) Close() {
	close(a.done)
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close market data cache")
		}
	}
}
