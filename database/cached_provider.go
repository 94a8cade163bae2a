package database

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"options-signal/interfaces"
	"options-signal/metrics"
	"options-signal/models"
)

// CachedMarketData wraps the market data providers with a MarketDataCache.
// Cache read or write failures are logged and fall through to the provider.
type CachedMarketData struct {
	prices  interfaces.PriceHistoryProvider
	options interfaces.OptionChainProvider
	cache   *MarketDataCache
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// NewCachedMarketData creates a caching decorator over both providers
func NewCachedMarketData(
	prices interfaces.PriceHistoryProvider,
	options interfaces.OptionChainProvider,
	cache *MarketDataCache,
	m *metrics.Metrics,
) *CachedMarketData {
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &CachedMarketData{
		prices:  prices,
		options: options,
		cache:   cache,
		metrics: m,
		logger:  cache.logger,
	}
}

// FetchPriceHistory serves bars from the cache when fresh
func (c *CachedMarketData) FetchPriceHistory(ctx context.Context, ticker string, periodDays int) ([]interfaces.PriceBar, error) {
	bars, ok, err := c.cache.GetBars(ticker, periodDays)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read cached bars")
	}
	if ok {
		c.metrics.CacheHitsTotal.WithLabelValues(models.FetchKindBars).Inc()
		return bars, nil
	}
	c.metrics.CacheMissesTotal.WithLabelValues(models.FetchKindBars).Inc()

	bars, err = c.prices.FetchPriceHistory(ctx, ticker, periodDays)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SaveBars(ticker, periodDays, bars); err != nil {
		c.logger.WithError(err).WithField("symbol", ticker).Warn("Failed to cache bars")
	}
	return bars, nil
}

// ListExpirations serves the expiration listing from the cache when fresh
func (c *CachedMarketData) ListExpirations(ctx context.Context, ticker string) ([]time.Time, error) {
	expirations, ok, err := c.cache.GetExpirations(ticker)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read cached expirations")
	}
	if ok {
		c.metrics.CacheHitsTotal.WithLabelValues(models.FetchKindExpirations).Inc()
		return expirations, nil
	}
	c.metrics.CacheMissesTotal.WithLabelValues(models.FetchKindExpirations).Inc()

	expirations, err = c.options.ListExpirations(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SaveExpirations(ticker, expirations); err != nil {
		c.logger.WithError(err).WithField("symbol", ticker).Warn("Failed to cache expirations")
	}
	return expirations, nil
}

// FetchCalls serves the call chain from the cache when fresh
func (c *CachedMarketData) FetchCalls(ctx context.Context, ticker string, expiration time.Time) (*interfaces.OptionChain, error) {
	chain, ok, err := c.cache.GetCalls(ticker, expiration)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read cached calls")
	}
	if ok {
		c.metrics.CacheHitsTotal.WithLabelValues(models.FetchKindCalls).Inc()
		return chain, nil
	}
	c.metrics.CacheMissesTotal.WithLabelValues(models.FetchKindCalls).Inc()

	chain, err = c.options.FetchCalls(ctx, ticker, expiration)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SaveCalls(ticker, expiration, chain); err != nil {
		c.logger.WithError(err).WithField("symbol", ticker).Warn("Failed to cache calls")
	}
	return chain, nil
}
