package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-signal/interfaces"
	"options-signal/metrics"
	"options-signal/models"
)

type countingProvider struct {
	bars            []interfaces.PriceBar
	expirations     []time.Time
	chain           *interfaces.OptionChain
	err             error
	barCalls        int
	expirationCalls int
	chainCalls      int
}

func (p *countingProvider) FetchPriceHistory(ctx context.Context, ticker string, periodDays int) ([]interfaces.PriceBar, error) {
	p.barCalls++
	return p.bars, p.err
}

func (p *countingProvider) ListExpirations(ctx context.Context, ticker string) ([]time.Time, error) {
	p.expirationCalls++
	return p.expirations, p.err
}

func (p *countingProvider) FetchCalls(ctx context.Context, ticker string, expiration time.Time) (*interfaces.OptionChain, error) {
	p.chainCalls++
	return p.chain, p.err
}

func TestCachedMarketData(t *testing.T) {
	ctx := context.Background()
	expiration := time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)

	t.Run("second fetch is served from cache", func(t *testing.T) {
		cache, now := newTestCache(t, time.Minute)
		m := metrics.NewMetrics()
		provider := &countingProvider{
			bars:        []interfaces.PriceBar{{Symbol: "AMD", Timestamp: expiration.AddDate(0, 0, -7), Close: 150}},
			expirations: []time.Time{expiration},
			chain: &interfaces.OptionChain{
				UnderlyingSymbol: "AMD",
				ExpirationDate:   expiration,
				Calls:            []*interfaces.OptionContract{{Symbol: "AMD240607C00150000", ImpliedVolatility: 0.3}},
			},
		}
		cached := NewCachedMarketData(provider, provider, cache, m)

		for i := 0; i < 2; i++ {
			bars, err := cached.FetchPriceHistory(ctx, "AMD", 30)
			require.NoError(t, err)
			require.Len(t, bars, 1)

			expirations, err := cached.ListExpirations(ctx, "AMD")
			require.NoError(t, err)
			require.Len(t, expirations, 1)

			chain, err := cached.FetchCalls(ctx, "AMD", expiration)
			require.NoError(t, err)
			require.Len(t, chain.Calls, 1)
		}

		assert.Equal(t, 1, provider.barCalls)
		assert.Equal(t, 1, provider.expirationCalls)
		assert.Equal(t, 1, provider.chainCalls)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues(models.FetchKindBars)))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues(models.FetchKindCalls)))

		*now = now.Add(2 * time.Minute)
		_, err := cached.FetchPriceHistory(ctx, "AMD", 30)
		require.NoError(t, err)
		assert.Equal(t, 2, provider.barCalls, "expired entry should refetch")
	})

	t.Run("provider errors are not cached", func(t *testing.T) {
		cache, _ := newTestCache(t, time.Minute)
		provider := &countingProvider{err: errors.New("upstream down")}
		cached := NewCachedMarketData(provider, provider, cache, nil)

		_, err := cached.FetchPriceHistory(ctx, "AMD", 30)
		assert.EqualError(t, err, "upstream down")

		provider.err = nil
		_, err = cached.FetchPriceHistory(ctx, "AMD", 30)
		require.NoError(t, err)
		assert.Equal(t, 2, provider.barCalls)
	})
}
