package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-signal/interfaces"
	"options-signal/metrics"
)

type fakePrices struct {
	bars   []interfaces.PriceBar
	err    error
	ticker string
	period int
}

func (f *fakePrices) FetchPriceHistory(ctx context.Context, ticker string, periodDays int) ([]interfaces.PriceBar, error) {
	f.ticker = ticker
	f.period = periodDays
	return f.bars, f.err
}

type fakeOptions struct {
	expirations   []time.Time
	chains        map[string]*interfaces.OptionChain
	expirationErr error
	callsErr      error
	requested     []time.Time
}

func (f *fakeOptions) ListExpirations(ctx context.Context, ticker string) ([]time.Time, error) {
	return f.expirations, f.expirationErr
}

func (f *fakeOptions) FetchCalls(ctx context.Context, ticker string, expiration time.Time) (*interfaces.OptionChain, error) {
	f.requested = append(f.requested, expiration)
	if f.callsErr != nil {
		return nil, f.callsErr
	}
	return f.chains[expiration.Format("2006-01-02")], nil
}

func barsFromCloses(symbol string, closes ...float64) []interfaces.PriceBar {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]interfaces.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = interfaces.PriceBar{
			Symbol:    symbol,
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
		}
	}
	return bars
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestSignalService(prices interfaces.PriceHistoryProvider, options interfaces.OptionChainProvider, m *metrics.Metrics) *SignalService {
	return NewSignalService(prices, options, SignalServiceConfig{
		RSIWindow:       2,
		PricePeriodDays: 30,
		Thresholds:      interfaces.Thresholds{RSIThreshold: 30, IVThreshold: 0.4},
		DefaultTickers:  []string{"AMD", "NVDA"},
	}, m, quietLogger())
}

func TestSignalServiceEvaluate(t *testing.T) {
	nearest := time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)
	later := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

	t.Run("buy call when oversold and options are cheap", func(t *testing.T) {
		m := metrics.NewMetrics()
		prices := &fakePrices{bars: barsFromCloses("AMD", 5, 4, 3, 2)}
		options := &fakeOptions{
			expirations: []time.Time{nearest, later},
			chains: map[string]*interfaces.OptionChain{
				"2024-06-07": chainWithIVs(0.3, 0.4),
				"2024-06-14": chainWithIVs(0.9),
			},
		}

		snapshot, err := newTestSignalService(prices, options, m).Evaluate(context.Background(), " amd ")
		require.NoError(t, err)

		assert.Equal(t, "AMD", snapshot.Symbol)
		assert.Equal(t, "AMD", prices.ticker)
		assert.Equal(t, 30, prices.period)
		assert.Equal(t, interfaces.StatusOK, snapshot.Status)
		require.NotNil(t, snapshot.LatestRSI)
		assert.Equal(t, 0.0, *snapshot.LatestRSI)
		assert.InDelta(t, 0.35, snapshot.AverageIV, 1e-12)
		require.NotNil(t, snapshot.Signal)
		assert.Equal(t, interfaces.SignalBuyCall, *snapshot.Signal)
		require.NotNil(t, snapshot.Expiration)
		assert.True(t, nearest.Equal(*snapshot.Expiration))
		assert.Len(t, snapshot.RSISeries, 4)
		assert.Len(t, snapshot.Bars, 4)

		require.Len(t, options.requested, 1)
		assert.True(t, nearest.Equal(options.requested[0]))

		assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues(string(interfaces.SignalBuyCall))))
		assert.InDelta(t, 0.35, testutil.ToFloat64(m.LatestAverageIV.WithLabelValues("AMD")), 1e-12)
		assert.Equal(t, 1, testutil.CollectAndCount(m.LatestRSI))
	})

	t.Run("symbols outside the ticker list get no gauges", func(t *testing.T) {
		m := metrics.NewMetrics()
		prices := &fakePrices{bars: barsFromCloses("XYZ", 5, 4, 3, 2)}
		options := &fakeOptions{
			expirations: []time.Time{nearest},
			chains:      map[string]*interfaces.OptionChain{"2024-06-07": chainWithIVs(0.3)},
		}

		snapshot, err := newTestSignalService(prices, options, m).Evaluate(context.Background(), "xyz")
		require.NoError(t, err)
		require.NotNil(t, snapshot.Signal)
		assert.Equal(t, interfaces.SignalBuyCall, *snapshot.Signal)

		assert.Equal(t, 0, testutil.CollectAndCount(m.LatestRSI))
		assert.Equal(t, 0, testutil.CollectAndCount(m.LatestAverageIV))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues(string(interfaces.SignalBuyCall))))
	})

	t.Run("no signal when options are expensive", func(t *testing.T) {
		prices := &fakePrices{bars: barsFromCloses("NVDA", 5, 4, 3, 2)}
		options := &fakeOptions{
			expirations: []time.Time{nearest},
			chains:      map[string]*interfaces.OptionChain{"2024-06-07": chainWithIVs(0.5, 0.7)},
		}

		snapshot, err := newTestSignalService(prices, options, nil).Evaluate(context.Background(), "NVDA")
		require.NoError(t, err)
		require.NotNil(t, snapshot.Signal)
		assert.Equal(t, interfaces.SignalNoSignal, *snapshot.Signal)
	})

	t.Run("insufficient price history", func(t *testing.T) {
		m := metrics.NewMetrics()
		prices := &fakePrices{bars: barsFromCloses("AMD", 5)}
		options := &fakeOptions{
			expirations: []time.Time{nearest},
			chains:      map[string]*interfaces.OptionChain{"2024-06-07": chainWithIVs(0.3)},
		}

		snapshot, err := newTestSignalService(prices, options, m).Evaluate(context.Background(), "AMD")
		require.NoError(t, err)

		assert.Equal(t, interfaces.StatusInsufficientData, snapshot.Status)
		assert.Nil(t, snapshot.Signal)
		assert.Nil(t, snapshot.LatestRSI)
		assert.Equal(t, 0.3, snapshot.AverageIV)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues(string(interfaces.StatusInsufficientData))))
	})

	t.Run("empty price history", func(t *testing.T) {
		snapshot, err := newTestSignalService(&fakePrices{}, &fakeOptions{}, nil).Evaluate(context.Background(), "AMD")
		require.NoError(t, err)

		assert.Equal(t, interfaces.StatusInsufficientData, snapshot.Status)
		assert.NotNil(t, snapshot.Bars)
		assert.Empty(t, snapshot.Bars)
	})

	t.Run("no listed expirations averages to zero", func(t *testing.T) {
		prices := &fakePrices{bars: barsFromCloses("AMD", 5, 4, 3, 2)}
		options := &fakeOptions{}

		snapshot, err := newTestSignalService(prices, options, nil).Evaluate(context.Background(), "AMD")
		require.NoError(t, err)

		assert.Equal(t, 0.0, snapshot.AverageIV)
		assert.Nil(t, snapshot.Expiration)
		require.NotNil(t, snapshot.OptionChain)
		assert.True(t, snapshot.OptionChain.Empty())
		assert.Empty(t, options.requested)
		require.NotNil(t, snapshot.Signal)
		assert.Equal(t, interfaces.SignalBuyCall, *snapshot.Signal)
	})

	t.Run("empty chain at nearest expiration", func(t *testing.T) {
		prices := &fakePrices{bars: barsFromCloses("AMD", 1, 2, 3, 4)}
		options := &fakeOptions{expirations: []time.Time{nearest}}

		snapshot, err := newTestSignalService(prices, options, nil).Evaluate(context.Background(), "AMD")
		require.NoError(t, err)

		assert.Equal(t, 0.0, snapshot.AverageIV)
		require.NotNil(t, snapshot.OptionChain)
		assert.NotNil(t, snapshot.OptionChain.Calls)
		assert.True(t, nearest.Equal(snapshot.OptionChain.ExpirationDate))
		require.NotNil(t, snapshot.Signal)
		assert.Equal(t, interfaces.SignalNoSignal, *snapshot.Signal)
	})

	t.Run("price history error", func(t *testing.T) {
		m := metrics.NewMetrics()
		prices := &fakePrices{err: errors.New("connection refused")}

		_, err := newTestSignalService(prices, &fakeOptions{}, m).Evaluate(context.Background(), "AMD")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to fetch price history for AMD")
		assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrorsTotal.WithLabelValues(stagePriceHistory)))
	})

	t.Run("expiration listing error", func(t *testing.T) {
		prices := &fakePrices{bars: barsFromCloses("AMD", 5, 4, 3)}
		options := &fakeOptions{expirationErr: errors.New("timeout")}

		_, err := newTestSignalService(prices, options, nil).Evaluate(context.Background(), "AMD")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to list expirations for AMD")
	})

	t.Run("call chain error", func(t *testing.T) {
		prices := &fakePrices{bars: barsFromCloses("AMD", 5, 4, 3)}
		options := &fakeOptions{expirations: []time.Time{nearest}, callsErr: errors.New("bad gateway")}

		_, err := newTestSignalService(prices, options, nil).Evaluate(context.Background(), "AMD")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to fetch calls for AMD 2024-06-07")
	})

	t.Run("blank ticker", func(t *testing.T) {
		_, err := newTestSignalService(&fakePrices{}, &fakeOptions{}, nil).Evaluate(context.Background(), "  ")
		assert.ErrorIs(t, err, ErrInvalidTicker)
	})
}

func TestSignalServiceTickers(t *testing.T) {
	service := newTestSignalService(&fakePrices{}, &fakeOptions{}, nil)

	tickers := service.Tickers()
	assert.Equal(t, []string{"AMD", "NVDA"}, tickers)

	tickers[0] = "XYZ"
	assert.Equal(t, []string{"AMD", "NVDA"}, service.Tickers())
}
