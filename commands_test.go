package main

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-signal/config"
	"options-signal/controllers"
	"options-signal/interfaces"
	"options-signal/services"
)

func TestRenderSnapshot(t *testing.T) {
	rsi := 28.12
	signal := interfaces.SignalBuyCall
	expiration := time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)

	snapshot := &interfaces.DashboardSnapshot{
		Symbol:    "AMD",
		LatestRSI: &rsi,
		AverageIV: 0.31,
		Signal:    &signal,
		Status:    interfaces.StatusOK,
		OptionChain: &interfaces.OptionChain{
			UnderlyingSymbol: "AMD",
			Calls: []*interfaces.OptionContract{
				{Symbol: "AMD240607C00150000", StrikePrice: 150, ImpliedVolatility: 0.31, Volume: 42, OpenInterest: 900},
				{Symbol: "AMD240607C00190000", StrikePrice: 190, ImpliedVolatility: 0.72},
			},
		},
		Expiration: &expiration,
	}

	var out bytes.Buffer
	renderSnapshot(&out, controllers.NewDashboardView(snapshot, nil, 0.6))

	text := out.String()
	assert.Contains(t, text, "28.12")
	assert.Contains(t, text, "31.00%")
	assert.Contains(t, text, "BUY CALL")
	assert.Contains(t, text, "2024-06-07")
	assert.Contains(t, text, "AMD240607C00150000")
	assert.NotContains(t, text, "AMD240607C00190000")
}

func TestRenderSnapshotWithoutOptions(t *testing.T) {
	var out bytes.Buffer
	renderSnapshot(&out, controllers.NewDashboardView(&interfaces.DashboardSnapshot{
		Symbol: "NEW",
		Status: interfaces.StatusInsufficientData,
	}, nil, 0.6))

	assert.Contains(t, out.String(), "Insufficient data")
	assert.Contains(t, out.String(), "No options data available for NEW.")
}

func TestNewProviders(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	t.Run("csv", func(t *testing.T) {
		prices, options, err := newProviders(&config.Config{DataSource: config.SourceCSV, CSVDataDir: t.TempDir()}, logger)
		require.NoError(t, err)
		assert.IsType(t, &services.CSVMarketDataService{}, prices)
		assert.IsType(t, &services.CSVMarketDataService{}, options)
	})

	t.Run("polygon prices with alpaca options", func(t *testing.T) {
		prices, options, err := newProviders(&config.Config{
			DataSource:      config.SourcePolygon,
			PolygonAPIKey:   "poly",
			AlpacaAPIKey:    "key",
			AlpacaSecretKey: "secret",
		}, logger)
		require.NoError(t, err)
		assert.IsType(t, &services.PolygonPriceHistoryService{}, prices)
		assert.IsType(t, &services.AlpacaMarketDataService{}, options)
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := newProviders(&config.Config{DataSource: "yahoo"}, logger)
		assert.ErrorIs(t, err, config.ErrUnknownDataSource)
	})
}
