package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/sirupsen/logrus"

	"options-signal/interfaces"
)

// PolygonPriceHistoryService fetches daily aggregates from Polygon
type PolygonPriceHistoryService struct {
	client *polygon.Client
	logger *logrus.Logger
	now    func() time.Time
}

// NewPolygonPriceHistoryService creates a new Polygon price history service
func NewPolygonPriceHistoryService(apiKey string, logger *logrus.Logger) *PolygonPriceHistoryService {
	if logger == nil {
		logger = logrus.New()
	}
	return &PolygonPriceHistoryService{
		client: polygon.NewWithClient(apiKey, &http.Client{Timeout: 30 * time.Second}),
		logger: logger,
		now:    time.Now,
	}
}

// FetchPriceHistory returns adjusted daily bars for the trailing periodDays
func (s *PolygonPriceHistoryService) FetchPriceHistory(ctx context.Context, ticker string, periodDays int) ([]interfaces.PriceBar, error) {
	end := s.now()
	start := end.AddDate(0, 0, -periodDays)

	params := &models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}
	asc := models.Asc
	adj := true
	params.Order = &asc
	params.Adjusted = &adj

	s.logger.WithFields(logrus.Fields{
		"symbol": ticker,
		"from":   start.Format("2006-01-02"),
		"to":     end.Format("2006-01-02"),
	}).Debug("Fetching polygon daily aggregates")

	iter := s.client.ListAggs(ctx, params)

	bars := make([]interfaces.PriceBar, 0)
	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, interfaces.PriceBar{
			Symbol:    ticker,
			Timestamp: time.Time(agg.Timestamp),
			Open:      agg.Open,
			High:      agg.High,
			Low:       agg.Low,
			Close:     agg.Close,
			Volume:    int64(agg.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch polygon aggregates: %w", err)
	}

	s.logger.WithField("count", len(bars)).Debug("Fetched polygon daily aggregates")
	return bars, nil
}
