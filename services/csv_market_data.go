package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"

	"options-signal/interfaces"
)

const (
	csvDateLayout   = "2006-01-02"
	csvBarsFile     = "bars.csv"
	csvCallsPrefix  = "calls_"
	csvCallsPattern = csvCallsPrefix + "*.csv"
)

// CSVMarketDataService serves price history and call chains from fixture files.
//
// Layout, one directory per symbol:
//
//	<dir>/<SYMBOL>/bars.csv                   date,open,high,low,close,volume
//	<dir>/<SYMBOL>/calls_<YYYY-MM-DD>.csv     contract_symbol,strike,last_price,bid,ask,implied_volatility,volume,open_interest
type CSVMarketDataService struct {
	dir    string
	logger *logrus.Logger
}

// NewCSVMarketDataService creates a CSV backed market data service rooted at dir
func NewCSVMarketDataService(dir string, logger *logrus.Logger) *CSVMarketDataService {
	if logger == nil {
		logger = logrus.New()
	}
	return &CSVMarketDataService{
		dir:    dir,
		logger: logger,
	}
}

// CSVBarDTO is one row of bars.csv
type CSVBarDTO struct {
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume int64   `csv:"volume"`
}

// ToModel converts the row into a PriceBar
func (dto *CSVBarDTO) ToModel(symbol string) (interfaces.PriceBar, error) {
	ts, err := parseCSVTime(dto.Date)
	if err != nil {
		return interfaces.PriceBar{}, err
	}
	return interfaces.PriceBar{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      dto.Open,
		High:      dto.High,
		Low:       dto.Low,
		Close:     dto.Close,
		Volume:    dto.Volume,
	}, nil
}

// CSVCallDTO is one row of a calls_<date>.csv file
type CSVCallDTO struct {
	ContractSymbol    string  `csv:"contract_symbol"`
	Strike            float64 `csv:"strike"`
	LastPrice         float64 `csv:"last_price"`
	Bid               float64 `csv:"bid"`
	Ask               float64 `csv:"ask"`
	ImpliedVolatility float64 `csv:"implied_volatility"`
	Volume            int64   `csv:"volume"`
	OpenInterest      int64   `csv:"open_interest"`
}

// ToModel converts the row into an OptionContract
func (dto *CSVCallDTO) ToModel(symbol string, expiration time.Time) *interfaces.OptionContract {
	return &interfaces.OptionContract{
		Symbol:            dto.ContractSymbol,
		UnderlyingSymbol:  symbol,
		ContractType:      "call",
		StrikePrice:       dto.Strike,
		ExpirationDate:    expiration,
		LastPrice:         dto.LastPrice,
		Bid:               dto.Bid,
		Ask:               dto.Ask,
		ImpliedVolatility: dto.ImpliedVolatility,
		Volume:            dto.Volume,
		OpenInterest:      dto.OpenInterest,
	}
}

// FetchPriceHistory reads bars.csv and keeps the trailing periodDays calendar
// days, measured back from the newest bar so fixtures never go stale.
func (s *CSVMarketDataService) FetchPriceHistory(ctx context.Context, ticker string, periodDays int) ([]interfaces.PriceBar, error) {
	path := filepath.Join(s.dir, ticker, csvBarsFile)

	var rows []*CSVBarDTO
	if err := unmarshalCSVFile(path, &rows); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.WithField("path", path).Debug("No bars fixture")
			return []interfaces.PriceBar{}, nil
		}
		return nil, err
	}

	bars := make([]interfaces.PriceBar, 0, len(rows))
	for _, row := range rows {
		bar, err := row.ToModel(ticker)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	if periodDays > 0 && len(bars) > 0 {
		cutoff := bars[len(bars)-1].Timestamp.AddDate(0, 0, -periodDays)
		first := sort.Search(len(bars), func(i int) bool {
			return bars[i].Timestamp.After(cutoff)
		})
		bars = bars[first:]
	}

	return bars, nil
}

// ListExpirations lists the dates of the calls_<date>.csv files, nearest first
func (s *CSVMarketDataService) ListExpirations(ctx context.Context, ticker string) ([]time.Time, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, ticker, csvCallsPattern))
	if err != nil {
		return nil, fmt.Errorf("failed to list chain files: %w", err)
	}

	expirations := make([]time.Time, 0, len(matches))
	for _, match := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(match), csvCallsPrefix), ".csv")
		expiration, err := time.Parse(csvDateLayout, name)
		if err != nil {
			s.logger.WithField("file", match).Warn("Skipping chain file with unparseable date")
			continue
		}
		expirations = append(expirations, expiration)
	}

	sort.Slice(expirations, func(i, j int) bool {
		return expirations[i].Before(expirations[j])
	})
	return expirations, nil
}

// FetchCalls reads the call chain for one expiration
func (s *CSVMarketDataService) FetchCalls(ctx context.Context, ticker string, expiration time.Time) (*interfaces.OptionChain, error) {
	chain := &interfaces.OptionChain{
		UnderlyingSymbol: ticker,
		ExpirationDate:   expiration,
		Calls:            []*interfaces.OptionContract{},
	}

	path := filepath.Join(s.dir, ticker, csvCallsPrefix+expiration.Format(csvDateLayout)+".csv")

	var rows []*CSVCallDTO
	if err := unmarshalCSVFile(path, &rows); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return chain, nil
		}
		return nil, err
	}

	for _, row := range rows {
		chain.Calls = append(chain.Calls, row.ToModel(ticker, expiration))
	}

	s.logger.WithFields(logrus.Fields{
		"symbol":     ticker,
		"expiration": expiration.Format(csvDateLayout),
		"count":      len(chain.Calls),
	}).Debug("Loaded call chain fixture")
	return chain, nil
}

func unmarshalCSVFile(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		// A zero byte fixture means no rows
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil
		}
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func parseCSVTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(csvDateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing time %q: %w", raw, err)
	}
	return t, nil
}
