package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/sirupsen/logrus"

	"options-signal/interfaces"
)

const alpacaDateLayout = "2006-01-02"

// alpacaDataClient is the part of the Alpaca market data SDK this service uses
type alpacaDataClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetOptionChain(underlyingSymbol string, req marketdata.GetOptionChainRequest) (map[string]marketdata.OptionSnapshot, error)
}

// AlpacaMarketDataService fetches daily bars and call chains from Alpaca.
//
// Contract metadata (expirations, strikes, open interest) comes from the
// trading API's contracts endpoint; quotes and implied volatility come from
// the market data option chain snapshots.
type AlpacaMarketDataService struct {
	apiKey     string
	secretKey  string
	tradingURL string
	data       alpacaDataClient
	logger     *logrus.Logger
	client     *http.Client
	now        func() time.Time
}

// AlpacaConfig configures an AlpacaMarketDataService
type AlpacaConfig struct {
	APIKey     string
	SecretKey  string
	DataURL    string
	TradingURL string
}

// NewAlpacaMarketDataService creates a new Alpaca market data service
func NewAlpacaMarketDataService(cfg AlpacaConfig, logger *logrus.Logger) *AlpacaMarketDataService {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	data := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.SecretKey,
		BaseURL:   cfg.DataURL,
	})

	return newAlpacaMarketDataService(cfg, data, logger)
}

func newAlpacaMarketDataService(cfg AlpacaConfig, data alpacaDataClient, logger *logrus.Logger) *AlpacaMarketDataService {
	return &AlpacaMarketDataService{
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		tradingURL: cfg.TradingURL,
		data:       data,
		logger:     logger,
		client:     &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// AlpacaOptionContractsResponse represents the contracts endpoint response
type AlpacaOptionContractsResponse struct {
	OptionContracts []AlpacaOptionContract `json:"option_contracts"`
	NextPageToken   *string                `json:"next_page_token"`
}

// AlpacaOptionContract represents contract metadata. Alpaca sends numbers as strings.
type AlpacaOptionContract struct {
	Symbol           string `json:"symbol"`
	UnderlyingSymbol string `json:"underlying_symbol"`
	ExpirationDate   string `json:"expiration_date"`
	StrikePrice      string `json:"strike_price"`
	Type             string `json:"type"` // "call" or "put"
	OpenInterest     string `json:"open_interest"`
	ClosePrice       string `json:"close_price"`
}

// FetchPriceHistory returns split and dividend adjusted daily bars
func (s *AlpacaMarketDataService) FetchPriceHistory(ctx context.Context, ticker string, periodDays int) ([]interfaces.PriceBar, error) {
	end := s.now()
	start := end.AddDate(0, 0, -periodDays)

	s.logger.WithFields(logrus.Fields{
		"symbol": ticker,
		"from":   start.Format(alpacaDateLayout),
		"to":     end.Format(alpacaDateLayout),
	}).Debug("Fetching daily bars")

	alpacaBars, err := s.data.GetBars(ticker, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      start,
		End:        end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bars: %w", err)
	}

	bars := make([]interfaces.PriceBar, len(alpacaBars))
	for i, bar := range alpacaBars {
		bars[i] = interfaces.PriceBar{
			Symbol:    ticker,
			Timestamp: bar.Timestamp,
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    int64(bar.Volume),
		}
	}

	s.logger.WithField("count", len(bars)).Debug("Fetched daily bars")
	return bars, nil
}

// ListExpirations returns the distinct upcoming call expirations, nearest first
func (s *AlpacaMarketDataService) ListExpirations(ctx context.Context, ticker string) ([]time.Time, error) {
	query := url.Values{}
	query.Set("underlying_symbols", ticker)
	query.Set("type", "call")
	query.Set("expiration_date_gte", s.now().Format(alpacaDateLayout))

	contracts, err := s.listContracts(ctx, query)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	expirations := make([]time.Time, 0)
	for _, contract := range contracts {
		if seen[contract.ExpirationDate] {
			continue
		}
		expDate, err := time.Parse(alpacaDateLayout, contract.ExpirationDate)
		if err != nil {
			s.logger.WithField("symbol", contract.Symbol).Warn("Skipping contract with unparseable expiration")
			continue
		}
		seen[contract.ExpirationDate] = true
		expirations = append(expirations, expDate)
	}

	sort.Slice(expirations, func(i, j int) bool {
		return expirations[i].Before(expirations[j])
	})

	s.logger.WithFields(logrus.Fields{
		"symbol": ticker,
		"count":  len(expirations),
	}).Debug("Listed option expirations")
	return expirations, nil
}

// FetchCalls retrieves the call chain for a single expiration
func (s *AlpacaMarketDataService) FetchCalls(ctx context.Context, ticker string, expiration time.Time) (*interfaces.OptionChain, error) {
	query := url.Values{}
	query.Set("underlying_symbols", ticker)
	query.Set("type", "call")
	query.Set("expiration_date", expiration.Format(alpacaDateLayout))

	s.logger.WithFields(logrus.Fields{
		"underlying": ticker,
		"expiration": expiration.Format(alpacaDateLayout),
	}).Debug("Fetching option chain")

	contracts, err := s.listContracts(ctx, query)
	if err != nil {
		return nil, err
	}

	chain := &interfaces.OptionChain{
		UnderlyingSymbol: ticker,
		ExpirationDate:   expiration,
		Calls:            make([]*interfaces.OptionContract, 0, len(contracts)),
	}
	if len(contracts) == 0 {
		return chain, nil
	}

	snapshots, err := s.data.GetOptionChain(ticker, marketdata.GetOptionChainRequest{
		Type:           marketdata.Call,
		ExpirationDate: civil.DateOf(expiration),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch option snapshots: %w", err)
	}

	skipped := 0
	for _, alpacaContract := range contracts {
		// Only contracts with a quoted IV enter the chain
		snapshot, ok := snapshots[alpacaContract.Symbol]
		if !ok || snapshot.ImpliedVolatility <= 0 {
			skipped++
			continue
		}

		contract := &interfaces.OptionContract{
			Symbol:            alpacaContract.Symbol,
			UnderlyingSymbol:  alpacaContract.UnderlyingSymbol,
			ContractType:      alpacaContract.Type,
			StrikePrice:       parseFloat(alpacaContract.StrikePrice),
			ExpirationDate:    expiration,
			LastPrice:         parseFloat(alpacaContract.ClosePrice),
			OpenInterest:      int64(parseFloat(alpacaContract.OpenInterest)),
			ImpliedVolatility: snapshot.ImpliedVolatility,
		}

		if snapshot.LatestQuote != nil {
			contract.Bid = snapshot.LatestQuote.BidPrice
			contract.Ask = snapshot.LatestQuote.AskPrice
		}
		if snapshot.LatestTrade != nil {
			contract.LastPrice = snapshot.LatestTrade.Price
		}

		chain.Calls = append(chain.Calls, contract)
	}

	sort.Slice(chain.Calls, func(i, j int) bool {
		return chain.Calls[i].StrikePrice < chain.Calls[j].StrikePrice
	})

	if skipped > 0 {
		s.logger.WithFields(logrus.Fields{
			"symbol":     ticker,
			"expiration": expiration.Format(alpacaDateLayout),
			"skipped":    skipped,
		}).Warn("Skipped contracts without implied volatility")
	}

	s.logger.WithField("count", len(chain.Calls)).Debug("Fetched option chain")
	return chain, nil
}

// listContracts pages through the contracts endpoint
func (s *AlpacaMarketDataService) listContracts(ctx context.Context, query url.Values) ([]AlpacaOptionContract, error) {
	query.Set("limit", "1000")

	contracts := make([]AlpacaOptionContract, 0)
	for {
		endpoint := fmt.Sprintf("%s/v2/options/contracts?%s", s.tradingURL, query.Encode())

		req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("APCA-API-KEY-ID", s.apiKey)
		req.Header.Set("APCA-API-SECRET-KEY", s.secretKey)

		page, err := s.doContractsRequest(req)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, page.OptionContracts...)

		if page.NextPageToken == nil || *page.NextPageToken == "" {
			return contracts, nil
		}
		query.Set("page_token", *page.NextPageToken)
	}
}

func (s *AlpacaMarketDataService) doContractsRequest(req *http.Request) (*AlpacaOptionContractsResponse, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch option contracts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var page AlpacaOptionContractsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode contracts: %w", err)
	}
	return &page, nil
}

func parseFloat(raw string) float64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}
