package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"options-signal/interfaces"
)

// Data sources
const (
	SourceAlpaca  = "alpaca"
	SourcePolygon = "polygon"
	SourceCSV     = "csv"
)

var (
	ErrUnknownDataSource  = errors.New("unknown data source")
	ErrMissingCredentials = errors.New("missing market data credentials")
)

// Config holds all application configuration
type Config struct {
	// Signal
	RSIWindow       int
	RSIThreshold    float64
	IVThreshold     float64
	DefaultTickers  []string
	PricePeriodDays int
	MaxIVFilter     float64

	// Market data
	DataSource       string
	AlpacaAPIKey     string
	AlpacaSecretKey  string
	AlpacaDataURL    string
	AlpacaTradingURL string
	PolygonAPIKey    string
	CSVDataDir       string

	// Cache
	CacheEnabled bool
	CacheTTL     time.Duration
	CacheDSN     string

	// Server
	ServerPort string
	LogLevel   logrus.Level
}

// Load reads configuration from the environment, loading .env first when present
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the environment with defaults
func FromEnv() (*Config, error) {
	cfg := &Config{
		DataSource:       strings.ToLower(getEnv("DATA_SOURCE", SourceAlpaca)),
		AlpacaAPIKey:     os.Getenv("ALPACA_API_KEY"),
		AlpacaSecretKey:  os.Getenv("ALPACA_SECRET_KEY"),
		AlpacaDataURL:    getEnv("ALPACA_DATA_URL", "https://data.alpaca.markets"),
		AlpacaTradingURL: getEnv("ALPACA_TRADING_URL", "https://paper-api.alpaca.markets"),
		PolygonAPIKey:    os.Getenv("POLYGON_API_KEY"),
		CSVDataDir:       getEnv("CSV_DATA_DIR", "./data"),
		CacheDSN:         getEnv("CACHE_DSN", "file::memory:?cache=shared"),
		ServerPort:       getEnv("SERVER_PORT", "4534"),
		DefaultTickers:   parseTickers(getEnv("DEFAULT_TICKERS", "AMD,NVDA,AAPL,TSLA,MSFT")),
	}

	var err error
	if cfg.RSIWindow, err = getInt("RSI_WINDOW", 14); err != nil {
		return nil, err
	}
	if cfg.RSIWindow < 1 {
		return nil, fmt.Errorf("RSI_WINDOW must be >= 1, got %d", cfg.RSIWindow)
	}
	if cfg.RSIThreshold, err = getFloat("RSI_THRESHOLD", 30.0); err != nil {
		return nil, err
	}
	if cfg.IVThreshold, err = getFloat("IV_THRESHOLD", 0.4); err != nil {
		return nil, err
	}
	if cfg.PricePeriodDays, err = getInt("PRICE_PERIOD_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.MaxIVFilter, err = getFloat("MAX_IV_FILTER", 0.6); err != nil {
		return nil, err
	}
	if cfg.CacheEnabled, err = getBool("CACHE_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	cfg.LogLevel, err = logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected data source has what it needs
func (c *Config) Validate() error {
	switch c.DataSource {
	case SourceAlpaca:
		if c.AlpacaAPIKey == "" || c.AlpacaSecretKey == "" {
			return fmt.Errorf("%w: ALPACA_API_KEY and ALPACA_SECRET_KEY are required", ErrMissingCredentials)
		}
	case SourcePolygon:
		if c.PolygonAPIKey == "" {
			return fmt.Errorf("%w: POLYGON_API_KEY is required", ErrMissingCredentials)
		}
		// Options still come from Alpaca
		if c.AlpacaAPIKey == "" || c.AlpacaSecretKey == "" {
			return fmt.Errorf("%w: ALPACA_API_KEY and ALPACA_SECRET_KEY are required for option chains", ErrMissingCredentials)
		}
	case SourceCSV:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDataSource, c.DataSource)
	}

	if len(c.DefaultTickers) == 0 {
		return errors.New("DEFAULT_TICKERS must name at least one ticker")
	}
	return nil
}

// Thresholds returns the signal thresholds
func (c *Config) Thresholds() interfaces.Thresholds {
	return interfaces.Thresholds{
		RSIThreshold: c.RSIThreshold,
		IVThreshold:  c.IVThreshold,
	}
}

// NewLogger builds a logger the way every service in this repo logs
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(c.LogLevel)
	return logger
}

func parseTickers(raw string) []string {
	tickers := make([]string, 0)
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		ticker := strings.ToUpper(strings.TrimSpace(part))
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true
		tickers = append(tickers, ticker)
	}
	return tickers
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
