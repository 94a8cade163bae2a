package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"options-signal/interfaces"
	"options-signal/models"
)

// MarketDataCache memoizes provider results in SQLite for a fixed TTL
type MarketDataCache struct {
	db     *gorm.DB
	ttl    time.Duration
	logger *logrus.Logger
	now    func() time.Time
}

// NewMarketDataCache opens the cache database. In-memory DSNs keep nothing
// beyond the process lifetime.
func NewMarketDataCache(dsn string, ttl time.Duration, log *logrus.Logger) (*MarketDataCache, error) {
	if !isMemoryDSN(dsn) {
		// Ensure the directory exists
		dir := filepath.Dir(strings.TrimPrefix(dsn, "file:"))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database lives only as long as its connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	// Auto-migrate schemas
	if err := db.AutoMigrate(
		&models.DBFetch{},
		&models.DBBar{},
		&models.DBExpiration{},
		&models.DBOptionContract{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if log == nil {
		log = logrus.New()
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return &MarketDataCache{
		db:     db,
		ttl:    ttl,
		logger: log,
		now:    time.Now,
	}, nil
}

// GetBars returns cached bars and whether a fresh entry exists
func (c *MarketDataCache) GetBars(symbol string, periodDays int) ([]interfaces.PriceBar, bool, error) {
	fresh, err := c.isFresh(models.FetchKindBars, symbol, strconv.Itoa(periodDays))
	if err != nil || !fresh {
		return nil, false, err
	}

	var dbBars []*models.DBBar
	result := c.db.Where("symbol = ? AND period_days = ?", symbol, periodDays).
		Order("timestamp ASC").
		Find(&dbBars)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to get bars: %w", result.Error)
	}

	bars := make([]interfaces.PriceBar, len(dbBars))
	for i, dbBar := range dbBars {
		bars[i] = interfaces.PriceBar{
			Symbol:    dbBar.Symbol,
			Timestamp: dbBar.Timestamp,
			Open:      dbBar.Open,
			High:      dbBar.High,
			Low:       dbBar.Low,
			Close:     dbBar.Close,
			Volume:    dbBar.Volume,
		}
	}
	return bars, true, nil
}

// SaveBars replaces the cached bars for symbol and period
func (c *MarketDataCache) SaveBars(symbol string, periodDays int, bars []interfaces.PriceBar) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("symbol = ? AND period_days = ?", symbol, periodDays).Delete(&models.DBBar{}).Error; err != nil {
			return fmt.Errorf("failed to clear bars: %w", err)
		}

		if len(bars) > 0 {
			dbBars := make([]*models.DBBar, len(bars))
			for i, bar := range bars {
				dbBars[i] = &models.DBBar{
					Symbol:     symbol,
					PeriodDays: periodDays,
					Timestamp:  bar.Timestamp,
					Open:       bar.Open,
					High:       bar.High,
					Low:        bar.Low,
					Close:      bar.Close,
					Volume:     bar.Volume,
				}
			}
			if err := tx.Create(&dbBars).Error; err != nil {
				return fmt.Errorf("failed to save bars: %w", err)
			}
		}

		return c.touch(tx, models.FetchKindBars, symbol, strconv.Itoa(periodDays))
	})
}

// GetExpirations returns the cached expiration listing in provider order
func (c *MarketDataCache) GetExpirations(symbol string) ([]time.Time, bool, error) {
	fresh, err := c.isFresh(models.FetchKindExpirations, symbol, "")
	if err != nil || !fresh {
		return nil, false, err
	}

	var rows []*models.DBExpiration
	if err := c.db.Where("symbol = ?", symbol).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, false, fmt.Errorf("failed to get expirations: %w", err)
	}

	expirations := make([]time.Time, len(rows))
	for i, row := range rows {
		expirations[i] = row.ExpirationDate
	}
	return expirations, true, nil
}

// SaveExpirations replaces the cached expiration listing for symbol
func (c *MarketDataCache) SaveExpirations(symbol string, expirations []time.Time) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("symbol = ?", symbol).Delete(&models.DBExpiration{}).Error; err != nil {
			return fmt.Errorf("failed to clear expirations: %w", err)
		}

		if len(expirations) > 0 {
			rows := make([]*models.DBExpiration, len(expirations))
			for i, expiration := range expirations {
				rows[i] = &models.DBExpiration{
					Symbol:         symbol,
					Position:       i,
					ExpirationDate: expiration,
				}
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to save expirations: %w", err)
			}
		}

		return c.touch(tx, models.FetchKindExpirations, symbol, "")
	})
}

// GetCalls returns the cached call chain for symbol and expiration
func (c *MarketDataCache) GetCalls(symbol string, expiration time.Time) (*interfaces.OptionChain, bool, error) {
	param := expirationKey(expiration)
	fresh, err := c.isFresh(models.FetchKindCalls, symbol, param)
	if err != nil || !fresh {
		return nil, false, err
	}

	var rows []*models.DBOptionContract
	result := c.db.Where("underlying_symbol = ? AND expiration_date = ?", symbol, expiration.UTC()).
		Order("id ASC").
		Find(&rows)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to get option contracts: %w", result.Error)
	}

	chain := &interfaces.OptionChain{
		UnderlyingSymbol: symbol,
		ExpirationDate:   expiration,
		Calls:            make([]*interfaces.OptionContract, len(rows)),
	}
	for i, row := range rows {
		chain.Calls[i] = &interfaces.OptionContract{
			Symbol:            row.ContractSymbol,
			UnderlyingSymbol:  row.UnderlyingSymbol,
			ContractType:      row.ContractType,
			StrikePrice:       row.StrikePrice,
			ExpirationDate:    row.ExpirationDate,
			LastPrice:         row.LastPrice,
			Bid:               row.Bid,
			Ask:               row.Ask,
			ImpliedVolatility: row.ImpliedVolatility,
			Volume:            row.Volume,
			OpenInterest:      row.OpenInterest,
		}
	}
	return chain, true, nil
}

// SaveCalls replaces the cached call chain for symbol and expiration
func (c *MarketDataCache) SaveCalls(symbol string, expiration time.Time, chain *interfaces.OptionChain) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("underlying_symbol = ? AND expiration_date = ?", symbol, expiration.UTC()).
			Delete(&models.DBOptionContract{}).Error; err != nil {
			return fmt.Errorf("failed to clear option contracts: %w", err)
		}

		if !chain.Empty() {
			rows := make([]*models.DBOptionContract, len(chain.Calls))
			for i, contract := range chain.Calls {
				rows[i] = &models.DBOptionContract{
					ContractSymbol:    contract.Symbol,
					UnderlyingSymbol:  symbol,
					ExpirationDate:    expiration.UTC(),
					ContractType:      contract.ContractType,
					StrikePrice:       contract.StrikePrice,
					LastPrice:         contract.LastPrice,
					Bid:               contract.Bid,
					Ask:               contract.Ask,
					ImpliedVolatility: contract.ImpliedVolatility,
					Volume:            contract.Volume,
					OpenInterest:      contract.OpenInterest,
				}
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to save option contracts: %w", err)
			}
		}

		return c.touch(tx, models.FetchKindCalls, symbol, expirationKey(expiration))
	})
}

// Purge removes cache entries older than the TTL
func (c *MarketDataCache) Purge() error {
	before := c.now().Add(-c.ttl)
	c.logger.WithField("before", before).Debug("Purging stale cache entries")

	var stale []*models.DBFetch
	if err := c.db.Where("fetched_at < ?", before).Find(&stale).Error; err != nil {
		return fmt.Errorf("failed to find stale entries: %w", err)
	}

	for _, fetch := range stale {
		if err := c.evict(fetch); err != nil {
			return err
		}
	}

	c.logger.WithField("purged", len(stale)).Debug("Stale cache entries purged")
	return nil
}

// Close closes the database connection
func (c *MarketDataCache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (c *MarketDataCache) isFresh(kind, symbol, param string) (bool, error) {
	var fetch models.DBFetch
	err := c.db.Where("kind = ? AND symbol = ? AND param = ?", kind, symbol, param).First(&fetch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return c.now().Sub(fetch.FetchedAt) < c.ttl, nil
}

func (c *MarketDataCache) touch(tx *gorm.DB, kind, symbol, param string) error {
	if err := tx.Unscoped().Where("kind = ? AND symbol = ? AND param = ?", kind, symbol, param).
		Delete(&models.DBFetch{}).Error; err != nil {
		return fmt.Errorf("failed to clear cache entry: %w", err)
	}

	fetch := &models.DBFetch{
		Kind:      kind,
		Symbol:    symbol,
		Param:     param,
		FetchedAt: c.now(),
	}
	if err := tx.Create(fetch).Error; err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}
	return nil
}

func (c *MarketDataCache) evict(fetch *models.DBFetch) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		var payload *gorm.DB
		switch fetch.Kind {
		case models.FetchKindBars:
			periodDays, _ := strconv.Atoi(fetch.Param)
			payload = tx.Unscoped().Where("symbol = ? AND period_days = ?", fetch.Symbol, periodDays).Delete(&models.DBBar{})
		case models.FetchKindExpirations:
			payload = tx.Unscoped().Where("symbol = ?", fetch.Symbol).Delete(&models.DBExpiration{})
		case models.FetchKindCalls:
			expiration, err := time.Parse(time.RFC3339, fetch.Param)
			if err != nil {
				return fmt.Errorf("invalid cached expiration %q: %w", fetch.Param, err)
			}
			payload = tx.Unscoped().Where("underlying_symbol = ? AND expiration_date = ?", fetch.Symbol, expiration.UTC()).
				Delete(&models.DBOptionContract{})
		}
		if payload != nil && payload.Error != nil {
			return fmt.Errorf("failed to evict %s entry: %w", fetch.Kind, payload.Error)
		}
		return tx.Unscoped().Delete(fetch).Error
	})
}

func expirationKey(expiration time.Time) string {
	return expiration.UTC().Format(time.RFC3339)
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
