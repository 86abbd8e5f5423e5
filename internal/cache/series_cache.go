package cache

import (
	"context"
	"errors"
	"time"

	"binance-pattern-scanner/internal/patterns"

	"github.com/rs/zerolog"
)

// DefaultSeriesTTL keeps candles long enough to cover one scan
const DefaultSeriesTTL = time.Minute

// store is the part of CacheService the series cache needs
type store interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisSeriesCache stores candle series as JSON. Every failure is a miss.
type RedisSeriesCache struct {
	store  store
	ttl    time.Duration
	logger zerolog.Logger
}

func NewRedisSeriesCache(cs *CacheService, ttl time.Duration, logger zerolog.Logger) *RedisSeriesCache {
	return newRedisSeriesCache(cs, ttl, logger)
}

func newRedisSeriesCache(s store, ttl time.Duration, logger zerolog.Logger) *RedisSeriesCache {
	if ttl <= 0 {
		ttl = DefaultSeriesTTL
	}
	return &RedisSeriesCache{
		store:  s,
		ttl:    ttl,
		logger: logger.With().Str("component", "series-cache").Logger(),
	}
}

// Get returns the cached series for key
func (rc *RedisSeriesCache) Get(ctx context.Context, key string) (patterns.Series, bool) {
	var candles []patterns.Candle
	if err := rc.store.GetJSON(ctx, key, &candles); err != nil {
		if !errors.Is(err, ErrMiss) && !errors.Is(err, ErrUnavailable) {
			rc.logger.Debug().Err(err).Str("key", key).Msg("Series cache read failed")
		}
		return patterns.Series{}, false
	}

	series, err := patterns.NewSeries(candles)
	if err != nil {
		rc.logger.Warn().Err(err).Str("key", key).Msg("Discarding corrupt cached series")
		_ = rc.store.Delete(ctx, key)
		return patterns.Series{}, false
	}
	return series, true
}

// Set stores series under key
func (rc *RedisSeriesCache) Set(ctx context.Context, key string, series patterns.Series) {
	if err := rc.store.Set(ctx, key, series.Candles(), rc.ttl); err != nil && !errors.Is(err, ErrUnavailable) {
		rc.logger.Debug().Err(err).Str("key", key).Msg("Series cache write failed")
	}
}
