package scanner

import (
	"context"
	"fmt"

	"binance-pattern-scanner/internal/patterns"

	"github.com/rs/zerolog"
)

// MarketDataProvider supplies candles and the symbol universe
type MarketDataProvider interface {
	Fetch(ctx context.Context, symbol, timeframe string, limit int) (patterns.Series, error)
	TopSymbols(ctx context.Context, quote string, n int) ([]string, error)
}

// SeriesCache stores fetched series. Misses and write failures are never errors.
type SeriesCache interface {
	Get(ctx context.Context, key string) (patterns.Series, bool)
	Set(ctx context.Context, key string, series patterns.Series)
}

// SeriesKey is the cache key for one fetch
func SeriesKey(symbol, timeframe string, limit int) string {
	return fmt.Sprintf("candles:%s:%s:%d", symbol, timeframe, limit)
}

// CachedProvider serves Fetch from a SeriesCache before asking the next provider
type CachedProvider struct {
	next   MarketDataProvider
	cache  SeriesCache
	logger zerolog.Logger
}

func NewCachedProvider(next MarketDataProvider, cache SeriesCache, logger zerolog.Logger) *CachedProvider {
	return &CachedProvider{
		next:   next,
		cache:  cache,
		logger: logger.With().Str("component", "series-cache").Logger(),
	}
}

func (cp *CachedProvider) Fetch(ctx context.Context, symbol, timeframe string, limit int) (patterns.Series, error) {
	key := SeriesKey(symbol, timeframe, limit)
	if series, ok := cp.cache.Get(ctx, key); ok {
		cp.logger.Debug().Str("key", key).Msg("Cache hit")
		return series, nil
	}

	series, err := cp.next.Fetch(ctx, symbol, timeframe, limit)
	if err != nil {
		return patterns.Series{}, err
	}
	cp.cache.Set(ctx, key, series)
	return series, nil
}

func (cp *CachedProvider) TopSymbols(ctx context.Context, quote string, n int) ([]string, error) {
	return cp.next.TopSymbols(ctx, quote, n)
}
