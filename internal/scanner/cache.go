package scanner

import (
	"context"
	"sync"
	"time"

	"binance-pattern-scanner/internal/patterns"
)

// MemoryCache keeps fetched series in process with a TTL
type MemoryCache struct {
	mu    sync.RWMutex
	cache map[string]cachedSeries
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryCache creates a new cache with specified TTL
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: make(map[string]cachedSeries),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a series from cache if not expired
func (mc *MemoryCache) Get(_ context.Context, key string) (patterns.Series, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	cached, exists := mc.cache[key]
	if !exists || mc.now().After(cached.expiresAt) {
		return patterns.Series{}, false
	}
	return cached.series, true
}

// Set stores a series in cache with TTL
func (mc *MemoryCache) Set(_ context.Context, key string, series patterns.Series) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.cache[key] = cachedSeries{
		series:    series,
		expiresAt: mc.now().Add(mc.ttl),
	}
}

// Len returns the number of stored entries, expired ones included
func (mc *MemoryCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.cache)
}

// Clear removes all cached series
func (mc *MemoryCache) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.cache = make(map[string]cachedSeries)
}

// CleanupExpired removes expired cache entries
func (mc *MemoryCache) CleanupExpired() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	for key, cached := range mc.cache {
		if now.After(cached.expiresAt) {
			delete(mc.cache, key)
		}
	}
}
