package market

import (
	"fmt"
	"sync"
	"time"
)

// CacheTTL bounds how long a fetched range stays servable.
const CacheTTL = 24 * time.Hour

// CandleCache is the range-aware, TTL-bound store shared by the aggregator.
// A hit requires the exact key tuple, a fresh entry and a stored range fully
// containing the requested one; the stored series is returned whole, never
// sliced. Put replaces the entry for its key atomically.
type CandleCache interface {
	Get(source, symbol, timeframe string, start, end int64) ([]Candle, bool)
	Put(source, symbol, timeframe string, start, end int64, candles []Candle)
	EvictExpired() int
	Clear()
}

type cacheEntry struct {
	candles    []Candle
	rangeStart int64
	rangeEnd   int64
	fetchedAt  time.Time
}

// MemoryCache is the in-process CandleCache backend.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache builds an empty cache with the default TTL.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     CacheTTL,
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now != nil {
		c.now = now
	}
}

// CacheKey renders the canonical key tuple.
func CacheKey(source, symbol, timeframe string, start, end int64) string {
	return fmt.Sprintf("%s:%s:%s:%d:%d", source, symbol, NormalizeTimeframe(timeframe), start, end)
}

func (c *MemoryCache) Get(source, symbol, timeframe string, start, end int64) ([]Candle, bool) {
	key := CacheKey(source, symbol, timeframe, start, end)
	c.mu.RLock()
	entry, ok := c.entries[key]
	now := c.now()
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if now.Sub(entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	if entry.rangeStart > start || entry.rangeEnd < end {
		return nil, false
	}
	out := make([]Candle, len(entry.candles))
	copy(out, entry.candles)
	return out, true
}

func (c *MemoryCache) Put(source, symbol, timeframe string, start, end int64, candles []Candle) {
	key := CacheKey(source, symbol, timeframe, start, end)
	stored := make([]Candle, len(candles))
	copy(stored, candles)
	c.mu.Lock()
	c.entries[key] = cacheEntry{
		candles:    stored,
		rangeStart: start,
		rangeEnd:   end,
		fetchedAt:  c.now(),
	}
	c.mu.Unlock()
}

// EvictExpired drops every entry past TTL and returns how many were removed.
func (c *MemoryCache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.fetchedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len reports the number of live entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
