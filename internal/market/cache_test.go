package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCandles(start int64, step int64, closes ...float64) []Candle {
	out := make([]Candle, 0, len(closes))
	for i, c := range closes {
		out = append(out, Candle{
			Timestamp: start + int64(i)*step,
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    100,
		})
	}
	return out
}

func TestMemoryCacheHitRequiresExactKey(t *testing.T) {
	cache := NewMemoryCache()
	candles := sampleCandles(1000, 60_000, 1, 2, 3)
	cache.Put("binance", "BTCUSDT", "1m", 1000, 121_000, candles)

	got, ok := cache.Get("binance", "BTCUSDT", "1m", 1000, 121_000)
	require.True(t, ok)
	assert.Equal(t, candles, got)

	_, ok = cache.Get("yahoo", "BTCUSDT", "1m", 1000, 121_000)
	assert.False(t, ok, "different source must miss")
	_, ok = cache.Get("binance", "ETHUSDT", "1m", 1000, 121_000)
	assert.False(t, ok, "different symbol must miss")
	_, ok = cache.Get("binance", "BTCUSDT", "5m", 1000, 121_000)
	assert.False(t, ok, "different timeframe must miss")
	_, ok = cache.Get("binance", "BTCUSDT", "1m", 2000, 121_000)
	assert.False(t, ok, "different range is a different key")
}

func TestMemoryCacheReturnsWholeStoredSeries(t *testing.T) {
	cache := NewMemoryCache()
	candles := sampleCandles(0, 60_000, 1, 2, 3, 4, 5)
	cache.Put("binance", "BTCUSDT", "1m", 0, 240_000, candles)

	got, ok := cache.Get("binance", "BTCUSDT", "1m", 0, 240_000)
	require.True(t, ok)
	assert.Len(t, got, 5, "hit returns the full stored series, never a slice")
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	cache := NewMemoryCache()
	now := time.Now()
	cache.SetClock(func() time.Time { return now })
	cache.Put("binance", "BTCUSDT", "1h", 0, 100, sampleCandles(0, 1, 1))

	_, ok := cache.Get("binance", "BTCUSDT", "1h", 0, 100)
	require.True(t, ok)

	now = now.Add(CacheTTL - time.Second)
	_, ok = cache.Get("binance", "BTCUSDT", "1h", 0, 100)
	assert.True(t, ok, "entry just under TTL is still fresh")

	now = now.Add(2 * time.Second)
	_, ok = cache.Get("binance", "BTCUSDT", "1h", 0, 100)
	assert.False(t, ok, "entry past TTL is stale")
}

func TestMemoryCachePutReplacesEntry(t *testing.T) {
	cache := NewMemoryCache()
	cache.Put("binance", "BTCUSDT", "1m", 0, 100, sampleCandles(0, 1, 1, 2))
	cache.Put("binance", "BTCUSDT", "1m", 0, 100, sampleCandles(0, 1, 9))

	got, ok := cache.Get("binance", "BTCUSDT", "1m", 0, 100)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, 9.0, got[0].Close)
}

func TestMemoryCacheGetReturnsCopy(t *testing.T) {
	cache := NewMemoryCache()
	cache.Put("binance", "BTCUSDT", "1m", 0, 100, sampleCandles(0, 1, 1, 2))

	got, ok := cache.Get("binance", "BTCUSDT", "1m", 0, 100)
	require.True(t, ok)
	got[0].Close = 42

	again, ok := cache.Get("binance", "BTCUSDT", "1m", 0, 100)
	require.True(t, ok)
	assert.Equal(t, 1.0, again[0].Close, "caller mutation must not leak into the cache")
}

func TestMemoryCacheEvictExpired(t *testing.T) {
	cache := NewMemoryCache()
	now := time.Now()
	cache.SetClock(func() time.Time { return now })

	cache.Put("binance", "BTCUSDT", "1m", 0, 100, sampleCandles(0, 1, 1))
	now = now.Add(CacheTTL + time.Minute)
	cache.Put("binance", "ETHUSDT", "1m", 0, 100, sampleCandles(0, 1, 2))

	removed := cache.EvictExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, cache.Len())

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}
