// Package sqlite persists the candle cache across restarts. It carries the
// same hit semantics as the in-memory backend: exact key tuple, TTL bound,
// stored range containing the request, whole-entry replace on write.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"stratlab/internal/logger"
	"stratlab/internal/market"
)

const schema = `
CREATE TABLE IF NOT EXISTS candle_cache (
    cache_key   TEXT PRIMARY KEY,
    source      TEXT NOT NULL,
    symbol      TEXT NOT NULL,
    timeframe   TEXT NOT NULL,
    range_start INTEGER NOT NULL,
    range_end   INTEGER NOT NULL,
    candles     TEXT NOT NULL,
    fetched_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_candle_cache_fetched_at ON candle_cache(fetched_at);
`

// CacheStore is the sqlite-backed market.CandleCache.
type CacheStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewCacheStore opens (creating if needed) the cache database at path.
func NewCacheStore(path string) (*CacheStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("cache database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &CacheStore{db: db, ttl: market.CacheTTL, now: time.Now}, nil
}

// SetClock overrides the time source. Test hook.
func (s *CacheStore) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *CacheStore) Close() error {
	return s.db.Close()
}

func (s *CacheStore) Get(source, symbol, timeframe string, start, end int64) ([]market.Candle, bool) {
	key := market.CacheKey(source, symbol, timeframe, start, end)
	row := s.db.QueryRow(
		`SELECT range_start, range_end, candles, fetched_at FROM candle_cache WHERE cache_key = ?`, key)
	var rangeStart, rangeEnd, fetchedAt int64
	var blob string
	if err := row.Scan(&rangeStart, &rangeEnd, &blob, &fetchedAt); err != nil {
		if err != sql.ErrNoRows {
			logger.Warnf("[cache] read %s: %v", key, err)
		}
		return nil, false
	}
	if s.now().Sub(time.UnixMilli(fetchedAt)) >= s.ttl {
		return nil, false
	}
	if rangeStart > start || rangeEnd < end {
		return nil, false
	}
	var candles []market.Candle
	if err := json.Unmarshal([]byte(blob), &candles); err != nil {
		logger.Warnf("[cache] corrupt entry %s: %v", key, err)
		return nil, false
	}
	return candles, true
}

func (s *CacheStore) Put(source, symbol, timeframe string, start, end int64, candles []market.Candle) {
	key := market.CacheKey(source, symbol, timeframe, start, end)
	blob, err := json.Marshal(candles)
	if err != nil {
		logger.Warnf("[cache] encode %s: %v", key, err)
		return
	}
	_, err = s.db.Exec(`
		INSERT INTO candle_cache (cache_key, source, symbol, timeframe, range_start, range_end, candles, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
		    range_start=excluded.range_start,
		    range_end=excluded.range_end,
		    candles=excluded.candles,
		    fetched_at=excluded.fetched_at`,
		key, source, symbol, market.NormalizeTimeframe(timeframe), start, end, string(blob), s.now().UnixMilli())
	if err != nil {
		logger.Warnf("[cache] write %s: %v", key, err)
	}
}

// EvictExpired deletes every entry past TTL and returns how many went.
func (s *CacheStore) EvictExpired() int {
	cutoff := s.now().Add(-s.ttl).UnixMilli()
	res, err := s.db.Exec(`DELETE FROM candle_cache WHERE fetched_at <= ?`, cutoff)
	if err != nil {
		logger.Warnf("[cache] evict: %v", err)
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}

func (s *CacheStore) Clear() {
	if _, err := s.db.Exec(`DELETE FROM candle_cache`); err != nil {
		logger.Warnf("[cache] clear: %v", err)
	}
}
