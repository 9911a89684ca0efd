package config

const (
	defaultAddr            = ":9980"
	defaultLogLevel        = "info"
	defaultCacheBackend    = "memory"
	defaultBinanceBaseURL  = "https://api.binance.com"
	defaultYahooBaseURL    = "https://query1.finance.yahoo.com/v8/finance/chart"
	defaultPolygonBaseURL  = "https://api.polygon.io"
	defaultRateLimitMs     = 1000
	defaultMaxConcurrency  = 2
	defaultSQLiteCachePath = "data/cache.db"
)

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	if c.Cache.Backend == "sqlite" && c.Cache.Path == "" {
		c.Cache.Path = defaultSQLiteCachePath
	}
	if c.Sources.Binance.BaseURL == "" {
		c.Sources.Binance.BaseURL = defaultBinanceBaseURL
	}
	if c.Sources.Yahoo.BaseURL == "" {
		c.Sources.Yahoo.BaseURL = defaultYahooBaseURL
	}
	if c.Sources.Polygon.BaseURL == "" {
		c.Sources.Polygon.BaseURL = defaultPolygonBaseURL
	}
	if c.Sources.Binance.RateLimitMs == 0 {
		c.Sources.Binance.RateLimitMs = defaultRateLimitMs
	}
	if c.Sources.Yahoo.RateLimitMs == 0 {
		c.Sources.Yahoo.RateLimitMs = defaultRateLimitMs
	}
	if c.Sources.Polygon.RateLimitMs == 0 {
		c.Sources.Polygon.RateLimitMs = defaultRateLimitMs
	}
	if c.Backtest.MaxConcurrentJobs <= 0 {
		c.Backtest.MaxConcurrentJobs = defaultMaxConcurrency
	}
}
