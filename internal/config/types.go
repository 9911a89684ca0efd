// Package config loads and validates the process configuration.
package config

// Config is the root configuration, immutable after Load.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Cache    CacheConfig    `yaml:"cache"`
	Sources  SourcesConfig  `yaml:"sources"`
	Backtest BacktestConfig `yaml:"backtest"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// CacheConfig selects the candle cache backend: "memory" or "sqlite".
type CacheConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// SourcesConfig configures the market-data gateways. Priority orders merge
// precedence; disabled sources are not registered.
type SourcesConfig struct {
	Priority []string      `yaml:"priority"`
	Binance  BinanceConfig `yaml:"binance"`
	Yahoo    YahooConfig   `yaml:"yahoo"`
	Polygon  PolygonConfig `yaml:"polygon"`
}

type BinanceConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url"`
	RateLimitMs int    `yaml:"rate_limit_ms"`
}

type YahooConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url"`
	RateLimitMs int    `yaml:"rate_limit_ms"`
}

type PolygonConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	RateLimitMs int    `yaml:"rate_limit_ms"`
}

// BacktestConfig bounds job concurrency and locates the run archive. An empty
// results path disables persistence.
type BacktestConfig struct {
	MaxConcurrentJobs int    `yaml:"max_concurrent_jobs"`
	ResultsPath       string `yaml:"results_path"`
}
