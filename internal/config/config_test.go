package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sources:
  binance:
    enabled: true
`))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":9980", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "https://api.binance.com", cfg.Sources.Binance.BaseURL)
	assert.Equal(t, 1000, cfg.Sources.Binance.RateLimitMs)
	assert.Equal(t, 2, cfg.Backtest.MaxConcurrentJobs)
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
log:
  level: debug
server:
  addr: ":8000"
cache:
  backend: sqlite
  path: /tmp/cache.db
sources:
  priority: [yahoo, binance]
  binance:
    enabled: true
    rate_limit_ms: 250
  yahoo:
    enabled: true
  polygon:
    enabled: true
    api_key: abc
backtest:
  max_concurrent_jobs: 4
  results_path: /tmp/results.db
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, []string{"yahoo", "binance"}, cfg.Sources.Priority)
	assert.Equal(t, 250, cfg.Sources.Binance.RateLimitMs)
	assert.Equal(t, "abc", cfg.Sources.Polygon.APIKey)
	assert.Equal(t, 4, cfg.Backtest.MaxConcurrentJobs)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"unknown cache backend", `
cache:
  backend: redis
sources:
  binance:
    enabled: true
`},
		{"unknown log level", `
log:
  level: loud
sources:
  binance:
    enabled: true
`},
		{"no sources enabled", `
sources:
  binance:
    enabled: false
`},
		{"priority names unknown source", `
sources:
  priority: [kraken]
  binance:
    enabled: true
`},
		{"priority names disabled source", `
sources:
  priority: [yahoo]
  binance:
    enabled: true
  yahoo:
    enabled: false
`},
		{"polygon without api key", `
sources:
  polygon:
    enabled: true
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}
