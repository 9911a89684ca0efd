package config

import (
	"fmt"
	"strings"
)

func validate(cfg *Config) error {
	switch cfg.Cache.Backend {
	case "memory":
	case "sqlite":
		if cfg.Cache.Path == "" {
			return fmt.Errorf("cache.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown cache backend: %s", cfg.Cache.Backend)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s", cfg.Log.Level)
	}

	enabled := map[string]bool{
		"binance": cfg.Sources.Binance.Enabled,
		"yahoo":   cfg.Sources.Yahoo.Enabled,
		"polygon": cfg.Sources.Polygon.Enabled,
	}
	anyEnabled := false
	for _, on := range enabled {
		if on {
			anyEnabled = true
		}
	}
	if !anyEnabled {
		return fmt.Errorf("at least one data source must be enabled")
	}
	for _, name := range cfg.Sources.Priority {
		on, known := enabled[strings.ToLower(name)]
		if !known {
			return fmt.Errorf("unknown source in priority list: %s", name)
		}
		if !on {
			return fmt.Errorf("source %s is in the priority list but disabled", name)
		}
	}
	if cfg.Sources.Polygon.Enabled && cfg.Sources.Polygon.APIKey == "" {
		return fmt.Errorf("polygon requires an api_key")
	}
	return nil
}
