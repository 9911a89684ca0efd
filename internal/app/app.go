// Package app wires the configured components together and runs them.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"stratlab/internal/backtest"
	"stratlab/internal/config"
	"stratlab/internal/gateway/binance"
	"stratlab/internal/gateway/polygon"
	"stratlab/internal/gateway/yahoo"
	"stratlab/internal/logger"
	"stratlab/internal/market"
	"stratlab/internal/pkg/ratelimit"
	"stratlab/internal/store/results"
	"stratlab/internal/store/sqlite"
	httpapi "stratlab/internal/transport/http"
)

const cacheJanitorInterval = time.Hour

// App holds the constructed component graph.
type App struct {
	cfg        *config.Config
	cache      market.CandleCache
	aggregator *market.Aggregator
	service    *backtest.Service
	server     *httpapi.Server

	closers []func() error
}

// NewApp builds the full graph from configuration. Construction is explicit:
// every dependency is passed by hand so the graph is readable top to bottom.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	a := &App{cfg: cfg}

	cache, err := a.buildCache()
	if err != nil {
		return nil, err
	}
	a.cache = cache

	sources, err := buildSources(cfg.Sources)
	if err != nil {
		a.closeAll()
		return nil, err
	}
	a.aggregator = market.NewAggregator(cache, sources...)

	var store backtest.RunStore
	var resultsStore *results.Store
	if path := strings.TrimSpace(cfg.Backtest.ResultsPath); path != "" {
		resultsStore, err = results.NewStore(path)
		if err != nil {
			a.closeAll()
			return nil, fmt.Errorf("open results store: %w", err)
		}
		a.closers = append(a.closers, resultsStore.Close)
		store = resultsStore
	}

	a.service, err = backtest.NewService(backtest.ServiceConfig{
		Provider:      a.aggregator,
		Store:         store,
		MaxConcurrent: cfg.Backtest.MaxConcurrentJobs,
	})
	if err != nil {
		a.closeAll()
		return nil, err
	}

	a.server, err = httpapi.NewServer(httpapi.Config{
		Addr:       cfg.Server.Addr,
		Aggregator: a.aggregator,
		Service:    a.service,
		Results:    resultsStore,
	})
	if err != nil {
		a.closeAll()
		return nil, err
	}
	return a, nil
}

func (a *App) buildCache() (market.CandleCache, error) {
	switch a.cfg.Cache.Backend {
	case "sqlite":
		store, err := sqlite.NewCacheStore(a.cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("open cache store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		logger.Infof("[app] sqlite candle cache at %s", a.cfg.Cache.Path)
		return store, nil
	default:
		return market.NewMemoryCache(), nil
	}
}

func buildSources(cfg config.SourcesConfig) ([]market.Fetcher, error) {
	limiter := ratelimit.New()
	byName := make(map[string]market.Fetcher)

	if cfg.Binance.Enabled {
		limiter.Configure(binance.Name, time.Duration(cfg.Binance.RateLimitMs)*time.Millisecond)
		byName[binance.Name] = binance.New(binance.Config{BaseURL: cfg.Binance.BaseURL}, limiter)
	}
	if cfg.Yahoo.Enabled {
		limiter.Configure(yahoo.Name, time.Duration(cfg.Yahoo.RateLimitMs)*time.Millisecond)
		byName[yahoo.Name] = yahoo.New(yahoo.Config{BaseURL: cfg.Yahoo.BaseURL}, limiter)
	}
	if cfg.Polygon.Enabled {
		limiter.Configure(polygon.Name, time.Duration(cfg.Polygon.RateLimitMs)*time.Millisecond)
		byName[polygon.Name] = polygon.New(polygon.Config{
			BaseURL: cfg.Polygon.BaseURL,
			APIKey:  cfg.Polygon.APIKey,
		}, limiter)
	}

	// Priority list first, then any enabled source it does not mention.
	var ordered []market.Fetcher
	seen := make(map[string]bool)
	for _, name := range cfg.Priority {
		name = strings.ToLower(name)
		if src, ok := byName[name]; ok && !seen[name] {
			ordered = append(ordered, src)
			seen[name] = true
		}
	}
	for _, name := range []string{"binance", "yahoo", "polygon"} {
		if src, ok := byName[name]; ok && !seen[name] {
			ordered = append(ordered, src)
			seen[name] = true
		}
	}
	if len(ordered) == 0 {
		return nil, fmt.Errorf("no data sources enabled")
	}
	return ordered, nil
}

// Run serves until ctx is cancelled. The cache janitor evicts expired entries
// every hour so a long-lived process does not accumulate stale ranges.
func (a *App) Run(ctx context.Context) error {
	defer a.closeAll()
	a.service.SetContext(ctx)
	logger.Infof("[app] listening on %s (sources=%s)", a.cfg.Server.Addr, strings.Join(a.aggregator.Sources(), ","))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Start(ctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(cacheJanitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := a.cache.EvictExpired(); n > 0 {
					logger.Debugf("[app] evicted %d expired cache entries", n)
				}
			}
		}
	})
	return g.Wait()
}

func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warnf("[app] close: %v", err)
		}
	}
	a.closers = nil
}
