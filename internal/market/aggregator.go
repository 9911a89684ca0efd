package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"stratlab/internal/logger"
)

// Fetcher is the slice of the gateway capability the aggregator needs.
type Fetcher interface {
	Name() string
	FetchRange(ctx context.Context, symbol, timeframe string, start, end int64) ([]Candle, error)
	ProbeSymbol(ctx context.Context, symbol string) (SymbolInfo, error)
}

// Aggregator fans a range request out to several sources, reads and writes
// through the shared cache, and merges by timestamp with first-seen-source
// precedence.
type Aggregator struct {
	cache   CandleCache
	ordered []Fetcher
	byName  map[string]Fetcher
}

func NewAggregator(cache CandleCache, sources ...Fetcher) *Aggregator {
	a := &Aggregator{
		cache:  cache,
		byName: make(map[string]Fetcher, len(sources)),
	}
	for _, src := range sources {
		if src == nil {
			continue
		}
		name := strings.ToLower(src.Name())
		if _, dup := a.byName[name]; dup {
			continue
		}
		a.byName[name] = src
		a.ordered = append(a.ordered, src)
	}
	return a
}

// Sources lists registered source names in priority order.
func (a *Aggregator) Sources() []string {
	out := make([]string, len(a.ordered))
	for i, src := range a.ordered {
		out[i] = strings.ToLower(src.Name())
	}
	return out
}

func (a *Aggregator) lookup(name string) (Fetcher, error) {
	src, ok := a.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, name)
	}
	return src, nil
}

// FetchSeries pulls one source's candles for the range, consulting the cache
// first and writing the fetched series back on success.
func (a *Aggregator) FetchSeries(ctx context.Context, source, symbol, timeframe string, start, end int64) ([]Candle, error) {
	src, err := a.lookup(source)
	if err != nil {
		return nil, err
	}
	name := strings.ToLower(src.Name())
	if a.cache != nil {
		if candles, ok := a.cache.Get(name, symbol, timeframe, start, end); ok {
			logger.Debugf("[aggregator] cache hit %s %s %s [%d,%d]", name, symbol, timeframe, start, end)
			return candles, nil
		}
	}
	candles, err := src.FetchRange(ctx, symbol, timeframe, start, end)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		a.cache.Put(name, symbol, timeframe, start, end, candles)
	}
	return candles, nil
}

// Probe forwards a symbol-availability query to one source.
func (a *Aggregator) Probe(ctx context.Context, source, symbol string) (SymbolInfo, error) {
	src, err := a.lookup(source)
	if err != nil {
		return SymbolInfo{}, err
	}
	return src.ProbeSymbol(ctx, symbol)
}

type fetchResult struct {
	candles []Candle
	err     error
}

// FetchMerged issues the range request to every listed source concurrently,
// tolerates individual failures, and merges results by timestamp: sources are
// visited in caller priority order and a candle is kept only when its
// timestamp has not been claimed by an earlier source. At least one source
// must succeed or the call fails with ErrNoDataAvailable.
func (a *Aggregator) FetchMerged(ctx context.Context, symbol, timeframe string, start, end int64, sources []string) ([]Candle, error) {
	if len(sources) == 0 {
		sources = a.Sources()
	}
	fetchers := make([]Fetcher, len(sources))
	for i, name := range sources {
		src, err := a.lookup(name)
		if err != nil {
			return nil, err
		}
		fetchers[i] = src
	}

	results := make([]fetchResult, len(fetchers))
	var wg sync.WaitGroup
	for i, src := range fetchers {
		wg.Add(1)
		go func(i int, src Fetcher) {
			defer wg.Done()
			candles, err := a.FetchSeries(ctx, src.Name(), symbol, timeframe, start, end)
			results[i] = fetchResult{candles: candles, err: err}
		}(i, src)
	}
	wg.Wait()

	merged := make(map[int64]Candle)
	var failures []error
	succeeded := 0
	for i, res := range results {
		if res.err != nil {
			logger.Warnf("[aggregator] source %s failed for %s %s: %v", fetchers[i].Name(), symbol, timeframe, res.err)
			failures = append(failures, res.err)
			continue
		}
		succeeded++
		for _, c := range res.candles {
			if _, seen := merged[c.Timestamp]; !seen {
				merged[c.Timestamp] = c
			}
		}
	}
	if succeeded == 0 {
		return nil, errors.Join(ErrNoDataAvailable, errors.Join(failures...))
	}

	out := make([]Candle, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	SortByTimestamp(out)
	return out, nil
}
