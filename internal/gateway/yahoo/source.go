// Package yahoo implements gateway.Source against the Yahoo Finance chart
// API. The payload is a deeply nested JSON document; gjson keeps the parser
// flat and tolerant of null quote slots.
package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"stratlab/internal/gateway"
	"stratlab/internal/logger"
	"stratlab/internal/market"
	"stratlab/internal/pkg/ratelimit"
)

const Name = "yahoo"

const defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Chart API interval notation per canonical timeframe. 4h has no Yahoo
// equivalent and is rejected.
var intervals = map[string]string{
	"1m":  "1m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "60m",
	"1d":  "1d",
	"1w":  "1wk",
}

type Config struct {
	BaseURL     string
	HTTPTimeout time.Duration
}

type Source struct {
	baseURL string
	client  *http.Client
	limiter *ratelimit.Limiter
}

func New(cfg Config, limiter *ratelimit.Limiter) *Source {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	return &Source{
		baseURL: strings.TrimRight(base, "/"),
		client:  gateway.NewHTTPClient(cfg.HTTPTimeout),
		limiter: limiter,
	}
}

func (s *Source) Name() string { return Name }

func (s *Source) FetchRange(ctx context.Context, symbol, timeframe string, start, end int64) ([]market.Candle, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, market.NewSourceError(Name, "fetch", fmt.Errorf("symbol is required"))
	}
	interval, ok := intervals[market.NormalizeTimeframe(timeframe)]
	if !ok {
		return nil, market.NewSourceError(Name, "fetch", fmt.Errorf("%w: %s", market.ErrUnsupportedTimeframe, timeframe))
	}
	if err := s.limiter.Wait(ctx, Name); err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/%s?period1=%d&period2=%d&interval=%s",
		s.baseURL, url.PathEscape(symbol), start/1000, end/1000, interval)
	body, err := gateway.GetBody(ctx, s.client, endpoint, map[string]string{
		"Accept":     "application/json",
		"User-Agent": "Mozilla/5.0 (compatible; stratlab/1.0)",
	})
	if err != nil {
		return nil, market.NewSourceError(Name, "fetch", err)
	}
	candles, err := parseChart(body)
	if err != nil {
		return nil, market.NewSourceError(Name, "parse", err)
	}
	return candles, nil
}

func parseChart(body []byte) ([]market.Candle, error) {
	if msg := gjson.GetBytes(body, "chart.error.description"); msg.Exists() {
		return nil, fmt.Errorf("chart error: %s", msg.String())
	}
	result := gjson.GetBytes(body, "chart.result.0")
	if !result.Exists() {
		return nil, fmt.Errorf("missing chart result")
	}
	timestamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")
	if len(timestamps) == 0 || !quote.Exists() {
		return nil, fmt.Errorf("missing timestamps or quote data")
	}
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()
	for _, arr := range [][]gjson.Result{opens, highs, lows, closes, volumes} {
		if len(arr) != len(timestamps) {
			return nil, fmt.Errorf("quote arrays misaligned: %d timestamps, %d/%d/%d/%d/%d ohlcv values",
				len(timestamps), len(opens), len(highs), len(lows), len(closes), len(volumes))
		}
	}
	out := make([]market.Candle, 0, len(timestamps))
	for i, ts := range timestamps {
		// Yahoo pads halted buckets with nulls; skip those slots.
		if opens[i].Type == gjson.Null || closes[i].Type == gjson.Null {
			continue
		}
		out = append(out, market.Candle{
			Timestamp: ts.Int() * 1000,
			Open:      opens[i].Float(),
			High:      highs[i].Float(),
			Low:       lows[i].Float(),
			Close:     closes[i].Float(),
			Volume:    volumes[i].Float(),
		})
	}
	return out, nil
}

// ProbeSymbol asks for a tiny recent window; a parsable response with meta
// counts as available.
func (s *Source) ProbeSymbol(ctx context.Context, symbol string) (market.SymbolInfo, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return market.SymbolInfo{}, nil
	}
	if err := s.limiter.Wait(ctx, Name); err != nil {
		return market.SymbolInfo{}, nil
	}
	endpoint := fmt.Sprintf("%s/%s?range=5d&interval=1d", s.baseURL, url.PathEscape(symbol))
	body, err := gateway.GetBody(ctx, s.client, endpoint, map[string]string{
		"Accept":     "application/json",
		"User-Agent": "Mozilla/5.0 (compatible; stratlab/1.0)",
	})
	if err != nil {
		logger.Debugf("[yahoo] probe %s failed: %v", symbol, err)
		return market.SymbolInfo{}, nil
	}
	meta := gjson.GetBytes(body, "chart.result.0.meta")
	if !meta.Exists() {
		return market.SymbolInfo{}, nil
	}
	info := market.SymbolInfo{Available: true}
	if first := meta.Get("firstTradeDate"); first.Exists() && first.Type != gjson.Null {
		info.StartDate = first.Int() * 1000
	}
	if reg := meta.Get("regularMarketTime"); reg.Exists() && reg.Type != gjson.Null {
		info.EndDate = reg.Int() * 1000
	}
	for _, tf := range market.Timeframes() {
		if _, ok := intervals[tf]; ok {
			info.Timeframes = append(info.Timeframes, tf)
		}
	}
	return info, nil
}
