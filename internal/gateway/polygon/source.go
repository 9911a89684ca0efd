// Package polygon implements gateway.Source against the Polygon.io
// aggregates API. Requests carry the API key in the X-API-Key header.
package polygon

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

const Name = "polygon"

const defaultBaseURL = "https://api.polygon.io"

type span struct {
	multiplier int
	timespan   string
}

var spans = map[string]span{
	"1m":  {1, "minute"},
	"5m":  {5, "minute"},
	"15m": {15, "minute"},
	"30m": {30, "minute"},
	"1h":  {1, "hour"},
	"4h":  {4, "hour"},
	"1d":  {1, "day"},
	"1w":  {1, "week"},
}

type Config struct {
	BaseURL     string
	APIKey      string
	HTTPTimeout time.Duration
}

type Source struct {
	baseURL string
	apiKey  string
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
		apiKey:  strings.TrimSpace(cfg.APIKey),
		client:  gateway.NewHTTPClient(cfg.HTTPTimeout),
		limiter: limiter,
	}
}

func (s *Source) Name() string { return Name }

func (s *Source) headers() map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if s.apiKey != "" {
		h["X-API-Key"] = s.apiKey
	}
	return h
}

func (s *Source) FetchRange(ctx context.Context, symbol, timeframe string, start, end int64) ([]market.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, market.NewSourceError(Name, "fetch", fmt.Errorf("symbol is required"))
	}
	sp, ok := spans[market.NormalizeTimeframe(timeframe)]
	if !ok {
		return nil, market.NewSourceError(Name, "fetch", fmt.Errorf("%w: %s", market.ErrUnsupportedTimeframe, timeframe))
	}
	if err := s.limiter.Wait(ctx, Name); err != nil {
		return nil, err
	}
	from := time.UnixMilli(start).UTC().Format("2006-01-02")
	to := time.UnixMilli(end).UTC().Format("2006-01-02")
	endpoint := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/%d/%s/%s/%s?adjusted=false&sort=asc&limit=50000",
		s.baseURL, url.PathEscape(symbol), sp.multiplier, sp.timespan, from, to)
	body, err := gateway.GetBody(ctx, s.client, endpoint, s.headers())
	if err != nil {
		return nil, market.NewSourceError(Name, "fetch", err)
	}
	candles, err := parseAggs(body)
	if err != nil {
		return nil, market.NewSourceError(Name, "parse", err)
	}
	return candles, nil
}

func parseAggs(body []byte) ([]market.Candle, error) {
	status := gjson.GetBytes(body, "status").String()
	if status != "" && status != "OK" && status != "DELAYED" {
		return nil, fmt.Errorf("aggs status %s: %s", status, gjson.GetBytes(body, "error").String())
	}
	results := gjson.GetBytes(body, "results")
	if !results.Exists() {
		return nil, fmt.Errorf("missing results array")
	}
	out := make([]market.Candle, 0, int(gjson.GetBytes(body, "resultsCount").Int()))
	for _, row := range results.Array() {
		out = append(out, market.Candle{
			Timestamp: row.Get("t").Int(),
			Open:      row.Get("o").Float(),
			High:      row.Get("h").Float(),
			Low:       row.Get("l").Float(),
			Close:     row.Get("c").Float(),
			Volume:    row.Get("v").Float(),
		})
	}
	return out, nil
}

// ProbeSymbol queries the v3 reference endpoint for the ticker.
func (s *Source) ProbeSymbol(ctx context.Context, symbol string) (market.SymbolInfo, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return market.SymbolInfo{}, nil
	}
	if err := s.limiter.Wait(ctx, Name); err != nil {
		return market.SymbolInfo{}, nil
	}
	endpoint := fmt.Sprintf("%s/v3/reference/tickers/%s", s.baseURL, url.PathEscape(symbol))
	body, err := gateway.GetBody(ctx, s.client, endpoint, s.headers())
	if err != nil {
		logger.Debugf("[polygon] probe %s failed: %v", symbol, err)
		return market.SymbolInfo{}, nil
	}
	results := gjson.GetBytes(body, "results")
	if !results.Exists() || !results.Get("active").Bool() {
		return market.SymbolInfo{}, nil
	}
	info := market.SymbolInfo{Available: true}
	if listed := results.Get("list_date"); listed.Exists() {
		if t, err := time.Parse("2006-01-02", listed.String()); err == nil {
			info.StartDate = t.UnixMilli()
		}
	}
	for _, tf := range market.Timeframes() {
		if _, ok := spans[tf]; ok {
			info.Timeframes = append(info.Timeframes, tf)
		}
	}
	return info, nil
}
