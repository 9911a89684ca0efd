// Package binance implements the gateway.Source capability on top of the
// official spot REST API via the go-binance SDK.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	gobinance "github.com/adshao/go-binance/v2"

	"stratlab/internal/logger"
	"stratlab/internal/market"
	"stratlab/internal/pkg/ratelimit"
)

const Name = "binance"

const maxKlineLimit = 1000

type Config struct {
	BaseURL     string
	HTTPTimeout time.Duration
}

type Source struct {
	client  *gobinance.Client
	limiter *ratelimit.Limiter
}

func New(cfg Config, limiter *ratelimit.Limiter) *Source {
	client := gobinance.NewClient("", "")
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		client.BaseURL = base
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	return &Source{client: client, limiter: limiter}
}

func (s *Source) Name() string { return Name }

func (s *Source) FetchRange(ctx context.Context, symbol, timeframe string, start, end int64) ([]market.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, market.NewSourceError(Name, "fetch", fmt.Errorf("symbol is required"))
	}
	tf := market.NormalizeTimeframe(timeframe)
	if _, ok := market.TimeframeDuration(tf); !ok {
		return nil, market.NewSourceError(Name, "fetch", fmt.Errorf("%w: %s", market.ErrUnsupportedTimeframe, timeframe))
	}
	if err := s.limiter.Wait(ctx, Name); err != nil {
		return nil, err
	}
	kls, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(tf).
		StartTime(start).
		EndTime(end).
		Limit(maxKlineLimit).
		Do(ctx)
	if err != nil {
		return nil, market.NewSourceError(Name, "fetch", err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			Timestamp: kl.OpenTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	return out, nil
}

func (s *Source) ProbeSymbol(ctx context.Context, symbol string) (market.SymbolInfo, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return market.SymbolInfo{}, nil
	}
	if err := s.limiter.Wait(ctx, Name); err != nil {
		return market.SymbolInfo{}, nil
	}
	info, err := s.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		logger.Debugf("[binance] probe %s failed: %v", symbol, err)
		return market.SymbolInfo{}, nil
	}
	for _, sym := range info.Symbols {
		if strings.EqualFold(sym.Symbol, symbol) && sym.Status == "TRADING" {
			return market.SymbolInfo{
				Available:  true,
				Timeframes: market.Timeframes(),
			}, nil
		}
	}
	return market.SymbolInfo{}, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(v, 64)
	return f
}
