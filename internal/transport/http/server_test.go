package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratlab/internal/backtest"
	"stratlab/internal/market"
)

type stubSource struct {
	name    string
	candles []market.Candle
	err     error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchRange(ctx context.Context, symbol, timeframe string, start, end int64) ([]market.Candle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.candles, nil
}

func (s *stubSource) ProbeSymbol(ctx context.Context, symbol string) (market.SymbolInfo, error) {
	return market.SymbolInfo{Available: true, Timeframes: []string{"1m"}}, nil
}

func newTestServer(t *testing.T, sources ...market.Fetcher) *Server {
	t.Helper()
	agg := market.NewAggregator(market.NewMemoryCache(), sources...)
	svc, err := backtest.NewService(backtest.ServiceConfig{Provider: agg})
	require.NoError(t, err)
	srv, err := NewServer(Config{Aggregator: agg, Service: svc})
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func testCandles() []market.Candle {
	out := make([]market.Candle, 0, 5)
	for i, c := range []float64{100, 102, 104, 95, 97} {
		out = append(out, market.Candle{
			Timestamp: int64(i) * 60_000,
			Open:      c, High: c + 1, Low: c - 1, Close: c, Volume: 100,
		})
	}
	return out
}

func TestHandleSources(t *testing.T) {
	srv := newTestServer(t, &stubSource{name: "alpha"}, &stubSource{name: "beta"})
	rec := doJSON(t, srv, http.MethodGet, "/api/data/sources", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Sources []string `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"alpha", "beta"}, resp.Sources)
}

func TestHandleFetchReturnsCandlesAndValidation(t *testing.T) {
	srv := newTestServer(t, &stubSource{name: "alpha", candles: testCandles()})
	rec := doJSON(t, srv, http.MethodPost, "/api/data/fetch", map[string]any{
		"symbol":    "BTCUSDT",
		"timeframe": "1m",
		"start_ts":  1,
		"end_ts":    300_000,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Candles    []market.Candle `json:"candles"`
		Validation struct {
			IsValid bool `json:"is_valid"`
		} `json:"validation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Candles, 5)
	assert.True(t, resp.Validation.IsValid)
}

func TestHandleFetchValidation(t *testing.T) {
	srv := newTestServer(t, &stubSource{name: "alpha", candles: testCandles()})

	rec := doJSON(t, srv, http.MethodPost, "/api/data/fetch", map[string]any{"symbol": "X"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing required fields")

	rec = doJSON(t, srv, http.MethodPost, "/api/data/fetch", map[string]any{
		"symbol": "X", "timeframe": "1m", "start_ts": 1, "end_ts": 2,
		"sources": []string{"ghost"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown source is a client error")
}

func TestHandleFetchUpstreamFailure(t *testing.T) {
	srv := newTestServer(t, &stubSource{name: "alpha", err: fmt.Errorf("upstream down")})
	rec := doJSON(t, srv, http.MethodPost, "/api/data/fetch", map[string]any{
		"symbol": "X", "timeframe": "1m", "start_ts": 1, "end_ts": 2,
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleProbe(t *testing.T) {
	srv := newTestServer(t, &stubSource{name: "alpha"})

	rec := doJSON(t, srv, http.MethodGet, "/api/data/probe?symbol=BTCUSDT&source=alpha", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Info market.SymbolInfo `json:"info"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Info.Available)

	rec = doJSON(t, srv, http.MethodGet, "/api/data/probe?symbol=BTCUSDT", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "source is required")
}

func TestHandlePatterns(t *testing.T) {
	srv := newTestServer(t, &stubSource{name: "alpha"})
	rec := doJSON(t, srv, http.MethodPost, "/api/analysis/patterns", map[string]any{
		"candles": []market.Candle{
			{Timestamp: 1, Open: 105, High: 106, Low: 99, Close: 100, Volume: 10},
			{Timestamp: 2, Open: 99, High: 108, Low: 98, Close: 107, Volume: 10},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Patterns []struct {
			Pattern string `json:"pattern"`
		} `json:"patterns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	found := false
	for _, m := range resp.Patterns {
		if m.Pattern == "Bullish Engulfing" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestHandleRunSubmitAndJobStatus(t *testing.T) {
	srv := newTestServer(t, &stubSource{name: "alpha", candles: testCandles()})

	rec := doJSON(t, srv, http.MethodPost, "/api/backtest/runs", backtest.RunParams{
		Symbol:    "BTCUSDT",
		Timeframe: "1m",
		Sources:   []string{"alpha"},
		Config: backtest.Config{
			StartDate:      1,
			EndDate:        300_000,
			InitialCapital: 10_000,
			Parameters:     map[string]float64{"buyThreshold": 1, "stopLoss": 5},
		},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp struct {
		Job backtest.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Job.ID)

	status := doJSON(t, srv, http.MethodGet, "/api/backtest/jobs/"+resp.Job.ID, nil)
	assert.Equal(t, http.StatusOK, status.Code)
}

func TestHandleRunSubmitRejectsBadParams(t *testing.T) {
	srv := newTestServer(t, &stubSource{name: "alpha"})
	rec := doJSON(t, srv, http.MethodPost, "/api/backtest/runs", backtest.RunParams{Symbol: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleJobStatusNotFound(t *testing.T) {
	srv := newTestServer(t, &stubSource{name: "alpha"})
	rec := doJSON(t, srv, http.MethodGet, "/api/backtest/jobs/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunEndpointsWithoutResultsStore(t *testing.T) {
	srv := newTestServer(t, &stubSource{name: "alpha"})

	for _, path := range []string{"/api/backtest/runs", "/api/backtest/runs/x", "/api/backtest/runs/x/trades"} {
		rec := doJSON(t, srv, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}
