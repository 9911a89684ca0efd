package polygon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratlab/internal/market"
	"stratlab/internal/pkg/ratelimit"
)

const aggsPayload = `{
  "status": "OK",
  "resultsCount": 2,
  "results": [
    {"t": 1699000000000, "o": 100.0, "h": 101.0, "l": 99.0, "c": 100.5, "v": 1000},
    {"t": 1699003600000, "o": 100.5, "h": 102.0, "l": 100.0, "c": 101.5, "v": 1500}
  ]
}`

func newTestSource(t *testing.T, apiKey string, handler http.HandlerFunc) *Source {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL, APIKey: apiKey}, ratelimit.New())
}

func TestFetchRangeBuildsAggsRequest(t *testing.T) {
	var gotPath, gotKey string
	src := newTestSource(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		w.Write([]byte(aggsPayload))
	})

	// 2023-11-03 .. 2023-11-04 UTC
	candles, err := src.FetchRange(context.Background(), "aapl", "4h", 1698969600000, 1699056000000)
	require.NoError(t, err)

	assert.Equal(t, "/v2/aggs/ticker/AAPL/range/4/hour/2023-11-03/2023-11-04", gotPath)
	assert.Equal(t, "secret", gotKey)

	require.Len(t, candles, 2)
	assert.Equal(t, int64(1699000000000), candles[0].Timestamp)
	assert.Equal(t, 100.5, candles[0].Close)
	assert.Equal(t, 1500.0, candles[1].Volume)
}

func TestFetchRangeRejectsErrorStatus(t *testing.T) {
	src := newTestSource(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ERROR","error":"Unknown API Key"}`))
	})

	_, err := src.FetchRange(context.Background(), "AAPL", "1d", 0, 86400000)
	require.Error(t, err)
	var srcErr *market.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "parse", srcErr.Op)
	assert.Contains(t, err.Error(), "Unknown API Key")
}

func TestFetchRangeRejectsMissingResults(t *testing.T) {
	src := newTestSource(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","resultsCount":0}`))
	})

	_, err := src.FetchRange(context.Background(), "AAPL", "1d", 0, 86400000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing results")
}

func TestFetchRangeRejectsUnknownTimeframe(t *testing.T) {
	src := newTestSource(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := src.FetchRange(context.Background(), "AAPL", "2h", 0, 1000)
	require.Error(t, err)
	assert.ErrorIs(t, err, market.ErrUnsupportedTimeframe)
}

func TestProbeSymbol(t *testing.T) {
	t.Run("active ticker", func(t *testing.T) {
		src := newTestSource(t, "", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v3/reference/tickers/AAPL", r.URL.Path)
			w.Write([]byte(`{"results":{"ticker":"AAPL","active":true,"list_date":"1980-12-12"}}`))
		})
		info, err := src.ProbeSymbol(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.True(t, info.Available)
		assert.Greater(t, info.StartDate, int64(0))
		assert.Contains(t, info.Timeframes, "4h")
	})

	t.Run("inactive ticker", func(t *testing.T) {
		src := newTestSource(t, "", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"results":{"ticker":"GONE","active":false}}`))
		})
		info, err := src.ProbeSymbol(context.Background(), "GONE")
		require.NoError(t, err)
		assert.False(t, info.Available)
	})

	t.Run("transport failure reports unavailable with nil error", func(t *testing.T) {
		src := newTestSource(t, "", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		info, err := src.ProbeSymbol(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.False(t, info.Available)
	})
}
