package yahoo

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

const chartPayload = `{
  "chart": {
    "result": [{
      "meta": {"firstTradeDate": 1092922200, "regularMarketTime": 1700000000},
      "timestamp": [1699000000, 1699000060, 1699000120],
      "indicators": {
        "quote": [{
          "open":   [100.0, null, 102.0],
          "high":   [101.0, null, 103.0],
          "low":    [99.0,  null, 101.0],
          "close":  [100.5, null, 102.5],
          "volume": [1000,  null, 1200]
        }]
      }
    }],
    "error": null
  }
}`

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL}, ratelimit.New())
}

func TestFetchRangeParsesChartAndSkipsNullSlots(t *testing.T) {
	var gotPath, gotQuery string
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(chartPayload))
	})

	candles, err := src.FetchRange(context.Background(), "AAPL", "1m", 1699000000000, 1699000200000)
	require.NoError(t, err)

	assert.Equal(t, "/AAPL", gotPath)
	assert.Contains(t, gotQuery, "period1=1699000000")
	assert.Contains(t, gotQuery, "period2=1699000200")
	assert.Contains(t, gotQuery, "interval=1m")

	require.Len(t, candles, 2, "null quote slot must be skipped")
	assert.Equal(t, int64(1699000000000), candles[0].Timestamp, "timestamps are converted to milliseconds")
	assert.Equal(t, 100.5, candles[0].Close)
	assert.Equal(t, 102.5, candles[1].Close)
}

func TestFetchRangeTranslatesIntervalNotation(t *testing.T) {
	var gotQuery string
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(chartPayload))
	})

	_, err := src.FetchRange(context.Background(), "AAPL", "1h", 0, 1000)
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "interval=60m")

	_, err = src.FetchRange(context.Background(), "AAPL", "1w", 0, 1000)
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "interval=1wk")
}

func TestFetchRangeRejectsUnsupportedTimeframe(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an unsupported timeframe")
	})

	_, err := src.FetchRange(context.Background(), "AAPL", "4h", 0, 1000)
	require.Error(t, err)
	assert.ErrorIs(t, err, market.ErrUnsupportedTimeframe)
	var srcErr *market.SourceError
	assert.ErrorAs(t, err, &srcErr)
}

func TestFetchRangeSurfacesChartError(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	})

	_, err := src.FetchRange(context.Background(), "NOPE", "1d", 0, 1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No data found")
}

func TestFetchRangeRejectsMisalignedQuoteArrays(t *testing.T) {
	// Every OHLCV array must cover every timestamp, not just open.
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
		  "chart": {
		    "result": [{
		      "timestamp": [1699000000, 1699000060, 1699000120],
		      "indicators": {
		        "quote": [{
		          "open":   [100.0, 101.0, 102.0],
		          "high":   [101.0],
		          "low":    [99.0],
		          "close":  [100.5],
		          "volume": [1000]
		        }]
		      }
		    }],
		    "error": null
		  }
		}`))
	})

	_, err := src.FetchRange(context.Background(), "AAPL", "1m", 0, 1000)
	require.Error(t, err)
	var srcErr *market.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "parse", srcErr.Op)
	assert.Contains(t, err.Error(), "misaligned")
}

func TestFetchRangeRejectsNon2xx(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := src.FetchRange(context.Background(), "AAPL", "1d", 0, 1000)
	require.Error(t, err)
	var srcErr *market.SourceError
	assert.ErrorAs(t, err, &srcErr)
}

func TestProbeSymbol(t *testing.T) {
	t.Run("available with metadata", func(t *testing.T) {
		src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(chartPayload))
		})
		info, err := src.ProbeSymbol(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.True(t, info.Available)
		assert.Equal(t, int64(1092922200000), info.StartDate)
		assert.Equal(t, int64(1700000000000), info.EndDate)
		assert.NotContains(t, info.Timeframes, "4h")
		assert.Contains(t, info.Timeframes, "1d")
	})

	t.Run("failure reports unavailable with nil error", func(t *testing.T) {
		src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		info, err := src.ProbeSymbol(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.False(t, info.Available)
	})
}
