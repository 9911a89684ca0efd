// Package gateway defines the per-source fetch capability and shared HTTP
// plumbing. Each external source is one variant implementing Source; new
// sources are added as new packages, never by branching on a name string.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"stratlab/internal/market"
)

// Source is a single external data provider.
type Source interface {
	Name() string

	// FetchRange pulls candles for [start, end] (Unix ms). One request, no
	// retries; failures come back as *market.SourceError.
	FetchRange(ctx context.Context, symbol, timeframe string, start, end int64) ([]market.Candle, error)

	// ProbeSymbol is a best-effort metadata query. On any failure it reports
	// Available=false with a nil error instead of propagating.
	ProbeSymbol(ctx context.Context, symbol string) (market.SymbolInfo, error)
}

const defaultHTTPTimeout = 15 * time.Second

// NewHTTPClient returns the client gateways use for plain REST calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// GetBody issues a single GET and returns the response body on 2xx.
func GetBody(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}
