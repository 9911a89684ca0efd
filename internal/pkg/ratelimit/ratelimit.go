// Package ratelimit enforces a minimum spacing between outbound requests to
// one external source. State is per source; sources never interact.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Limiter struct {
	mu      sync.Mutex
	sources map[string]*rate.Limiter
}

func New() *Limiter {
	return &Limiter{sources: make(map[string]*rate.Limiter)}
}

// Configure installs or replaces the minimum interval for a source.
// A non-positive interval removes the restriction.
func (l *Limiter) Configure(source string, interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if interval <= 0 {
		delete(l.sources, source)
		return
	}
	l.sources[source] = rate.NewLimiter(rate.Every(interval), 1)
}

// Wait blocks until the source's interval has elapsed since the last granted
// request, then records the grant. Unconfigured sources pass immediately.
// The only error is context cancellation.
func (l *Limiter) Wait(ctx context.Context, source string) error {
	l.mu.Lock()
	lim := l.sources[source]
	l.mu.Unlock()
	if lim == nil {
		return ctx.Err()
	}
	return lim.Wait(ctx)
}
