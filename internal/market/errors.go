package market

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDataAvailable is returned when every requested source failed.
	ErrNoDataAvailable = errors.New("no data available from any source")

	// ErrUnsupportedSource marks a source name with no registered gateway.
	// This is a configuration error, never retried.
	ErrUnsupportedSource = errors.New("unsupported data source")

	// ErrUnsupportedTimeframe marks a timeframe a source cannot serve.
	ErrUnsupportedTimeframe = errors.New("unsupported timeframe")
)

// SourceError wraps a transport, HTTP or parse failure local to one source.
// The aggregator tolerates these; callers of a single gateway see them as-is.
type SourceError struct {
	Source string
	Op     string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError builds a SourceError for the given source and operation.
func NewSourceError(source, op string, err error) *SourceError {
	return &SourceError{Source: source, Op: op, Err: err}
}
