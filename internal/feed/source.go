// Package feed loads raw sales rows from upstream sources and caches them.
package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/salesroom/salesroom/internal/sales"
)

// ErrUpstream matches every UpstreamError.
var ErrUpstream = errors.New("feed: upstream unavailable")

// Source produces the raw rows of the sales feed.
type Source interface {
	Fetch(ctx context.Context) ([]sales.RawRecord, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]sales.RawRecord, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) ([]sales.RawRecord, error) {
	return f(ctx)
}

// UpstreamError reports a failed or rejected upstream call.
type UpstreamError struct {
	Source  string
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("feed: %s: %s: %v", e.Source, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("feed: %s: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("feed: %s: %s", e.Source, e.Message)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is matches ErrUpstream.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }
