package feed

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/salesroom/salesroom/internal/sales"
)

// CachedSource serves a Source through the snapshot cache. Concurrent misses
// share one upstream call.
type CachedSource struct {
	name    string
	source  Source
	cache   *Cache
	logger  *slog.Logger
	timeout time.Duration
	group   singleflight.Group
}

// DefaultLoadTimeout bounds one shared upstream load.
const DefaultLoadTimeout = time.Minute

// NewCachedSource wraps source under name.
func NewCachedSource(name string, source Source, cache *Cache, logger *slog.Logger) *CachedSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSource{name: name, source: source, cache: cache, logger: logger, timeout: DefaultLoadTimeout}
}

// WithLoadTimeout overrides the bound on a shared upstream load.
func (s *CachedSource) WithLoadTimeout(d time.Duration) *CachedSource {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Snapshot returns the current snapshot.
func (s *CachedSource) Snapshot(ctx context.Context) (Snapshot, error) {
	resultChan := s.group.DoChan(s.name, func() (interface{}, error) {
		// The load is shared by every waiter, so one caller giving up must not
		// cancel it for the others.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		start := time.Now()
		snap, hit, err := s.cache.Load(loadCtx, s.name, s.source)
		if err != nil {
			return Snapshot{}, err
		}
		if !hit {
			s.logger.Info("feed snapshot fetched",
				slog.String("source", s.name),
				slog.String("snapshot", snap.ID),
				slog.Int("records", len(snap.Records)),
				slog.Duration("duration", time.Since(start)))
		}
		return snap, nil
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

// Fetch implements Source.
func (s *CachedSource) Fetch(ctx context.Context) ([]sales.RawRecord, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Records, nil
}

// Refresh invalidates the cache and loads a fresh snapshot.
func (s *CachedSource) Refresh(ctx context.Context) (Snapshot, error) {
	if err := s.cache.Invalidate(ctx); err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(ctx)
}
