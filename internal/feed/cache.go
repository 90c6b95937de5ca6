package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/salesroom/salesroom/internal/platform/cache"
	"github.com/salesroom/salesroom/internal/sales"
)

// Namespace is the Redis namespace of cached feed snapshots.
const Namespace = "feed"

// Snapshot is one fetched copy of the feed.
type Snapshot struct {
	ID        string            `json:"id"`
	Source    string            `json:"source"`
	FetchedAt time.Time         `json:"fetched_at"`
	Records   []sales.RawRecord `json:"records"`
}

// Cache stores snapshots under a versioned key.
type Cache struct {
	store *cache.Versioned
	now   func() time.Time
}

// NewCache wraps a versioned store.
func NewCache(store *cache.Versioned) *Cache {
	return &Cache{store: store, now: time.Now}
}

// Load returns the cached snapshot for source or fetches and stores a new one.
func (c *Cache) Load(ctx context.Context, name string, src Source) (Snapshot, bool, error) {
	key, err := c.store.BuildKey(ctx, "snapshot", name)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("feed: build key: %w", err)
	}
	var snap Snapshot
	hit, err := c.store.FetchJSON(ctx, key, &snap, func(ctx context.Context) (any, error) {
		records, err := src.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		if records == nil {
			records = []sales.RawRecord{}
		}
		return Snapshot{
			ID:        uuid.NewString(),
			Source:    name,
			FetchedAt: c.now().UTC(),
			Records:   records,
		}, nil
	})
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, hit, nil
}

// Invalidate drops every cached snapshot.
func (c *Cache) Invalidate(ctx context.Context) error {
	if _, err := c.store.Bump(ctx); err != nil {
		return fmt.Errorf("feed: invalidate: %w", err)
	}
	return nil
}

// Listen mirrors invalidations published by other processes.
func (c *Cache) Listen(ctx context.Context) error {
	return c.store.ListenForInvalidation(ctx)
}
