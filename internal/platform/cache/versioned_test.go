package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*Versioned, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "feed", time.Minute), mr
}

func TestFetchJSONCachesUntilBump(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return map[string]int{"calls": calls}, nil
	}

	key, err := c.BuildKey(ctx, "rows")
	if err != nil {
		t.Fatalf("build key: %v", err)
	}
	if key != "feed:rows:1" {
		t.Fatalf("unexpected key %q", key)
	}

	var first map[string]int
	hit, err := c.FetchJSON(ctx, key, &first, loader)
	if err != nil || hit {
		t.Fatalf("expected miss, got hit=%v err=%v", hit, err)
	}
	var second map[string]int
	hit, err = c.FetchJSON(ctx, key, &second, loader)
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if calls != 1 || second["calls"] != 1 {
		t.Fatalf("expected loader once, got %d", calls)
	}

	ver, err := c.Bump(ctx)
	if err != nil || ver != 2 {
		t.Fatalf("bump: ver=%d err=%v", ver, err)
	}
	key, _ = c.BuildKey(ctx, "rows")
	var third map[string]int
	if _, err := c.FetchJSON(ctx, key, &third, loader); err != nil {
		t.Fatalf("fetch after bump: %v", err)
	}
	if calls != 2 || third["calls"] != 2 {
		t.Fatalf("expected reload after bump, calls=%d", calls)
	}
}

func TestFetchJSONPropagatesLoaderError(t *testing.T) {
	c, mr := newTestCache(t)
	boom := errors.New("boom")
	var dest map[string]int
	_, err := c.FetchJSON(context.Background(), "feed:rows:1", &dest, func(context.Context) (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if mr.Exists("feed:rows:1") {
		t.Fatalf("failed loads must not be cached")
	}
}

func TestVersionedWithoutClient(t *testing.T) {
	c := NewVersioned(nil, "rates", time.Minute)
	ctx := context.Background()
	key, err := c.BuildKey(ctx, "USD", "TWD")
	if err != nil || key != "rates:USD:TWD" {
		t.Fatalf("unexpected key %q err %v", key, err)
	}
	var dest string
	hit, err := c.FetchJSON(ctx, key, &dest, func(context.Context) (any, error) { return "ok", nil })
	if err != nil || hit || dest != "ok" {
		t.Fatalf("expected direct load, got %q hit=%v err=%v", dest, hit, err)
	}
	if _, err := c.Bump(ctx); err != nil {
		t.Fatalf("bump without client: %v", err)
	}
}

func TestVersionResetsInvalidValue(t *testing.T) {
	c, mr := newTestCache(t)
	if err := mr.Set("feed:version", "-3"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ver, err := c.Version(context.Background())
	if err != nil || ver != 1 {
		t.Fatalf("expected reset to 1, got %d err %v", ver, err)
	}
}
