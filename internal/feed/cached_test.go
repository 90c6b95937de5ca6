package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesroom/salesroom/internal/platform/cache"
	"github.com/salesroom/salesroom/internal/sales"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(cache.NewVersioned(client, Namespace, time.Minute))
}

func countingSource(calls *int32, records []sales.RawRecord) Source {
	return SourceFunc(func(ctx context.Context) ([]sales.RawRecord, error) {
		atomic.AddInt32(calls, 1)
		return records, nil
	})
}

func TestCachedSourceServesSnapshotFromCache(t *testing.T) {
	var calls int32
	src := NewCachedSource("sheet", countingSource(&calls, []sales.RawRecord{
		{"Date": "2024-01-01", "Amount": 100},
	}), newTestCache(t), nil)
	ctx := context.Background()

	first, err := src.Snapshot(ctx)
	require.NoError(t, err)
	second, err := src.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "sheet", second.Source)
	require.Len(t, second.Records, 1)
	assert.Equal(t, float64(100), second.Records[0]["Amount"])
}

func TestCachedSourceRefreshReloads(t *testing.T) {
	var calls int32
	src := NewCachedSource("sheet", countingSource(&calls, nil), newTestCache(t), nil)
	ctx := context.Background()

	first, err := src.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotNil(t, first.Records)

	refreshed, err := src.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.NotEqual(t, first.ID, refreshed.ID)
}

func TestCachedSourceSharesConcurrentMisses(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	slow := SourceFunc(func(ctx context.Context) ([]sales.RawRecord, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []sales.RawRecord{{"Amount": 1}}, nil
	})
	src := NewCachedSource("sheet", slow, newTestCache(t), nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := src.Fetch(context.Background())
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCachedSourceCallerCancelKeepsSharedLoad(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	slow := SourceFunc(func(ctx context.Context) ([]sales.RawRecord, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []sales.RawRecord{{"Amount": 7}}, nil
	})
	src := NewCachedSource("sheet", slow, newTestCache(t), nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := src.Snapshot(firstCtx)
		firstErr <- err
	}()
	<-started

	secondDone := make(chan error, 1)
	var second Snapshot
	go func() {
		var err error
		second, err = src.Snapshot(context.Background())
		secondDone <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	require.NoError(t, <-secondDone)
	require.Len(t, second.Records, 1)
}

func TestCachedSourceLoadTimeout(t *testing.T) {
	blocked := SourceFunc(func(ctx context.Context) ([]sales.RawRecord, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	src := NewCachedSource("sheet", blocked, newTestCache(t), nil).WithLoadTimeout(20 * time.Millisecond)

	_, err := src.Snapshot(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCachedSourceDoesNotCacheFailures(t *testing.T) {
	var calls int32
	failing := SourceFunc(func(ctx context.Context) ([]sales.RawRecord, error) {
		atomic.AddInt32(&calls, 1)
		return nil, &UpstreamError{Source: "sheet", Message: "quota exceeded"}
	})
	src := NewCachedSource("sheet", failing, newTestCache(t), nil)

	_, err := src.Fetch(context.Background())
	require.ErrorIs(t, err, ErrUpstream)
	_, err = src.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestUpstreamErrorFormatting(t *testing.T) {
	cause := errors.New("connection refused")
	err := &UpstreamError{Source: "rates", Err: cause}
	assert.Equal(t, "feed: rates: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrUpstream)

	msg := &UpstreamError{Source: "sheet", Message: "denied"}
	assert.Equal(t, "feed: sheet: denied", msg.Error())
}
