package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesroom/salesroom/internal/feed"
	"github.com/salesroom/salesroom/internal/platform/cache"
	"github.com/salesroom/salesroom/internal/sales/fx"
)

type stubFetcher struct {
	rate  float64
	err   error
	calls int32
}

func (s *stubFetcher) Latest(ctx context.Context, base, quote string) (float64, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.rate, s.err
}

func newStore(t *testing.T) *cache.Versioned {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewVersioned(client, Namespace, time.Hour)
}

func TestClientLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/latest/USD", r.URL.Path)
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"USD":1,"TWD":31.87}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/v4/latest/", time.Second, nil)
	rate, err := client.Latest(context.Background(), "usd", "twd")
	require.NoError(t, err)
	assert.Equal(t, 31.87, rate)

	_, err = client.Latest(context.Background(), "USD", "JPY")
	require.ErrorIs(t, err, feed.ErrUpstream)
}

func TestClientLatestHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, nil).Latest(context.Background(), "USD", "TWD")
	require.ErrorIs(t, err, feed.ErrUpstream)
	assert.Contains(t, err.Error(), "429")
}

func TestProviderCachesLiveQuote(t *testing.T) {
	fetcher := &stubFetcher{rate: 31.5}
	provider := NewProvider(fetcher, newStore(t), ProviderConfig{Fallback: 32.5}, nil)
	fixed := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	provider.WithNow(func() time.Time { return fixed })

	first := provider.Current(context.Background())
	second := provider.Current(context.Background())

	assert.Equal(t, 31.5, second.Rate)
	assert.Equal(t, SourceName, second.Source)
	assert.Equal(t, "USD", second.Base)
	assert.Equal(t, "TWD", second.Quote)
	assert.True(t, first.FetchedAt.Equal(fixed))
	assert.False(t, second.Fallback())
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))

	provider.Refresh(context.Background())
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.calls))
}

func TestProviderFallsBack(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("offline")}
	provider := NewProvider(fetcher, newStore(t), ProviderConfig{Fallback: 30}, nil)

	q := provider.Current(context.Background())
	assert.True(t, q.Fallback())
	assert.Equal(t, 30.0, q.Rate)

	provider.Current(context.Background())
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.calls), "fallback quotes must not be cached")
}

func TestProviderUsableFallbackRate(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("offline")}
	provider := NewProvider(fetcher, cache.NewVersioned(nil, Namespace, time.Hour), ProviderConfig{Fallback: -1}, nil)
	q := provider.Current(context.Background())
	assert.Equal(t, fx.FallbackRate, q.Rate)
}
