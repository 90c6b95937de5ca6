package app

import (
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/salesroom/salesroom/internal/dashboard"
	"github.com/salesroom/salesroom/internal/feed"
	"github.com/salesroom/salesroom/internal/feed/sheet"
	"github.com/salesroom/salesroom/internal/observability"
	"github.com/salesroom/salesroom/internal/platform/cache"
	"github.com/salesroom/salesroom/internal/rates"
)

// cacheGrace covers the Redis round trips around one feed fetch.
const cacheGrace = 5 * time.Second

// Dashboard bundles the dashboard service with the caches behind it.
type Dashboard struct {
	Service *dashboard.Service
	Feed    *feed.CachedSource
	Cache   *feed.Cache
	Rates   *rates.Provider
	// RateCache is exposed so the server can mirror remote invalidations.
	RateCache *cache.Versioned
}

// NewDashboard wires the sheet feed, rate provider and pipeline. A nil
// client disables caching.
func NewDashboard(cfg *Config, client *redis.Client, metrics *observability.PipelineMetrics, logger *slog.Logger) (*Dashboard, error) {
	pipeline, err := cfg.PipelineOptions()
	if err != nil {
		return nil, err
	}
	sheetClient, err := sheet.NewClient(cfg.FeedURL, cfg.FeedAPIKey, cfg.FeedTimeout)
	if err != nil {
		return nil, err
	}

	feedCache := feed.NewCache(cache.NewVersioned(client, feed.Namespace, cfg.FeedCacheTTL))
	source := feed.NewCachedSource(sheet.SourceName, sheetClient, feedCache, logger).
		WithLoadTimeout(cfg.FeedTimeout + cacheGrace)

	rateCache := cache.NewVersioned(client, rates.Namespace, cfg.RateCacheTTL)
	provider := rates.NewProvider(
		rates.NewClient(cfg.RateURL, cfg.RateTimeout, nil),
		rateCache,
		rates.ProviderConfig{Base: cfg.RateBase, Quote: cfg.RateQuote, Fallback: cfg.FallbackRate},
		logger,
	)

	service := dashboard.NewService(source, provider, sheetClient, dashboard.Config{Pipeline: pipeline}, metrics, logger)
	return &Dashboard{Service: service, Feed: source, Cache: feedCache, Rates: provider, RateCache: rateCache}, nil
}

// RedisConnOpt converts REDIS_ADDR into Asynq connection options.
func RedisConnOpt(addr string) (asynq.RedisConnOpt, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		return asynq.ParseRedisURI(addr)
	}
	return asynq.RedisClientOpt{Addr: addr}, nil
}
