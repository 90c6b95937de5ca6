package rates

import (
	"context"
	"log/slog"
	"time"

	"github.com/salesroom/salesroom/internal/platform/cache"
	"github.com/salesroom/salesroom/internal/sales/fx"
)

// Namespace is the Redis namespace of cached quotes.
const Namespace = "rates"

// SourceFallback marks a quote that uses the configured fallback rate.
const SourceFallback = "fallback"

// Quote is a rate together with its provenance.
type Quote struct {
	Base      string    `json:"base"`
	Quote     string    `json:"quote"`
	Rate      float64   `json:"rate"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Fallback reports whether the quote is the fallback rate.
func (q Quote) Fallback() bool { return q.Source == SourceFallback }

// Fetcher fetches a live rate.
type Fetcher interface {
	Latest(ctx context.Context, base, quote string) (float64, error)
}

// Provider serves the current rate, caching live quotes and degrading to a
// fallback rate when the upstream is unavailable.
type Provider struct {
	fetcher  Fetcher
	cache    *cache.Versioned
	base     string
	quote    string
	fallback float64
	logger   *slog.Logger
	now      func() time.Time
}

// ProviderConfig configures a Provider.
type ProviderConfig struct {
	Base     string
	Quote    string
	Fallback float64
}

// NewProvider wires a fetcher with the quote cache.
func NewProvider(fetcher Fetcher, store *cache.Versioned, cfg ProviderConfig, logger *slog.Logger) *Provider {
	if cfg.Base == "" {
		cfg.Base = "USD"
	}
	if cfg.Quote == "" {
		cfg.Quote = fx.DefaultPolicy().ReportingCurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		fetcher:  fetcher,
		cache:    store,
		base:     cfg.Base,
		quote:    cfg.Quote,
		fallback: fx.EffectiveRate(cfg.Fallback),
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the provider clock for testing.
func (p *Provider) WithNow(fn func() time.Time) {
	if fn != nil {
		p.now = fn
	}
}

// Current returns the live rate, or the fallback rate when it cannot be fetched.
// It never fails.
func (p *Provider) Current(ctx context.Context) Quote {
	key, err := p.cache.BuildKey(ctx, p.base, p.quote)
	if err != nil {
		p.logger.Warn("rate cache unavailable", slog.Any("error", err))
		return p.live(ctx)
	}
	var q Quote
	if _, err := p.cache.FetchJSON(ctx, key, &q, func(ctx context.Context) (any, error) {
		return p.fetch(ctx)
	}); err != nil {
		p.logger.Warn("rate fetch failed, using fallback",
			slog.Float64("rate", p.fallback), slog.Any("error", err))
		return p.fallbackQuote()
	}
	return q
}

// Refresh drops the cached quote and fetches a new one.
func (p *Provider) Refresh(ctx context.Context) Quote {
	if _, err := p.cache.Bump(ctx); err != nil {
		p.logger.Warn("rate cache bump failed", slog.Any("error", err))
	}
	return p.Current(ctx)
}

func (p *Provider) live(ctx context.Context) Quote {
	q, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("rate fetch failed, using fallback",
			slog.Float64("rate", p.fallback), slog.Any("error", err))
		return p.fallbackQuote()
	}
	return q
}

func (p *Provider) fetch(ctx context.Context) (Quote, error) {
	rate, err := p.fetcher.Latest(ctx, p.base, p.quote)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Base: p.base, Quote: p.quote, Rate: rate, Source: SourceName, FetchedAt: p.now().UTC()}, nil
}

func (p *Provider) fallbackQuote() Quote {
	return Quote{Base: p.base, Quote: p.quote, Rate: p.fallback, Source: SourceFallback, FetchedAt: p.now().UTC()}
}
