package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/salesroom/salesroom/internal/sales"
	"github.com/salesroom/salesroom/internal/sales/fx"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`

	FeedURL      string        `envconfig:"FEED_URL" required:"true"`
	FeedAPIKey   string        `envconfig:"FEED_API_KEY" required:"true"`
	FeedTimeout  time.Duration `envconfig:"FEED_TIMEOUT" default:"20s"`
	FeedCacheTTL time.Duration `envconfig:"FEED_CACHE_TTL" default:"5m"`

	RateURL      string        `envconfig:"RATE_URL" default:"https://api.exchangerate-api.com/v4/latest"`
	RateBase     string        `envconfig:"RATE_BASE" default:"USD"`
	RateQuote    string        `envconfig:"RATE_QUOTE" default:"TWD"`
	RateTimeout  time.Duration `envconfig:"RATE_TIMEOUT" default:"5s"`
	RateCacheTTL time.Duration `envconfig:"RATE_CACHE_TTL" default:"1h"`
	FallbackRate float64       `envconfig:"FALLBACK_RATE" default:"32.5"`

	ReportTimezone string   `envconfig:"REPORT_TIMEZONE" default:"Asia/Taipei"`
	VIPPattern     string   `envconfig:"VIP_PATTERN" default:"iherb"`
	VIPLabel       string   `envconfig:"VIP_LABEL" default:"Iherb (獨立客戶)"`
	MaskableFields []string `envconfig:"MASKABLE_FIELDS" default:"amount"`

	RefreshCron       string `envconfig:"REFRESH_CRON" default:"*/15 * * * *"`
	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"2"`
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	if c.FeedURL == "" {
		return errors.New("feed url must be provided")
	}
	if c.FeedAPIKey == "" {
		return errors.New("feed api key must be provided")
	}
	if c.FallbackRate <= 0 {
		return fmt.Errorf("fallback rate must be positive, got %v", c.FallbackRate)
	}
	if c.RateBase == "" || c.RateQuote == "" {
		return errors.New("rate base and quote must be provided")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// Location resolves REPORT_TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	name := c.ReportTimezone
	if name == "" {
		name = sales.DefaultLocation
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("report timezone %q: %w", name, err)
	}
	return loc, nil
}

// PipelineOptions returns the per-deployment pipeline settings. Rate, filter
// and permissions are filled in per request.
func (c *Config) PipelineOptions() (sales.Options, error) {
	loc, err := c.Location()
	if err != nil {
		return sales.Options{}, err
	}
	opts := sales.DefaultOptions()
	opts.Rate = c.FallbackRate
	opts.Location = loc
	opts.VIP = sales.VIPPolicy{Pattern: c.VIPPattern, Label: c.VIPLabel}
	opts.Mask = sales.ParseMaskPolicy(c.MaskableFields)
	opts.Currency = fx.DefaultPolicy()
	return opts, nil
}
