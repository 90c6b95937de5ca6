// Package rates fetches the reporting-currency exchange rate used to price
// foreign-currency sales.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/salesroom/salesroom/internal/feed"
)

// SourceName identifies the rate API in errors and quotes.
const SourceName = "exchangerate-api"

const (
	// DefaultURL serves the latest rates of a base currency at DefaultURL/<base>.
	DefaultURL     = "https://api.exchangerate-api.com/v4/latest"
	defaultTimeout = 5 * time.Second
	maxBody        = 1 << 20
)

type latestResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// Client reads quotes from an exchangerate-api compatible endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client. An empty baseURL uses DefaultURL.
func NewClient(baseURL string, timeout time.Duration, hc *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: baseURL, http: hc}
}

// Latest returns the price of one base unit in quote.
func (c *Client) Latest(ctx context.Context, base, quote string) (float64, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+base, nil)
	if err != nil {
		return 0, fmt.Errorf("rates: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &feed.UpstreamError{Source: SourceName, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, &feed.UpstreamError{Source: SourceName, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}
	var payload latestResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&payload); err != nil {
		return 0, &feed.UpstreamError{Source: SourceName, Message: "decode response", Err: err}
	}
	rate, ok := payload.Rates[quote]
	if !ok || rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, &feed.UpstreamError{Source: SourceName, Message: fmt.Sprintf("no usable %s rate for %s", quote, base)}
	}
	return rate, nil
}
