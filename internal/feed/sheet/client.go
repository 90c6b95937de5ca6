// Package sheet talks to the spreadsheet web-app endpoint that publishes the
// sales feed and the user directory.
package sheet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/salesroom/salesroom/internal/feed"
	"github.com/salesroom/salesroom/internal/sales"
)

// SourceName identifies the sheet feed in snapshots, logs and errors.
const SourceName = "sheet"

const (
	actionGetData = "getData"
	actionLogin   = "login"
	statusSuccess = "success"

	defaultTimeout = 15 * time.Second
	maxBody        = 32 << 20
)

// ErrUnknownUser is returned when the directory rejects an email.
var ErrUnknownUser = errors.New("sheet: unknown user")

// User is a directory entry. Permissions is a field descriptor such as "all".
type User struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Permissions string `json:"permissions"`
}

type envelope struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    []sales.RawRecord `json:"data"`
	User    *User             `json:"user"`
}

// Client calls the endpoint with a shared key.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient builds a Client for endpoint.
func NewClient(endpoint, apiKey string, timeout time.Duration, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("sheet: invalid endpoint %q", endpoint)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch downloads every feed row.
func (c *Client) Fetch(ctx context.Context) ([]sales.RawRecord, error) {
	env, err := c.call(ctx, url.Values{"action": {actionGetData}})
	if err != nil {
		return nil, err
	}
	if env.Status != statusSuccess {
		return nil, &feed.UpstreamError{Source: SourceName, Message: rejection(env)}
	}
	if env.Data == nil {
		return []sales.RawRecord{}, nil
	}
	return env.Data, nil
}

// LookupUser resolves email against the directory.
func (c *Client) LookupUser(ctx context.Context, email string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return User{}, ErrUnknownUser
	}
	env, err := c.call(ctx, url.Values{"action": {actionLogin}, "email": {email}})
	if err != nil {
		return User{}, err
	}
	if env.Status != statusSuccess || env.User == nil {
		return User{}, fmt.Errorf("%w: %s", ErrUnknownUser, rejection(env))
	}
	user := *env.User
	if user.Email == "" {
		user.Email = email
	}
	return user, nil
}

func (c *Client) call(ctx context.Context, form url.Values) (envelope, error) {
	form.Set("password", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return envelope{}, fmt.Errorf("sheet: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, &feed.UpstreamError{Source: SourceName, Message: form.Get("action"), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return envelope{}, &feed.UpstreamError{
			Source:  SourceName,
			Message: fmt.Sprintf("%s: unexpected status %d", form.Get("action"), resp.StatusCode),
		}
	}
	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&env); err != nil {
		return envelope{}, &feed.UpstreamError{Source: SourceName, Message: "decode response", Err: err}
	}
	return env, nil
}

func rejection(env envelope) string {
	if env.Message != "" {
		return env.Message
	}
	if env.Status == "" {
		return "empty status"
	}
	return "status " + env.Status
}
