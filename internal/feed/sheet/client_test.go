package sheet

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesroom/salesroom/internal/feed"
)

func newServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, "secret", time.Second)
	require.NoError(t, err)
	return client
}

func TestFetchPostsActionAndKey(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "getData", r.PostForm.Get("action"))
		assert.Equal(t, "secret", r.PostForm.Get("password"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":[{"日期":"2024-01-02","金額":"1,200","品牌":"Acme"}]}`))
	})

	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1,200", records[0]["金額"])
}

func TestFetchRejectedStatus(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"invalid key"}`))
	})

	_, err := client.Fetch(context.Background())
	require.ErrorIs(t, err, feed.ErrUpstream)
	var upstream *feed.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, "invalid key", upstream.Message)
}

func TestFetchHTTPFailure(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	_, err := client.Fetch(context.Background())
	require.ErrorIs(t, err, feed.ErrUpstream)
	assert.Contains(t, err.Error(), "502")
}

func TestFetchMalformedBody(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>login required</html>`))
	})
	_, err := client.Fetch(context.Background())
	require.ErrorIs(t, err, feed.ErrUpstream)
}

func TestFetchEmptyData(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})
	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestLookupUser(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "login", r.PostForm.Get("action"))
		if r.PostForm.Get("email") != "mia@example.com" {
			_, _ = w.Write([]byte(`{"status":"error","message":"not registered"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","user":{"email":"mia@example.com","name":"Mia","permissions":"date,agentName"}}`))
	})

	user, err := client.LookupUser(context.Background(), " mia@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "Mia", user.Name)
	assert.Equal(t, "date,agentName", user.Permissions)

	_, err = client.LookupUser(context.Background(), "leo@example.com")
	require.ErrorIs(t, err, ErrUnknownUser)
	assert.Contains(t, err.Error(), "not registered")

	_, err = client.LookupUser(context.Background(), "")
	require.ErrorIs(t, err, ErrUnknownUser)
}

func TestNewClientRejectsRelativeEndpoint(t *testing.T) {
	_, err := NewClient("/exec", "k", 0)
	require.Error(t, err)
}
