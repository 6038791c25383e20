package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/retry"
)

func fastPolicy(t *testing.T) *retry.Policy {
	t.Helper()
	p, err := retry.New(retry.Config{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      1,
	})
	require.NoError(t, err)
	return p
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := New(Config{
		BaseURL: srv.URL + "/v1/",
		Header:  http.Header{"Authorization": {"Bearer k"}},
		Retry:   fastPolicy(t),
	})

	var out struct {
		OK bool `json:"ok"`
	}
	err := c.Do(context.Background(), Request{Path: "/chat/completions", Body: map[string]any{"model": "m"}}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.EqualValues(t, 3, calls.Load())
}

func TestDoClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("X-Request-ID", "req-1")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens: required"}}`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Retry: fastPolicy(t)})
	err := c.Do(context.Background(), Request{Path: "/messages", Body: struct{}{}}, nil)

	var apiErr *aisdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, "invalid_request_error", apiErr.Type)
	assert.Equal(t, "max_tokens: required", apiErr.Message)
	assert.Equal(t, "req-1", apiErr.RequestID)
	assert.EqualValues(t, 1, calls.Load())
}

func TestDoPerRequestRetryOverride(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":"slow down"}`)
	}))
	defer srv.Close()

	zero := 0
	c := New(Config{BaseURL: srv.URL, Retry: fastPolicy(t)})
	err := c.Do(context.Background(), Request{Path: "/responses", Body: struct{}{}, MaxRetries: &zero}, nil)

	var apiErr *aisdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsRateLimit())
	assert.Equal(t, "slow down", apiErr.Message)
	assert.Equal(t, "3", apiErr.RetryAfter)
	assert.EqualValues(t, 1, calls.Load())
}

func TestDoDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Retry: fastPolicy(t)})
	var out map[string]any
	err := c.Do(context.Background(), Request{Path: "/x", Body: struct{}{}}, &out)

	var jsonErr *aisdk.JSONError
	require.ErrorAs(t, err, &jsonErr)
	assert.False(t, aisdk.IsRetryable(err))
}

func TestStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Retry: fastPolicy(t)})
	body, err := c.Stream(context.Background(), Request{
		Path:   "/chat/completions",
		Body:   map[string]any{"stream": true},
		Header: http.Header{"X-Extra": {"yes"}},
	})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DONE]")
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		base string
		path string
		want string
	}{
		{base: "https://api.openai.com/v1", path: "/responses", want: "https://api.openai.com/v1/responses"},
		{base: "https://openrouter.ai/api/v1/", path: "/chat/completions", want: "https://openrouter.ai/api/v1/chat/completions"},
		{base: "http://localhost:8080/v1/chat/completions", path: "/chat/completions", want: "http://localhost:8080/v1/chat/completions"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, New(Config{BaseURL: tt.base}).Endpoint(tt.path))
		})
	}
}
