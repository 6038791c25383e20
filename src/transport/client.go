// Package transport is the JSON-over-HTTP layer shared by the provider
// adapters. It owns request construction, retries and error decoding.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/retry"
)

const defaultTimeout = 10 * time.Minute

// Config holds configuration for a Client.
type Config struct {
	BaseURL string
	// Header is sent with every request.
	Header     http.Header
	Timeout    time.Duration
	HTTPClient *http.Client
	Retry      *retry.Policy
	Logger     *slog.Logger
}

// Request is a single POST to the provider.
type Request struct {
	// Path is appended to the base URL unless the base already ends with it.
	Path   string
	Body   any
	Header http.Header
	// MaxRetries overrides the retry policy when set.
	MaxRetries *int
}

// Client posts JSON to one provider endpoint.
type Client struct {
	baseURL    string
	header     http.Header
	httpClient *http.Client
	streamHTTP *http.Client
	policy     *retry.Policy
	logger     *slog.Logger
}

// New creates a client. A nil retry policy uses retry.DefaultConfig.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "transport")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	// Streams are bounded by the caller's context, not a fixed timeout.
	streamHTTP := *httpClient
	streamHTTP.Timeout = 0

	policy := cfg.Retry
	if policy == nil {
		policy, _ = retry.New(retry.DefaultConfig(), retry.WithLogger(logger))
	}

	header := cfg.Header.Clone()
	if header == nil {
		header = http.Header{}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		header:     header,
		httpClient: httpClient,
		streamHTTP: &streamHTTP,
		policy:     policy,
		logger:     logger,
	}
}

// Endpoint resolves path against the base URL.
func (c *Client) Endpoint(path string) string {
	if path == "" || strings.HasSuffix(c.baseURL, path) {
		return c.baseURL
	}
	return c.baseURL + path
}

// Do posts req and decodes a 2xx body into out.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	body, err := json.Marshal(req.Body)
	if err != nil {
		return &aisdk.JSONError{Op: "encode request", Err: err}
	}
	logger := c.logger.With("url", c.Endpoint(req.Path))
	if logger.Enabled(ctx, slog.LevelDebug) {
		logger.Debug("sending request", "body", string(body))
	}

	raw, err := retry.Do(ctx, c.policyFor(req), "POST "+req.Path, func(ctx context.Context) ([]byte, error) {
		resp, err := c.send(ctx, c.httpClient, req, body)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &aisdk.HTTPError{Op: "read body", Err: err}
		}
		return data, nil
	})
	if err != nil {
		logger.Error("request failed", "error", err)
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		logger.Error("failed to decode response", "error", err)
		return &aisdk.JSONError{Op: "decode response", Err: err}
	}
	return nil
}

// Stream posts req and returns the open body of a 2xx reply. Only opening
// the stream is retried.
func (c *Client) Stream(ctx context.Context, req Request) (io.ReadCloser, error) {
	body, err := json.Marshal(req.Body)
	if err != nil {
		return nil, &aisdk.JSONError{Op: "encode request", Err: err}
	}
	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Accept", "text/event-stream")
	req.Header = header

	resp, err := retry.Do(ctx, c.policyFor(req), "POST "+req.Path+" (stream)", func(ctx context.Context) (*http.Response, error) {
		return c.send(ctx, c.streamHTTP, req, body)
	})
	if err != nil {
		c.logger.Error("stream request failed", "url", c.Endpoint(req.Path), "error", err)
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) policyFor(req Request) *retry.Policy {
	if req.MaxRetries != nil {
		return c.policy.WithMaxRetries(*req.MaxRetries)
	}
	return c.policy
}

// send performs one attempt; non-2xx replies are turned into *aisdk.APIError.
func (c *Client) send(ctx context.Context, hc *http.Client, req Request, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(req.Path), bytes.NewReader(body))
	if err != nil {
		return nil, &aisdk.HTTPError{Op: "create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, vs := range c.header {
		httpReq.Header[k] = vs
	}
	for k, vs := range req.Header {
		httpReq.Header[k] = vs
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, &aisdk.HTTPError{Op: "do", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, handleError(resp)
	}
	return resp, nil
}

// handleError processes error responses from the API. Both the OpenAI and the
// Anthropic shapes keep the details under "error".
func handleError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &aisdk.HTTPError{Op: "read error body", Err: err}
	}

	apiErr := &aisdk.APIError{
		StatusCode: resp.StatusCode,
		RequestID:  firstHeader(resp.Header, "X-Request-ID", "Request-Id"),
		RetryAfter: resp.Header.Get("Retry-After"),
	}

	errField := gjson.GetBytes(body, "error")
	switch {
	case !gjson.ValidBytes(body):
		apiErr.Message = strings.TrimSpace(string(body))
	case errField.IsObject():
		apiErr.Message = errField.Get("message").String()
		apiErr.Type = errField.Get("type").String()
		if apiErr.Type == "" {
			apiErr.Type = errField.Get("code").String()
		}
	case errField.Type == gjson.String:
		apiErr.Message = errField.String()
	default:
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func firstHeader(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// String describes the client for logs.
func (c *Client) String() string {
	return fmt.Sprintf("transport(%s)", c.baseURL)
}
