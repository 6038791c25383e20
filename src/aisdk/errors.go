package aisdk

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Common error variables
var (
	// ErrUnsupportedProvider indicates the configured provider name is unknown
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrNoAPIKey indicates the API key is missing
	ErrNoAPIKey = errors.New("API key is required")

	// ErrInvalidToolCall indicates a tool call in a reply is malformed
	ErrInvalidToolCall = errors.New("invalid tool call")

	// ErrEmptyResponse indicates the API returned no choices
	ErrEmptyResponse = errors.New("empty response from API")

	// ErrStreamClosed indicates the stream has been closed
	ErrStreamClosed = errors.New("stream closed")
)

// APIError is a non-2xx reply from a provider.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	RequestID  string
	RetryAfter string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true for server errors and rate limits.
func (e *APIError) IsRetryable() bool {
	if e.StatusCode >= 500 && e.StatusCode < 600 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests
}

// IsRateLimit returns true if this is a rate limit error.
func (e *APIError) IsRateLimit() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsAuthError returns true if this is an authentication error.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// HTTPError is a transport failure: the request never produced a response.
type HTTPError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// JSONError is an encode or decode failure of a provider payload.
type JSONError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *JSONError) Error() string {
	return fmt.Sprintf("json %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *JSONError) Unwrap() error {
	return e.Err
}

// ConfigError reports an unusable model configuration.
type ConfigError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return false
	}
	var jsonErr *JSONError
	if errors.As(err, &jsonErr) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
