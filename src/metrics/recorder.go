// Package metrics records LLM, tool and step metrics.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/elee1766/gotrae/src/aisdk"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Recorder defines the interface for recording agent metrics.
type Recorder interface {
	// ObserveRequest records a completed LLM request.
	ObserveRequest(provider, model string, usage *aisdk.Usage, err error, duration time.Duration)
	// ObserveToolCall records one dispatched tool call.
	ObserveToolCall(tool string, success bool)
	// ObserveStep records a finished engine step by its final state.
	ObserveStep(state string)
}

// NopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NopRecorder struct{}

// Nop returns a recorder that discards everything.
func Nop() Recorder {
	return NopRecorder{}
}

// ObserveRequest does nothing.
func (NopRecorder) ObserveRequest(_, _ string, _ *aisdk.Usage, _ error, _ time.Duration) {}

// ObserveToolCall does nothing.
func (NopRecorder) ObserveToolCall(_ string, _ bool) {}

// ObserveStep does nothing.
func (NopRecorder) ObserveStep(_ string) {}

// ErrorType classifies errors for the status label.
func ErrorType(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *aisdk.APIError
	var cfgErr *aisdk.ConfigError
	var httpErr *aisdk.HTTPError
	var jsonErr *aisdk.JSONError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &apiErr):
		switch {
		case apiErr.IsRateLimit():
			return "rate_limit"
		case apiErr.IsAuthError():
			return "auth"
		case apiErr.StatusCode >= 500:
			return "server"
		default:
			return "client"
		}
	case errors.As(err, &cfgErr):
		return "config"
	case errors.As(err, &httpErr):
		return "network"
	case errors.As(err, &jsonErr):
		return "decode"
	default:
		return "unknown"
	}
}
