package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/config"
	"github.com/elee1766/gotrae/src/executor"
	"github.com/elee1766/gotrae/src/retry"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"cancelled", fmt.Errorf("execution cancelled: %w", context.Canceled), ExitInterrupted},
		{"deadline", context.DeadlineExceeded, ExitTimeout},
		{"incomplete", ErrTaskIncomplete, ExitIncomplete},
		{"no api key", fmt.Errorf("openai: %w", aisdk.ErrNoAPIKey), ExitAuth},
		{"unauthorized", &aisdk.APIError{StatusCode: 401}, ExitAuth},
		{"rate limited", &aisdk.APIError{StatusCode: 429}, ExitError},
		{"validation", fmt.Errorf("invalid configuration: %w", config.ValidationError{Field: "Config.DefaultProvider"}), ExitConfig},
		{"model config", &aisdk.ConfigError{Message: "no model"}, ExitConfig},
		{"unsupported provider", aisdk.ErrUnsupportedProvider, ExitConfig},
		{"retry config", fmt.Errorf("%w: bad", retry.ErrInvalidConfig), ExitConfig},
		{"no task", executor.ErrTaskRequired, ExitUsage},
		{"permission", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, ExitPermission},
		{"transport", &aisdk.HTTPError{Op: "do", Err: errors.New("connection refused")}, ExitNetwork},
		{"other", errors.New("boom"), ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestErrorHandlerPrints(t *testing.T) {
	var buf bytes.Buffer
	h := NewErrorHandler(&buf)

	assert.Equal(t, ExitSuccess, h.Handle(nil))
	assert.Empty(t, buf.String())

	assert.Equal(t, ExitError, h.Handle(errors.New("boom")))
	assert.Equal(t, "Error: boom\n", buf.String())

	buf.Reset()
	assert.Equal(t, ExitInterrupted, h.Handle(context.Canceled))
	assert.Empty(t, buf.String())
}
