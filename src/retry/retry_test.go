package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/gotrae/src/aisdk"
)

// recordingTimer fires immediately and remembers every requested delay.
type recordingTimer struct {
	delays *[]time.Duration
	c      chan time.Time
}

func (t *recordingTimer) Start(d time.Duration) {
	*t.delays = append(*t.delays, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time { return t.c }

func newRecordingPolicy(t *testing.T, cfg Config) (*Policy, *[]time.Duration) {
	t.Helper()
	var delays []time.Duration
	p, err := New(cfg, WithTimer(func() backoff.Timer {
		return &recordingTimer{delays: &delays}
	}))
	require.NoError(t, err)
	return p, &delays
}

func TestDoExhaustsRetries(t *testing.T) {
	p, delays := newRecordingPolicy(t, DefaultConfig())

	calls := 0
	serverErr := &aisdk.APIError{StatusCode: 503, Message: "unavailable"}
	_, err := Do(context.Background(), p, "chat", func(context.Context) (string, error) {
		calls++
		return "", serverErr
	})

	var apiErr *aisdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Same(t, serverErr, apiErr)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *delays)
}

func TestDoSucceedsAfterRetry(t *testing.T) {
	p, delays := newRecordingPolicy(t, DefaultConfig())

	calls := 0
	got, err := Do(context.Background(), p, "chat", func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, &aisdk.APIError{StatusCode: 429}
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
	assert.Len(t, *delays, 2)
}

func TestDoNonRetryablePassesThrough(t *testing.T) {
	p, delays := newRecordingPolicy(t, DefaultConfig())

	calls := 0
	authErr := &aisdk.APIError{StatusCode: 401, Message: "bad key"}
	err := p.Run(context.Background(), "chat", func(context.Context) error {
		calls++
		return authErr
	})

	var apiErr *aisdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Same(t, authErr, apiErr)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestDoZeroRetries(t *testing.T) {
	p, _ := newRecordingPolicy(t, DefaultConfig())
	p = p.WithMaxRetries(0)

	calls := 0
	err := p.Run(context.Background(), "chat", func(context.Context) error {
		calls++
		return &aisdk.HTTPError{Op: "do", Err: errors.New("connection reset")}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoDelayCap(t *testing.T) {
	cfg := Config{
		MaxRetries:      5,
		InitialInterval: 10 * time.Second,
		MaxInterval:     25 * time.Second,
		Multiplier:      2,
	}
	p, delays := newRecordingPolicy(t, cfg)

	_ = p.Run(context.Background(), "chat", func(context.Context) error {
		return &aisdk.APIError{StatusCode: 500}
	})

	want := []time.Duration{10 * time.Second, 20 * time.Second, 25 * time.Second, 25 * time.Second, 25 * time.Second}
	assert.Equal(t, want, *delays)
	for i, d := range want {
		assert.Equal(t, d, cfg.Delay(i+1), "retry %d", i+1)
	}
}

func TestDoCanceledContext(t *testing.T) {
	p, _ := newRecordingPolicy(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := p.Run(ctx, "chat", func(ctx context.Context) error {
		calls++
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "negative retries", mutate: func(c *Config) { c.MaxRetries = -1 }, wantErr: true},
		{name: "zero initial", mutate: func(c *Config) { c.InitialInterval = 0 }, wantErr: true},
		{name: "max below initial", mutate: func(c *Config) { c.MaxInterval = time.Millisecond }, wantErr: true},
		{name: "shrinking multiplier", mutate: func(c *Config) { c.Multiplier = 0.5 }, wantErr: true},
		{name: "unit multiplier", mutate: func(c *Config) { c.Multiplier = 1 }},
		{name: "negative elapsed", mutate: func(c *Config) { c.MaxElapsed = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				_, nerr := New(cfg)
				assert.Error(t, nerr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAttempts(t *testing.T) {
	assert.Equal(t, 4, DefaultConfig().Attempts())
	assert.Equal(t, time.Duration(0), DefaultConfig().Delay(0))
}
