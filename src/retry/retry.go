// Package retry implements the exponential backoff policy used around provider
// calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/elee1766/gotrae/src/aisdk"
)

const (
	DefaultMaxRetries      = 3
	DefaultInitialInterval = time.Second
	DefaultMaxInterval     = 60 * time.Second
	DefaultMultiplier      = 2.0
	DefaultMaxElapsed      = 300 * time.Second
)

var ErrInvalidConfig = errors.New("invalid retry config")

// Config describes the backoff schedule.
type Config struct {
	MaxRetries      int           `json:"max_retries" yaml:"max_retries"`
	InitialInterval time.Duration `json:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `json:"max_interval" yaml:"max_interval"`
	Multiplier      float64       `json:"multiplier" yaml:"multiplier"`
	// MaxElapsed bounds the total time spent retrying; zero disables the bound.
	MaxElapsed time.Duration `json:"max_elapsed" yaml:"max_elapsed"`
}

// DefaultConfig returns the stock schedule: 3 retries, 1s doubling to 60s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		Multiplier:      DefaultMultiplier,
		MaxElapsed:      DefaultMaxElapsed,
	}
}

// Validate rejects schedules that cannot be honored.
func (c Config) Validate() error {
	switch {
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: max_retries must be >= 0, got %d", ErrInvalidConfig, c.MaxRetries)
	case c.InitialInterval <= 0:
		return fmt.Errorf("%w: initial_interval must be positive", ErrInvalidConfig)
	case c.MaxInterval < c.InitialInterval:
		return fmt.Errorf("%w: max_interval %v is below initial_interval %v", ErrInvalidConfig, c.MaxInterval, c.InitialInterval)
	case c.Multiplier < 1:
		return fmt.Errorf("%w: multiplier must be >= 1, got %v", ErrInvalidConfig, c.Multiplier)
	case c.MaxElapsed < 0:
		return fmt.Errorf("%w: max_elapsed must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// Delay returns the wait before the given retry (1 is the first retry):
// initial * multiplier^(retry-1), capped at MaxInterval.
func (c Config) Delay(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	d := float64(c.InitialInterval) * math.Pow(c.Multiplier, float64(retry-1))
	if d > float64(c.MaxInterval) {
		return c.MaxInterval
	}
	return time.Duration(d)
}

// Attempts is the maximum number of calls an operation receives.
func (c Config) Attempts() int {
	return c.MaxRetries + 1
}

// Policy runs operations under a Config.
type Policy struct {
	cfg      Config
	logger   *slog.Logger
	timer    func() backoff.Timer
	classify func(error) bool
}

// Option customizes a Policy.
type Option func(*Policy)

// WithLogger sets the logger used to report retries.
func WithLogger(l *slog.Logger) Option {
	return func(p *Policy) { p.logger = l }
}

// WithTimer replaces the wall-clock timer; tests use it to observe delays.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(p *Policy) { p.timer = newTimer }
}

// WithClassifier overrides aisdk.IsRetryable.
func WithClassifier(fn func(error) bool) Option {
	return func(p *Policy) { p.classify = fn }
}

// New validates cfg and builds a Policy.
func New(cfg Config, opts ...Option) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Policy{
		cfg:      cfg,
		logger:   slog.Default(),
		classify: aisdk.IsRetryable,
	}
	for _, o := range opts {
		o(p)
	}
	p.logger = p.logger.With("component", "retry")
	return p, nil
}

// Config returns the schedule of the policy.
func (p *Policy) Config() Config {
	return p.cfg
}

// WithMaxRetries returns a copy of p that allows n retries.
func (p *Policy) WithMaxRetries(n int) *Policy {
	cp := *p
	cp.cfg.MaxRetries = max(n, 0)
	return &cp
}

func (p *Policy) backOff(ctx context.Context) backoff.BackOffContext {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     p.cfg.InitialInterval,
		RandomizationFactor: 0,
		Multiplier:          p.cfg.Multiplier,
		MaxInterval:         p.cfg.MaxInterval,
		MaxElapsedTime:      p.cfg.MaxElapsed,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.cfg.MaxRetries)), ctx)
}

// Do calls op until it succeeds, fails with a non-retryable error, or the
// schedule runs out. The last error is returned as-is.
func Do[T any](ctx context.Context, p *Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		res, err := op(ctx)
		if err != nil && !p.classify(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}
	notify := func(err error, next time.Duration) {
		p.logger.Warn("retrying after error",
			"operation", name,
			"attempt", attempt,
			"max_attempts", p.cfg.Attempts(),
			"delay", next,
			"error", err,
		)
	}
	var timer backoff.Timer
	if p.timer != nil {
		timer = p.timer()
	}
	res, err := backoff.RetryNotifyWithTimerAndData(operation, p.backOff(ctx), notify, timer)
	if err != nil {
		p.logger.Debug("operation failed", "operation", name, "attempts", attempt, "error", err)
	}
	return res, err
}

// Run is Do for operations without a result.
func (p *Policy) Run(ctx context.Context, name string, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
