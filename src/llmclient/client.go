// Package llmclient selects a provider adapter from a model configuration and
// wraps it with logging and metrics.
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/metrics"
	"github.com/elee1766/gotrae/src/providers/anthropic"
	"github.com/elee1766/gotrae/src/providers/compatible"
	"github.com/elee1766/gotrae/src/providers/openai"
	"github.com/elee1766/gotrae/src/retry"
	"github.com/elee1766/gotrae/src/transport"
)

// Options carries the collaborators shared by every adapter.
type Options struct {
	Logger     *slog.Logger
	HTTPClient *http.Client
	Retry      *retry.Policy
	Metrics    metrics.Recorder
}

// Client is the provider-neutral entry point used by the engine.
type Client struct {
	cfg      aisdk.ModelConfig
	provider aisdk.Provider
	metrics  metrics.Recorder
	logger   *slog.Logger
}

var _ aisdk.Provider = (*Client)(nil)

// New builds the adapter named by cfg.Provider.Name.
func New(cfg aisdk.ModelConfig, opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Nop()
	}
	tc := transport.Config{
		HTTPClient: opts.HTTPClient,
		Retry:      opts.Retry,
		Logger:     logger,
	}

	var (
		provider aisdk.Provider
		err      error
	)
	switch cfg.Provider.Name {
	case aisdk.ProviderOpenAI:
		provider, err = openai.New(cfg, tc)
	case aisdk.ProviderAnthropic:
		provider, err = anthropic.New(cfg, tc)
	case aisdk.ProviderOpenAICompatible, aisdk.ProviderOpenRouter:
		provider, err = compatible.New(cfg, tc)
	default:
		return nil, fmt.Errorf("%w: %s", aisdk.ErrUnsupportedProvider, cfg.Provider.Name)
	}
	if err != nil {
		return nil, err
	}
	return Wrap(cfg, provider, rec, logger), nil
}

// Wrap puts an existing provider behind the facade.
func Wrap(cfg aisdk.ModelConfig, provider aisdk.Provider, rec metrics.Recorder, logger *slog.Logger) *Client {
	if rec == nil {
		rec = metrics.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:      cfg,
		provider: provider,
		metrics:  rec,
		logger:   logger.With("component", "llm_client", "provider", provider.ProviderName(), "model", cfg.Model),
	}
}

// Config returns the model configuration the client was built with.
func (c *Client) Config() aisdk.ModelConfig {
	return c.cfg
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// ProviderName implements aisdk.Provider.
func (c *Client) ProviderName() string {
	return c.provider.ProviderName()
}

// SetChatHistory implements aisdk.Provider.
func (c *Client) SetChatHistory(msgs []aisdk.Message) {
	c.provider.SetChatHistory(msgs)
}

// Chat implements aisdk.Provider.
func (c *Client) Chat(ctx context.Context, msgs []aisdk.Message, cfg aisdk.ModelConfig, tools []*aisdk.ChatTool, reuseHistory bool) (*aisdk.Response, error) {
	start := time.Now()
	resp, err := c.provider.Chat(ctx, msgs, cfg, tools, reuseHistory)
	duration := time.Since(start)

	var usage *aisdk.Usage
	if resp != nil {
		usage = resp.Usage
	}
	c.metrics.ObserveRequest(c.ProviderName(), cfg.Model, usage, err, duration)
	if err != nil {
		c.logger.Warn("chat request failed", "error", err, "duration", duration)
		return nil, err
	}
	c.logger.Debug("chat request complete",
		"duration", duration,
		"finish_reason", resp.FinishReason,
		"tool_calls", len(resp.ToolCalls),
		"input_tokens", usageField(usage, func(u *aisdk.Usage) int { return u.InputTokens }),
		"output_tokens", usageField(usage, func(u *aisdk.Usage) int { return u.OutputTokens }),
	)
	return resp, nil
}

// ChatStream implements aisdk.Provider. The request is observed once the
// stream ends, with the usage it reported.
func (c *Client) ChatStream(ctx context.Context, msgs []aisdk.Message, cfg aisdk.ModelConfig, tools []*aisdk.ChatTool, reuseHistory bool) (aisdk.StreamInterface, error) {
	start := time.Now()
	stream, err := c.provider.ChatStream(ctx, msgs, cfg, tools, reuseHistory)
	if err != nil {
		c.metrics.ObserveRequest(c.ProviderName(), cfg.Model, nil, err, time.Since(start))
		c.logger.Warn("stream request failed", "error", err)
		return nil, err
	}
	return &observedStream{
		StreamInterface: stream,
		observe: func(usage *aisdk.Usage, err error) {
			c.metrics.ObserveRequest(c.ProviderName(), cfg.Model, usage, err, time.Since(start))
		},
		usage: aisdk.NewStreamAggregator(),
	}, nil
}

// observedStream reports the usage of a stream when it ends or is closed.
type observedStream struct {
	aisdk.StreamInterface
	observe func(*aisdk.Usage, error)
	usage   *aisdk.StreamAggregator
	once    sync.Once
}

func (s *observedStream) Read() (*aisdk.StreamChunk, error) {
	chunk, err := s.StreamInterface.Read()
	switch {
	case errors.Is(err, io.EOF):
		s.done(nil)
	case err != nil:
		s.done(err)
	case chunk != nil && chunk.Usage != nil:
		s.usage.AddChunk(&aisdk.StreamChunk{Usage: chunk.Usage})
	}
	return chunk, err
}

func (s *observedStream) Close() error {
	s.done(nil)
	return s.StreamInterface.Close()
}

func (s *observedStream) done(err error) {
	s.once.Do(func() { s.observe(s.usage.Usage, err) })
}

func usageField(u *aisdk.Usage, get func(*aisdk.Usage) int) int {
	if u == nil {
		return 0
	}
	return get(u)
}
