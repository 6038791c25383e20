// Package anthropic adapts the Anthropic messages API to aisdk.Provider.
package anthropic

import (
	"context"
	"log/slog"
	"sync"

	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/providers"
	"github.com/elee1766/gotrae/src/sse"
	"github.com/elee1766/gotrae/src/transport"
)

const (
	DefaultBaseURL    = "https://api.anthropic.com/v1"
	DefaultAPIVersion = "2023-06-01"
	DefaultMaxTokens  = 4096
	messagesPath      = "/messages"
)

var _ aisdk.Provider = (*Client)(nil)

// Client talks to the messages endpoint.
type Client struct {
	http    *transport.Client
	history providers.History[Message]
	logger  *slog.Logger

	mu     sync.Mutex
	system string
}

// New creates a client for cfg.
func New(cfg aisdk.ModelConfig, tc transport.Config) (*Client, error) {
	if err := providers.RequireAPIKey(cfg); err != nil {
		return nil, err
	}
	version := cfg.Provider.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	logger := tc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tc.Logger = logger
	tc.BaseURL = providers.BaseURL(cfg, DefaultBaseURL)
	tc.Header = providers.Header(cfg, map[string]string{
		"x-api-key":         cfg.Provider.APIKey,
		"anthropic-version": version,
	})
	return &Client{
		http:   transport.New(tc),
		logger: logger.With("component", "anthropic_client"),
	}, nil
}

// ProviderName implements aisdk.Provider.
func (c *Client) ProviderName() string {
	return aisdk.ProviderAnthropic
}

func (c *Client) rememberSystem(msgs []aisdk.Message) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if text, ok := SystemPrompt(msgs); ok {
		c.system = text
	}
	return c.system
}

// SetChatHistory implements aisdk.Provider.
func (c *Client) SetChatHistory(msgs []aisdk.Message) {
	c.rememberSystem(msgs)
	c.history.Set(ConvertMessages(msgs))
}

func (c *Client) request(msgs []aisdk.Message, cfg aisdk.ModelConfig, tools []*aisdk.ChatTool, reuse, stream bool) Request {
	return Request{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokensOr(DefaultMaxTokens),
		Messages:    providers.Compose(&c.history, ConvertMessages(msgs), reuse),
		System:      c.rememberSystem(msgs),
		Tools:       ConvertTools(tools),
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		Stream:      stream,
	}
}

// Chat implements aisdk.Provider.
func (c *Client) Chat(ctx context.Context, msgs []aisdk.Message, cfg aisdk.ModelConfig, tools []*aisdk.ChatTool, reuseHistory bool) (*aisdk.Response, error) {
	req := c.request(msgs, cfg, tools, reuseHistory, false)
	c.logger.Debug("sending messages request", "model", cfg.Model, "messages", len(req.Messages), "tools", len(req.Tools))

	var raw Response
	if err := c.http.Do(ctx, transport.Request{Path: messagesPath, Body: req, MaxRetries: cfg.MaxRetries}, &raw); err != nil {
		return nil, err
	}
	resp := ParseResponse(&raw)
	c.history.Set(append(req.Messages, AssistantMessage(resp)))
	return resp, nil
}

// ChatStream implements aisdk.Provider.
func (c *Client) ChatStream(ctx context.Context, msgs []aisdk.Message, cfg aisdk.ModelConfig, tools []*aisdk.ChatTool, reuseHistory bool) (aisdk.StreamInterface, error) {
	req := c.request(msgs, cfg, tools, reuseHistory, true)
	body, err := c.http.Stream(ctx, transport.Request{Path: messagesPath, Body: req, MaxRetries: cfg.MaxRetries})
	if err != nil {
		return nil, err
	}
	return aisdk.NewDecodingStream(sse.NewDecoder(body), NewStreamDecoder(), body), nil
}
