// Package openai adapts the OpenAI API to aisdk.Provider.
package openai

import (
	"context"
	"log/slog"

	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/providers"
	"github.com/elee1766/gotrae/src/transport"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	responsesPath  = "/responses"
)

var _ aisdk.Provider = (*Client)(nil)

// Client talks to the OpenAI responses endpoint.
type Client struct {
	http    *transport.Client
	history providers.History[Message]
	logger  *slog.Logger
}

// New creates a client for cfg. tc supplies the HTTP client, retry policy and
// logger; its base URL and headers are derived from cfg.
func New(cfg aisdk.ModelConfig, tc transport.Config) (*Client, error) {
	if err := providers.RequireAPIKey(cfg); err != nil {
		return nil, err
	}
	logger := tc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tc.Logger = logger
	tc.BaseURL = providers.BaseURL(cfg, DefaultBaseURL)
	tc.Header = providers.Header(cfg, map[string]string{
		"Authorization": "Bearer " + cfg.Provider.APIKey,
	})
	return &Client{
		http:   transport.New(tc),
		logger: logger.With("component", "openai_client"),
	}, nil
}

// ProviderName implements aisdk.Provider.
func (c *Client) ProviderName() string {
	return aisdk.ProviderOpenAI
}

// SetChatHistory implements aisdk.Provider.
func (c *Client) SetChatHistory(msgs []aisdk.Message) {
	c.history.Set(ConvertMessages(msgs, TextContent))
}

func (c *Client) request(msgs []aisdk.Message, cfg aisdk.ModelConfig, tools []*aisdk.ChatTool, reuse, stream bool) Request {
	return Request{
		Model:       cfg.Model,
		Messages:    providers.Compose(&c.history, ConvertMessages(msgs, TextContent), reuse),
		Tools:       tools,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
		Stream:      stream,
	}
}

// Chat implements aisdk.Provider.
func (c *Client) Chat(ctx context.Context, msgs []aisdk.Message, cfg aisdk.ModelConfig, tools []*aisdk.ChatTool, reuseHistory bool) (*aisdk.Response, error) {
	req := c.request(msgs, cfg, tools, reuseHistory, false)
	c.logger.Debug("sending chat request", "model", cfg.Model, "messages", len(req.Messages), "tools", len(tools))

	var raw Response
	if err := c.http.Do(ctx, transport.Request{Path: responsesPath, Body: req, MaxRetries: cfg.MaxRetries}, &raw); err != nil {
		return nil, err
	}
	resp, err := ParseResponse(&raw)
	if err != nil {
		return nil, err
	}
	c.history.Set(append(req.Messages, AssistantMessage(resp)))
	return resp, nil
}

// ChatStream implements aisdk.Provider.
func (c *Client) ChatStream(ctx context.Context, msgs []aisdk.Message, cfg aisdk.ModelConfig, tools []*aisdk.ChatTool, reuseHistory bool) (aisdk.StreamInterface, error) {
	req := c.request(msgs, cfg, tools, reuseHistory, true)
	body, err := c.http.Stream(ctx, transport.Request{Path: responsesPath, Body: req, MaxRetries: cfg.MaxRetries})
	if err != nil {
		return nil, err
	}
	return NewStream(body), nil
}
