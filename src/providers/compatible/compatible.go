// Package compatible adapts any OpenAI-compatible chat-completions endpoint,
// OpenRouter included, to aisdk.Provider.
package compatible

import (
	"context"
	"log/slog"
	"strings"

	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/providers"
	"github.com/elee1766/gotrae/src/providers/openai"
	"github.com/elee1766/gotrae/src/transport"
)

const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	completionsPath   = "/chat/completions"
)

// toolModels are substrings of model names known to accept tools.
var toolModels = []string{
	"gpt-4",
	"gpt-3.5-turbo",
	"claude-3",
	"claude-2",
	"gemini",
	"mistral",
	"llama-3",
	"command-r",
}

// SupportsTools reports whether tools should be advertised to model.
func SupportsTools(model string) bool {
	m := strings.ToLower(model)
	for _, pattern := range toolModels {
		if strings.Contains(m, pattern) {
			return true
		}
	}
	return false
}

var _ aisdk.Provider = (*Client)(nil)

// Client talks to an OpenAI-compatible endpoint.
type Client struct {
	name    string
	http    *transport.Client
	history providers.History[openai.Message]
	logger  *slog.Logger
}

// New creates a client. The openrouter provider name defaults the base URL
// to OpenRouter; openai_compatible requires one.
func New(cfg aisdk.ModelConfig, tc transport.Config) (*Client, error) {
	if err := providers.RequireAPIKey(cfg); err != nil {
		return nil, err
	}
	name := cfg.Provider.Name
	if name == "" {
		name = aisdk.ProviderOpenAICompatible
	}
	def := ""
	if name == aisdk.ProviderOpenRouter {
		def = OpenRouterBaseURL
	}
	base := providers.BaseURL(cfg, def)
	if base == "" {
		return nil, &aisdk.ConfigError{Message: "base URL is required for " + name}
	}

	logger := tc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tc.Logger = logger
	tc.BaseURL = base
	tc.Header = providers.Header(cfg, map[string]string{
		"Authorization": "Bearer " + cfg.Provider.APIKey,
	})
	return &Client{
		name:   name,
		http:   transport.New(tc),
		logger: logger.With("component", "compatible_client", "provider", name),
	}, nil
}

// ProviderName implements aisdk.Provider.
func (c *Client) ProviderName() string {
	return c.name
}

// Content renders a lone text item as a string and anything richer as parts.
func Content(items []aisdk.ContentItem) any {
	if len(items) == 0 {
		return ""
	}
	if len(items) == 1 && items[0].Type == aisdk.ContentTypeText {
		return items[0].Text
	}
	parts := make([]openai.ContentPart, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case aisdk.ContentTypeText:
			parts = append(parts, openai.ContentPart{Type: "text", Text: item.Text})
		case aisdk.ContentTypeImage:
			if item.Image != nil {
				parts = append(parts, openai.ContentPart{Type: "image_url", ImageURL: &openai.ImageURL{URL: item.Image.DataURL()}})
			}
		}
	}
	return parts
}

// SetChatHistory implements aisdk.Provider.
func (c *Client) SetChatHistory(msgs []aisdk.Message) {
	c.history.Set(openai.ConvertMessages(msgs, Content))
}

func (c *Client) request(msgs []aisdk.Message, cfg aisdk.ModelConfig, tools []*aisdk.ChatTool, reuse, stream bool) openai.Request {
	req := openai.Request{
		Model:       cfg.Model,
		Messages:    providers.Compose(&c.history, openai.ConvertMessages(msgs, Content), reuse),
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
		Stream:      stream,
	}
	if len(tools) > 0 {
		if SupportsTools(cfg.Model) {
			req.Tools = tools
		} else {
			c.logger.Debug("model not known to support tools, omitting them", "model", cfg.Model)
		}
	}
	return req
}

// Chat implements aisdk.Provider.
func (c *Client) Chat(ctx context.Context, msgs []aisdk.Message, cfg aisdk.ModelConfig, tools []*aisdk.ChatTool, reuseHistory bool) (*aisdk.Response, error) {
	req := c.request(msgs, cfg, tools, reuseHistory, false)
	c.logger.Debug("sending chat completion request", "model", cfg.Model, "messages", len(req.Messages), "tools", len(req.Tools))

	var raw openai.Response
	if err := c.http.Do(ctx, transport.Request{Path: completionsPath, Body: req, MaxRetries: cfg.MaxRetries}, &raw); err != nil {
		return nil, err
	}
	resp, err := openai.ParseResponse(&raw)
	if err != nil {
		return nil, err
	}
	c.history.Set(append(req.Messages, openai.AssistantMessage(resp)))
	return resp, nil
}

// ChatStream implements aisdk.Provider.
func (c *Client) ChatStream(ctx context.Context, msgs []aisdk.Message, cfg aisdk.ModelConfig, tools []*aisdk.ChatTool, reuseHistory bool) (aisdk.StreamInterface, error) {
	req := c.request(msgs, cfg, tools, reuseHistory, true)
	body, err := c.http.Stream(ctx, transport.Request{Path: completionsPath, Body: req, MaxRetries: cfg.MaxRetries})
	if err != nil {
		return nil, err
	}
	return openai.NewStream(body), nil
}
