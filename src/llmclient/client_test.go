package llmclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/gotrae/src/aisdk"
)

func TestNewSelectsProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		baseURL  string
		want     string
		wantErr  error
	}{
		{name: "openai", provider: "openai", want: "openai"},
		{name: "anthropic", provider: "anthropic", want: "anthropic"},
		{name: "compatible", provider: "openai_compatible", baseURL: "http://localhost:1234/v1", want: "openai_compatible"},
		{name: "openrouter", provider: "openrouter", want: "openrouter"},
		{name: "unknown", provider: "bedrock", wantErr: aisdk.ErrUnsupportedProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := aisdk.ModelConfig{
				Model:    "m",
				Provider: aisdk.ModelProvider{Name: tt.provider, APIKey: "k", BaseURL: tt.baseURL},
			}
			c, err := New(cfg, Options{})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.EqualError(t, err, "unsupported provider: bedrock")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.ProviderName())
			assert.Equal(t, "m", c.Model())
		})
	}
}

func TestNewMissingKey(t *testing.T) {
	_, err := New(aisdk.ModelConfig{Model: "m", Provider: aisdk.ModelProvider{Name: "anthropic"}}, Options{})
	var cfgErr *aisdk.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "API key is required", cfgErr.Message)
}

type recorded struct {
	provider, model string
	usage           *aisdk.Usage
	err             error
}

type fakeRecorder struct {
	requests []recorded
}

func (f *fakeRecorder) ObserveRequest(provider, model string, usage *aisdk.Usage, err error, _ time.Duration) {
	f.requests = append(f.requests, recorded{provider, model, usage, err})
}
func (f *fakeRecorder) ObserveToolCall(string, bool) {}
func (f *fakeRecorder) ObserveStep(string)           {}

func TestChatRecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"model":"gpt-4o","choices":[{"message":{"role":"assistant","content":"done"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2}}`)
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	cfg := aisdk.ModelConfig{Model: "gpt-4o", Provider: aisdk.ModelProvider{Name: "openai", APIKey: "k", BaseURL: srv.URL}}
	c, err := New(cfg, Options{Metrics: rec})
	require.NoError(t, err)

	resp, err := c.Chat(context.Background(), []aisdk.Message{aisdk.UserMessage("hi")}, cfg, nil, true)
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Text())

	require.Len(t, rec.requests, 1)
	assert.Equal(t, "openai", rec.requests[0].provider)
	assert.Equal(t, &aisdk.Usage{InputTokens: 5, OutputTokens: 2}, rec.requests[0].usage)
	assert.NoError(t, rec.requests[0].err)
}

func TestChatStreamRecordsUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, `data: {"model":"gpt-4o","choices":[{"delta":{"content":"hi"}}]}`+"\n\n")
		_, _ = io.WriteString(w, `data: {"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":3}}`+"\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	cfg := aisdk.ModelConfig{Model: "gpt-4o", Provider: aisdk.ModelProvider{Name: "openai", APIKey: "k", BaseURL: srv.URL}}
	c, err := New(cfg, Options{Metrics: rec})
	require.NoError(t, err)

	stream, err := c.ChatStream(context.Background(), []aisdk.Message{aisdk.UserMessage("hi")}, cfg, nil, true)
	require.NoError(t, err)
	assert.Empty(t, rec.requests, "observed when the stream ends")

	resp, err := aisdk.AggregateStream(stream, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Text())

	require.Len(t, rec.requests, 1)
	assert.Equal(t, &aisdk.Usage{InputTokens: 7, OutputTokens: 3}, rec.requests[0].usage)
	assert.NoError(t, rec.requests[0].err)
}

type failingProvider struct{}

func (failingProvider) SetChatHistory([]aisdk.Message) {}
func (failingProvider) Chat(context.Context, []aisdk.Message, aisdk.ModelConfig, []*aisdk.ChatTool, bool) (*aisdk.Response, error) {
	return nil, errors.New("boom")
}
func (failingProvider) ChatStream(context.Context, []aisdk.Message, aisdk.ModelConfig, []*aisdk.ChatTool, bool) (aisdk.StreamInterface, error) {
	return nil, errors.New("boom")
}
func (failingProvider) ProviderName() string { return "fake" }

func TestWrapPropagatesErrors(t *testing.T) {
	rec := &fakeRecorder{}
	c := Wrap(aisdk.ModelConfig{Model: "m"}, failingProvider{}, rec, nil)

	_, err := c.Chat(context.Background(), nil, c.Config(), nil, true)
	assert.EqualError(t, err, "boom")
	_, err = c.ChatStream(context.Background(), nil, c.Config(), nil, true)
	assert.EqualError(t, err, "boom")

	require.Len(t, rec.requests, 2)
	assert.Equal(t, "fake", rec.requests[1].provider)
	assert.Error(t, rec.requests[1].err)
}
