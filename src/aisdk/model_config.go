package aisdk

// Provider names understood by the client facade.
const (
	ProviderOpenAI           = "openai"
	ProviderAnthropic        = "anthropic"
	ProviderOpenAICompatible = "openai_compatible"
	ProviderOpenRouter       = "openrouter"
)

// ModelProvider identifies the backend a model is served from.
type ModelProvider struct {
	Name    string `json:"name"`
	APIKey  string `json:"-"`
	BaseURL string `json:"base_url,omitempty"`
	// APIVersion is sent as anthropic-version for the anthropic provider.
	APIVersion string `json:"api_version,omitempty"`
}

// ModelConfig is the immutable set of parameters used for every model call.
type ModelConfig struct {
	Model         string            `json:"model"`
	Provider      ModelProvider     `json:"model_provider"`
	Temperature   *float64          `json:"temperature,omitempty"`
	TopP          *float64          `json:"top_p,omitempty"`
	MaxTokens     *int              `json:"max_tokens,omitempty"`
	MaxRetries    *int              `json:"max_retries,omitempty"`
	ExtraHeaders  map[string]string `json:"extra_headers,omitempty"`
	ParallelTools bool              `json:"parallel_tool_calls,omitempty"`
}

// MaxTokensOr returns MaxTokens or def when unset.
func (c ModelConfig) MaxTokensOr(def int) int {
	if c.MaxTokens == nil {
		return def
	}
	return *c.MaxTokens
}

// MaxRetriesOr returns MaxRetries or def when unset.
func (c ModelConfig) MaxRetriesOr(def int) int {
	if c.MaxRetries == nil {
		return def
	}
	return *c.MaxRetries
}
