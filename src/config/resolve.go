package config

import (
	"maps"
	"slices"

	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/mcp"
	"github.com/elee1766/gotrae/src/retry"
)

func usesSiteHeaders(provider string) bool {
	return provider == aisdk.ProviderOpenRouter || provider == aisdk.ProviderOpenAICompatible
}

// Provider returns the settings of the default provider.
func (c *Config) Provider() ProviderConfig {
	return c.Providers[c.DefaultProvider]
}

// ResolvedModel is the model name that will be requested.
func (c *Config) ResolvedModel() string {
	if c.Model.Model != "" {
		return c.Model.Model
	}
	if m := c.Provider().Model; m != "" {
		return m
	}
	return DefaultModel(c.DefaultProvider)
}

// ModelConfig builds the immutable model configuration used for every call.
func (c *Config) ModelConfig() (aisdk.ModelConfig, error) {
	model := c.ResolvedModel()
	if model == "" {
		return aisdk.ModelConfig{}, &aisdk.ConfigError{Message: "no model configured for provider " + c.DefaultProvider}
	}
	p := c.Provider()
	cfg := aisdk.ModelConfig{
		Model: model,
		Provider: aisdk.ModelProvider{
			Name:       c.DefaultProvider,
			APIKey:     p.APIKey,
			BaseURL:    p.BaseURL,
			APIVersion: p.APIVersion,
		},
		Temperature:   c.Model.Temperature,
		TopP:          c.Model.TopP,
		ExtraHeaders:  maps.Clone(p.ExtraHeaders),
		ParallelTools: c.Model.ParallelToolCalls,
	}
	if c.Model.MaxTokens > 0 {
		maxTokens := c.Model.MaxTokens
		cfg.MaxTokens = &maxTokens
	}
	maxRetries := c.Model.MaxRetries
	cfg.MaxRetries = &maxRetries
	return cfg, nil
}

// RetryConfig builds the backoff schedule for provider calls.
func (c *Config) RetryConfig() retry.Config {
	return retry.Config{
		MaxRetries:      c.Model.MaxRetries,
		InitialInterval: c.Retry.InitialInterval.D(),
		MaxInterval:     c.Retry.MaxInterval.D(),
		Multiplier:      c.Retry.Multiplier,
		MaxElapsed:      c.Retry.MaxElapsed.D(),
	}
}

// MCPServerConfigs converts the configured MCP servers for mcp.Connect.
func (c *Config) MCPServerConfigs() map[string]mcp.ServerConfig {
	out := make(map[string]mcp.ServerConfig, len(c.MCPServers))
	for name, s := range c.MCPServers {
		out[name] = mcp.ServerConfig{
			Command: s.Command,
			Args:    slices.Clone(s.Args),
			Env:     maps.Clone(s.Env),
			Dir:     s.Dir,
			Timeout: s.Timeout.D(),
		}
	}
	return out
}

// Redacted returns a copy of c with API keys and MCP server environments
// masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Providers = make(map[string]ProviderConfig, len(c.Providers))
	for name, p := range c.Providers {
		if p.APIKey != "" {
			p.APIKey = "********"
		}
		out.Providers[name] = p
	}
	if c.MCPServers != nil {
		out.MCPServers = make(map[string]MCPServerConfig, len(c.MCPServers))
		for name, s := range c.MCPServers {
			env := make(map[string]string, len(s.Env))
			for k := range s.Env {
				env[k] = "********"
			}
			s.Env = env
			out.MCPServers[name] = s
		}
	}
	return &out
}
