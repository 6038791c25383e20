package config

import (
	"slices"

	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/retry"
	"github.com/elee1766/gotrae/src/shell"
	"github.com/elee1766/gotrae/src/traeagent"
	"github.com/elee1766/gotrae/src/traeagent/tools"
)

// defaultModels is the model used for a provider when none is configured.
var defaultModels = map[string]string{
	aisdk.ProviderOpenAI:           "gpt-4o",
	aisdk.ProviderAnthropic:        "claude-sonnet-4-20250514",
	aisdk.ProviderOpenRouter:       "openai/gpt-4o",
	aisdk.ProviderOpenAICompatible: "",
}

// DefaultConfig returns a default configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DefaultProvider: aisdk.ProviderAnthropic,
		Providers:       map[string]ProviderConfig{},
		Model: ModelConfig{
			MaxTokens:  4096,
			MaxRetries: retry.DefaultMaxRetries,
		},
		Agent: AgentConfig{
			MaxSteps:     traeagent.DefaultMaxSteps,
			Tools:        slices.Clone(tools.DefaultToolNames),
			ShellTimeout: Duration(shell.DefaultTimeout),
			Parallel:     1,
		},
		Retry: RetryConfig{
			InitialInterval: Duration(retry.DefaultInitialInterval),
			MaxInterval:     Duration(retry.DefaultMaxInterval),
			Multiplier:      retry.DefaultMultiplier,
			MaxElapsed:      Duration(retry.DefaultMaxElapsed),
		},
		Storage: StorageConfig{
			Path: DefaultDatabasePath(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultModel returns the stock model of provider, "" when it has none.
func DefaultModel(provider string) string {
	return defaultModels[provider]
}
