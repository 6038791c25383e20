package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the whole gotrae configuration.
type Config struct {
	DefaultProvider string                    `json:"default_provider" yaml:"default_provider" validate:"required,provider_name"`
	Providers       map[string]ProviderConfig `json:"providers,omitempty" yaml:"providers,omitempty" validate:"dive,keys,provider_name,endkeys"`
	Model           ModelConfig               `json:"model" yaml:"model"`
	Agent           AgentConfig               `json:"agent" yaml:"agent"`
	Retry           RetryConfig               `json:"retry" yaml:"retry"`
	Storage         StorageConfig             `json:"storage" yaml:"storage"`
	Metrics         MetricsConfig             `json:"metrics" yaml:"metrics"`
	Logging         LoggingConfig             `json:"logging" yaml:"logging"`
	// MCPServers are started for every run; their tools join the agent's.
	MCPServers map[string]MCPServerConfig `json:"mcp_servers,omitempty" yaml:"mcp_servers,omitempty" validate:"dive"`
}

// ProviderConfig holds the credentials and endpoint of one provider.
type ProviderConfig struct {
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	// Model is used when the model section does not name one.
	Model        string            `json:"model,omitempty" yaml:"model,omitempty"`
	ExtraHeaders map[string]string `json:"extra_headers,omitempty" yaml:"extra_headers,omitempty"`
}

// ModelConfig holds the sampling parameters sent with every request.
type ModelConfig struct {
	Model             string   `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP              *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	MaxTokens         int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"gte=0"`
	MaxRetries        int      `json:"max_retries" yaml:"max_retries" validate:"gte=0"`
	ParallelToolCalls bool     `json:"parallel_tool_calls,omitempty" yaml:"parallel_tool_calls,omitempty"`
}

// AgentConfig controls the agent loop and its tools.
type AgentConfig struct {
	MaxSteps        int      `json:"max_steps" yaml:"max_steps" validate:"gt=0"`
	Tools           []string `json:"tools,omitempty" yaml:"tools,omitempty" validate:"dive,tool_name"`
	ShellTimeout    Duration `json:"shell_timeout,omitempty" yaml:"shell_timeout,omitempty" validate:"gte=0"`
	Stream          bool     `json:"stream,omitempty" yaml:"stream,omitempty"`
	RequireApproval bool     `json:"require_approval,omitempty" yaml:"require_approval,omitempty"`
	ProjectPath     string   `json:"project_path,omitempty" yaml:"project_path,omitempty"`
	RulesFile       string   `json:"rules_file,omitempty" yaml:"rules_file,omitempty"`
	// Parallel is the number of tool calls of one step run at once.
	Parallel int `json:"parallel,omitempty" yaml:"parallel,omitempty" validate:"gte=0"`
}

// RetryConfig is the backoff schedule around provider calls.
type RetryConfig struct {
	InitialInterval Duration `json:"initial_interval" yaml:"initial_interval" validate:"gt=0"`
	MaxInterval     Duration `json:"max_interval" yaml:"max_interval" validate:"gtefield=InitialInterval"`
	Multiplier      float64  `json:"multiplier" yaml:"multiplier" validate:"gte=1"`
	MaxElapsed      Duration `json:"max_elapsed" yaml:"max_elapsed" validate:"gte=0"`
}

// StorageConfig locates the trajectory database.
type StorageConfig struct {
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty" validate:"omitempty,hostname_port"`
}

// LoggingConfig sets the log level and an optional JSON log file.
type LoggingConfig struct {
	Level string `json:"level,omitempty" yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
}

// MCPServerConfig describes an MCP tool server started over stdio.
type MCPServerConfig struct {
	Command string            `json:"command" yaml:"command" validate:"required"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Dir     string            `json:"dir,omitempty" yaml:"dir,omitempty"`
	Timeout Duration          `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"gte=0"`
}

// ConfigPrecedence lists the files merged over the defaults, lowest first.
type ConfigPrecedence struct {
	UserConfig    string
	ProjectConfig string
	// ExplicitConfig is the --config file; it must exist when set.
	ExplicitConfig    string
	EnvFiles          []string
	EnvironmentPrefix string
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceUser        ConfigSource = "user"
	SourceProject     ConfigSource = "project"
	SourceExplicit    ConfigSource = "explicit"
	SourceEnvironment ConfigSource = "environment"
	SourceFlag        ConfigSource = "flag"
)

// Duration is a time.Duration written as "30s" in config files.
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return d.set(v)
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch t := v.(type) {
	case string:
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", t, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(t * float64(time.Second)))
	case int:
		*d = Duration(time.Duration(t) * time.Second)
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}
