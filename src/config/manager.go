package config

import (
	"fmt"
	"slices"
	"sync"
)

// Overrides carries command-line values. Zero fields leave the config as is.
type Overrides struct {
	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	MaxSteps        int
	Tools           []string
	Stream          *bool
	RequireApproval *bool
	ProjectPath     string
	StoragePath     string
	MetricsAddr     string
	LogLevel        string
}

// Manager manages configuration loading, validation, and access
type Manager struct {
	config     *Config
	loader     *Loader
	validator  *Validator
	precedence ConfigPrecedence
	mu         sync.RWMutex
}

// NewManager loads the configuration named by precedence.
func NewManager(precedence ConfigPrecedence, opts ...LoaderOption) (*Manager, error) {
	loader := NewLoader(precedence, opts...)
	config, err := loader.Load()
	if err != nil {
		return nil, err
	}
	return &Manager{
		config:     config,
		loader:     loader,
		validator:  loader.validator,
		precedence: precedence,
	}, nil
}

// NewManagerWithConfig creates a manager with a specific configuration
func NewManagerWithConfig(config *Config) (*Manager, error) {
	validator := NewValidator()
	if err := validator.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Manager{
		config:    config,
		loader:    NewLoader(ConfigPrecedence{}),
		validator: validator,
	}, nil
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Precedence returns the files the configuration was loaded from.
func (m *Manager) Precedence() ConfigPrecedence {
	return m.precedence
}

// ApplyOverrides merges command-line values over the configuration and
// validates the result. The configuration is unchanged on error.
func (m *Manager) ApplyOverrides(o Overrides) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := *m.config
	next.Providers = make(map[string]ProviderConfig, len(m.config.Providers))
	for k, v := range m.config.Providers {
		next.Providers[k] = v
	}
	next.Agent.Tools = slices.Clone(m.config.Agent.Tools)

	if o.Provider != "" {
		next.DefaultProvider = o.Provider
	}
	if o.Model != "" {
		next.Model.Model = o.Model
	}
	if o.APIKey != "" || o.BaseURL != "" {
		p := next.Providers[next.DefaultProvider]
		if o.APIKey != "" {
			p.APIKey = o.APIKey
		}
		if o.BaseURL != "" {
			p.BaseURL = o.BaseURL
		}
		next.Providers[next.DefaultProvider] = p
	}
	if o.MaxSteps != 0 {
		next.Agent.MaxSteps = o.MaxSteps
	}
	if len(o.Tools) > 0 {
		next.Agent.Tools = slices.Clone(o.Tools)
	}
	if o.Stream != nil {
		next.Agent.Stream = *o.Stream
	}
	if o.RequireApproval != nil {
		next.Agent.RequireApproval = *o.RequireApproval
	}
	if o.ProjectPath != "" {
		next.Agent.ProjectPath = o.ProjectPath
	}
	if o.StoragePath != "" {
		next.Storage.Path = o.StoragePath
	}
	if o.MetricsAddr != "" {
		next.Metrics.Addr = o.MetricsAddr
	}
	if o.LogLevel != "" {
		next.Logging.Level = o.LogLevel
	}

	if err := m.validator.Validate(&next); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	m.config = &next
	return nil
}

// SaveTo writes the configuration to path.
func (m *Manager) SaveTo(path string) error {
	return m.loader.SaveFile(m.GetConfig(), path)
}

// ExportConfig encodes the configuration as YAML, or JSON when format is
// "json". API keys are masked unless includeSecrets is set.
func (m *Manager) ExportConfig(format string, includeSecrets bool) ([]byte, error) {
	config := m.GetConfig()
	if !includeSecrets {
		config = config.Redacted()
	}
	ext := ".yaml"
	if format == "json" {
		ext = ".json"
	}
	return Marshal(config, ext)
}
