package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// EnvironmentPrefix prefixes the gotrae environment overrides.
const EnvironmentPrefix = "GOTRAE"

// Loader handles loading and merging configurations from multiple sources
type Loader struct {
	precedence ConfigPrecedence
	validator  *Validator
	fs         afero.Fs
	lookupEnv  func(string) (string, bool)
	dotenv     map[string]string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFs reads config and .env files from fs.
func WithFs(fs afero.Fs) LoaderOption {
	return func(l *Loader) { l.fs = fs }
}

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(fn func(string) (string, bool)) LoaderOption {
	return func(l *Loader) { l.lookupEnv = fn }
}

// NewLoader creates a new configuration loader
func NewLoader(precedence ConfigPrecedence, opts ...LoaderOption) *Loader {
	l := &Loader{
		precedence: precedence,
		validator:  NewValidator(),
		fs:         afero.NewOsFs(),
		lookupEnv:  os.LookupEnv,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load merges defaults, the config files, .env files and the environment, in
// that order, and validates the result.
func (l *Loader) Load() (*Config, error) {
	if err := l.loadEnvFiles(); err != nil {
		return nil, err
	}

	config := DefaultConfig()
	sources := []struct {
		path     string
		source   ConfigSource
		required bool
	}{
		{l.precedence.UserConfig, SourceUser, false},
		{l.precedence.ProjectConfig, SourceProject, false},
		{l.precedence.ExplicitConfig, SourceExplicit, true},
	}
	for _, src := range sources {
		if src.path == "" {
			continue
		}
		err := l.loadFile(src.path, config)
		if err == nil {
			continue
		}
		if errors.Is(err, os.ErrNotExist) && !src.required {
			continue
		}
		return nil, fmt.Errorf("failed to load %s config from %s: %w", src.source, src.path, err)
	}

	l.applyEnvironment(config)

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// loadFile decodes path over config. Keys missing from the file keep their
// current values.
func (l *Loader) loadFile(path string, config *Config) error {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// SaveFile writes config to path as YAML, or JSON for a .json path.
func (l *Loader) SaveFile(config *Config, path string) error {
	if err := l.validator.Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := l.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := Marshal(config, filepath.Ext(path))
	if err != nil {
		return err
	}
	if err := afero.WriteFile(l.fs, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Marshal encodes config as JSON when ext is ".json", YAML otherwise.
func Marshal(config *Config, ext string) ([]byte, error) {
	if strings.EqualFold(ext, ".json") {
		data, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal config: %w", err)
		}
		return append(data, '\n'), nil
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// loadEnvFiles reads the .env files. Earlier files win over later ones and
// the process environment wins over all of them.
func (l *Loader) loadEnvFiles() error {
	l.dotenv = map[string]string{}
	for _, path := range l.precedence.EnvFiles {
		f, err := l.fs.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to open env file %s: %w", path, err)
		}
		vars, err := godotenv.Parse(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to parse env file %s: %w", path, err)
		}
		for k, v := range vars {
			if _, ok := l.dotenv[k]; !ok {
				l.dotenv[k] = v
			}
		}
	}
	return nil
}

func (l *Loader) getenv(key string) string {
	if v, ok := l.lookupEnv(key); ok {
		return v
	}
	return l.dotenv[key]
}

// applyEnvironment applies the GOTRAE_* overrides, then fills provider
// credentials the files left empty from <PROVIDER>_API_KEY and
// <PROVIDER>_BASE_URL.
func (l *Loader) applyEnvironment(config *Config) {
	prefix := l.precedence.EnvironmentPrefix
	if prefix == "" {
		prefix = EnvironmentPrefix
	}

	if provider := l.getenv(prefix + "_PROVIDER"); provider != "" {
		config.DefaultProvider = provider
	}
	if model := l.getenv(prefix + "_MODEL"); model != "" {
		config.Model.Model = model
	}
	if steps := l.getenv(prefix + "_MAX_STEPS"); steps != "" {
		if n, err := strconv.Atoi(steps); err == nil {
			config.Agent.MaxSteps = n
		}
	}
	if level := l.getenv(prefix + "_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}

	if config.Providers == nil {
		config.Providers = map[string]ProviderConfig{}
	}
	for _, name := range Providers {
		p, configured := config.Providers[name]
		changed := false
		if p.APIKey == "" {
			if key := l.getenv(envName(name, "API_KEY")); key != "" {
				p.APIKey = key
				changed = true
			}
		}
		if p.BaseURL == "" {
			if url := l.getenv(envName(name, "BASE_URL")); url != "" {
				p.BaseURL = url
				changed = true
			}
		}
		if usesSiteHeaders(name) {
			changed = l.siteHeader(&p, "HTTP-Referer", "OPENAI_COMPATIBLE_SITE_URL") || changed
			changed = l.siteHeader(&p, "X-Title", "OPENAI_COMPATIBLE_SITE_NAME") || changed
		}
		if configured || changed {
			config.Providers[name] = p
		}
	}
}

func (l *Loader) siteHeader(p *ProviderConfig, header, env string) bool {
	v := l.getenv(env)
	if v == "" {
		return false
	}
	if _, ok := p.ExtraHeaders[header]; ok {
		return false
	}
	if p.ExtraHeaders == nil {
		p.ExtraHeaders = map[string]string{}
	}
	p.ExtraHeaders[header] = v
	return true
}

// envName builds <PROVIDER>_<suffix>, e.g. OPENAI_COMPATIBLE_API_KEY.
func envName(provider, suffix string) string {
	return strings.ToUpper(provider) + "_" + suffix
}
