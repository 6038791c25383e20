package config

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// projectConfigNames are looked up in the working directory, first match wins.
var projectConfigNames = []string{"gotrae.yaml", "gotrae.yml", "gotrae.json", ".gotrae.yaml"}

// Discovery handles finding configuration files in various locations
type Discovery struct {
	fs      afero.Fs
	workDir string
}

// NewDiscovery creates a discovery rooted at workDir.
func NewDiscovery(fs afero.Fs, workDir string) *Discovery {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Discovery{fs: fs, workDir: workDir}
}

// FindProjectConfig returns the project config file in the working
// directory, or "" when there is none.
func (d *Discovery) FindProjectConfig() string {
	for _, name := range projectConfigNames {
		path := filepath.Join(d.workDir, name)
		if ok, _ := afero.Exists(d.fs, path); ok {
			return path
		}
	}
	return ""
}

// Precedence lists the config and .env files to load. explicit is the
// --config flag and may be empty.
func (d *Discovery) Precedence(explicit string) ConfigPrecedence {
	return ConfigPrecedence{
		UserConfig:        UserConfigPath(),
		ProjectConfig:     d.FindProjectConfig(),
		ExplicitConfig:    explicit,
		EnvFiles:          []string{filepath.Join(d.workDir, ".env"), UserEnvPath()},
		EnvironmentPrefix: EnvironmentPrefix,
	}
}

// ConfigInfo describes where the active configuration came from.
type ConfigInfo struct {
	Files []ConfigLocation `json:"files" yaml:"files"`
}

// ConfigLocation is one config file and whether it was present.
type ConfigLocation struct {
	Path   string       `json:"path" yaml:"path"`
	Source ConfigSource `json:"source" yaml:"source"`
	Exists bool         `json:"exists" yaml:"exists"`
}

// Info reports which of the files in p exist.
func (d *Discovery) Info(p ConfigPrecedence) ConfigInfo {
	var info ConfigInfo
	for _, loc := range []ConfigLocation{
		{Path: p.UserConfig, Source: SourceUser},
		{Path: p.ProjectConfig, Source: SourceProject},
		{Path: p.ExplicitConfig, Source: SourceExplicit},
	} {
		if loc.Path == "" {
			continue
		}
		loc.Exists, _ = afero.Exists(d.fs, loc.Path)
		info.Files = append(info.Files, loc)
	}
	return info
}
