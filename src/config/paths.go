package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// AppName names the xdg directories.
const AppName = "gotrae"

// DefaultDatabasePath is the trajectory database under XDG_STATE_HOME.
func DefaultDatabasePath() string {
	return filepath.Join(xdg.StateHome, AppName, "trajectories.db")
}

// DefaultLogDir is where --log-file writes under XDG_STATE_HOME.
func DefaultLogDir() string {
	return filepath.Join(xdg.StateHome, AppName, "logs")
}

// UserConfigPath is the per-user config file under XDG_CONFIG_HOME.
func UserConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// UserEnvPath is the per-user .env file under XDG_CONFIG_HOME.
func UserEnvPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, ".env")
}
