// Package xdg provides XDG Base Directory paths for Emberveil.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "emberveil"

// ConfigDir returns the XDG config directory for emberveil.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns the config file path used when no --config
// flag is given. The file may not exist; callers decide whether that
// matters.
func DefaultConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
