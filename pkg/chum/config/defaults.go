// Package config provides configuration management for chum.
package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultLogLevel keeps normal runs quiet apart from the progress line.
	DefaultLogLevel = "warn"
)

// DefaultExclusions is the default exclude pattern set. Empty: a manifest
// is only trustworthy for verification when it covers the whole tree, so
// every exclusion is opt-in.
var DefaultExclusions = []string{}

// DefaultSnapshotDir returns $XDG_DATA_HOME/chum/snapshots, the default
// location of the snapshot database.
func DefaultSnapshotDir() string {
	return filepath.Join(xdg.DataHome, "chum", "snapshots")
}

// ConfigDir returns $XDG_CONFIG_HOME/chum, where the config file lives.
// The environment variable is consulted directly so tests and wrappers can
// repoint it after process start.
func ConfigDir() string {
	if env := os.Getenv("XDG_CONFIG_HOME"); env != "" {
		return filepath.Join(env, "chum")
	}
	return filepath.Join(xdg.ConfigHome, "chum")
}
