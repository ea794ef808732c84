package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Point XDG at an empty directory so no real config file interferes.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.Exclude)
	assert.False(t, cfg.Parallel)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.NotEmpty(t, cfg.Snapshots.Path)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("CHUM_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/data")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data"), got)

	plain, err := ExpandPath("/var/tmp")
	require.NoError(t, err)
	assert.Equal(t, "/var/tmp", plain)
}
