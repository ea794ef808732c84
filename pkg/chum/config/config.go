package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// SnapshotsConfig configures the snapshot store.
type SnapshotsConfig struct {
	// Path is the snapshot database directory.
	Path string `mapstructure:"path"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level"`
}

// Config represents the application configuration.
type Config struct {
	// Exclude contains default exclude glob patterns applied to every scan,
	// merged with patterns given on the command line.
	Exclude []string `mapstructure:"exclude"`

	// Parallel selects the parallel walker by default.
	Parallel bool `mapstructure:"parallel"`

	Snapshots SnapshotsConfig `mapstructure:"snapshots"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Load loads configuration from file and environment variables.
// Config file location: $XDG_CONFIG_HOME/chum/config.yaml.
// Environment variables are prefixed with CHUM_ (e.g. CHUM_LOGGING_LEVEL).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ConfigDir())

	v.SetEnvPrefix("CHUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("exclude", DefaultExclusions)
	v.SetDefault("parallel", false)
	v.SetDefault("snapshots.path", DefaultSnapshotDir())
	v.SetDefault("logging.level", DefaultLogLevel)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}
