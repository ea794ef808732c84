package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chumlabs/chum/pkg/chum/config"
	"github.com/chumlabs/chum/pkg/chum/logging"
	"github.com/chumlabs/chum/pkg/chum/manifest"
	"github.com/chumlabs/chum/pkg/chum/progress"
	"github.com/chumlabs/chum/pkg/chum/store"
	"github.com/chumlabs/chum/pkg/chum/walker"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "chum [dir] [exclude-glob...]",
		Short: "Produce a deterministic manifest of a directory tree",
		Long: `Chum scans a directory tree and writes a JSON manifest of every
sub-directory, symlink, and regular file beneath it. Files carry a chunked
checksum chain, byte length, and UTC mtime, so two manifests of the same
tree compare equal and any drift or corruption shows up in a diff.

The manifest is written to standard output; progress goes to the status
stream.

Use zero or more exclude glob patterns to skip files or directories; for
example '.DS_Store' and '._*' exclude macOS folder settings and AppleDouble
resource fork files.

Examples:
  chum /data/tree > tree.json         # Manifest a tree
  chum /data/tree '.DS_Store' '._*'   # With exclusions
  chum diff old.json new.json         # Compare two manifests
  chum watch /data/tree               # Report drift live
  chum snapshot save /data/tree       # Archive a manifest`,
		Args:          cobra.ArbitraryArgs,
		RunE:          runScan,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/chum/config.yaml)")
	rootCmd.PersistentFlags().StringSliceP("exclude", "e", nil, "exclude glob patterns (can be specified multiple times)")
	rootCmd.PersistentFlags().BoolP("parallel", "p", false, "use the parallel walker")
	rootCmd.PersistentFlags().Bool("no-progress", false, "disable the progress line")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().StringP("output", "o", "", "write the manifest to a file instead of stdout")
	rootCmd.Flags().Bool("snapshot", false, "also archive the manifest in the snapshot store")

	_ = viper.BindPFlag("exclude", rootCmd.PersistentFlags().Lookup("exclude"))
	_ = viper.BindPFlag("parallel", rootCmd.PersistentFlags().Lookup("parallel"))
	_ = viper.BindPFlag("no_progress", rootCmd.PersistentFlags().Lookup("no-progress"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in the config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
	}

	viper.SetEnvPrefix("CHUM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("exclude", config.DefaultExclusions)
	viper.SetDefault("snapshots.path", config.DefaultSnapshotDir())
	viper.SetDefault("logging.level", config.DefaultLogLevel)

	_ = viper.ReadInConfig()

	if level := viper.GetString("logging.level"); level != "" {
		if err := logging.Init(level); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// runScan is the root command handler: scan a tree and emit its manifest.
func runScan(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		_ = cmd.Usage()
		return errors.New("missing directory argument")
	}

	root, err := resolveRoot(args[0])
	if err != nil {
		return err
	}

	// Positional patterns after the directory merge with configured ones.
	patterns := append(viper.GetStringSlice("exclude"), args[1:]...)

	opts, err := manifest.NewOptions(root, patterns)
	if err != nil {
		return err
	}

	wopts, reporter := newWalkOptions(os.Stderr)
	m, err := walker.Walk(opts, wopts)
	if reporter != nil {
		reporter.Done()
	}
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cmd)
	if err != nil {
		return err
	}
	if err := m.Encode(out); err != nil {
		_ = closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return err
	}

	if save, _ := cmd.Flags().GetBool("snapshot"); save {
		return saveSnapshot(m)
	}
	return nil
}

// newWalkOptions builds walker options from the effective config. A progress
// reporter writing to w is attached unless no_progress is set; the returned
// reporter is nil when progress is disabled.
func newWalkOptions(w io.Writer) (walker.Options, *progress.Reporter) {
	wopts := walker.Options{Parallel: viper.GetBool("parallel")}
	if viper.GetBool("no_progress") {
		return wopts, nil
	}
	reporter := progress.New(w)
	wopts.OnCounts = reporter.Counts
	wopts.OnHash = reporter.Hashed
	return wopts, reporter
}

// resolveRoot expands, absolutizes, and validates the scan root.
func resolveRoot(arg string) (string, error) {
	expanded, err := config.ExpandPath(arg)
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("path does not exist: %s", abs)
		}
		return "", fmt.Errorf("cannot access path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", abs)
	}
	return abs, nil
}

// openOutput returns the manifest destination honoring --output.
func openOutput(cmd *cobra.Command) (io.Writer, func() error, error) {
	path, _ := cmd.Flags().GetString("output")
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create output file: %w", err)
	}
	return f, f.Close, nil
}

// saveSnapshot archives the manifest in the snapshot store.
func saveSnapshot(m *manifest.Manifest) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.Save(m)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "snapshot %s saved\n", id)
	return nil
}

// openStore opens the snapshot store at the configured path.
func openStore() (*store.Store, error) {
	path, err := config.ExpandPath(viper.GetString("snapshots.path"))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create snapshot directory: %w", err)
	}
	return store.Open(path)
}
