package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chumlabs/chum/pkg/chum/manifest"
	"github.com/chumlabs/chum/pkg/chum/walker"
	"github.com/chumlabs/chum/pkg/chum/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir> [exclude-glob...]",
	Short: "Watch a tree and report drift from its current state",
	Long: `Watch builds a baseline manifest of the tree, then monitors it with
filesystem notifications and reports every created, modified, removed, or
renamed path until interrupted.`,
	Args:         cobra.MinimumNArgs(1),
	RunE:         runWatch,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// runWatch builds the baseline and blocks reporting drift until a signal.
func runWatch(_ *cobra.Command, args []string) error {
	root, err := resolveRoot(args[0])
	if err != nil {
		return err
	}

	patterns := append(viper.GetStringSlice("exclude"), args[1:]...)
	opts, err := manifest.NewOptions(root, patterns)
	if err != nil {
		return err
	}

	wopts, reporter := newWalkOptions(os.Stderr)
	baseline, err := walker.Walk(opts, wopts)
	if reporter != nil {
		reporter.Done()
	}
	if err != nil {
		return err
	}

	w, err := watch.New(opts, baseline)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
