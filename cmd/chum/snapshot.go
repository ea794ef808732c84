package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chumlabs/chum/pkg/chum/manifest"
	"github.com/chumlabs/chum/pkg/chum/walker"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage archived manifest snapshots",
}

var snapshotSaveCmd = &cobra.Command{
	Use:          "save <dir> [exclude-glob...]",
	Short:        "Scan a tree and archive the manifest",
	Args:         cobra.MinimumNArgs(1),
	RunE:         runSnapshotSave,
	SilenceUsage: true,
}

var snapshotListCmd = &cobra.Command{
	Use:          "list",
	Short:        "List archived snapshots",
	Args:         cobra.NoArgs,
	RunE:         runSnapshotList,
	SilenceUsage: true,
}

var snapshotShowCmd = &cobra.Command{
	Use:          "show <id>",
	Short:        "Print an archived manifest",
	Args:         cobra.ExactArgs(1),
	RunE:         runSnapshotShow,
	SilenceUsage: true,
}

func init() {
	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotListCmd, snapshotShowCmd)
	rootCmd.AddCommand(snapshotCmd)
}

// runSnapshotSave scans the tree and stores the manifest.
func runSnapshotSave(_ *cobra.Command, args []string) error {
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
	m, err := walker.Walk(opts, wopts)
	if reporter != nil {
		reporter.Done()
	}
	if err != nil {
		return err
	}

	return saveSnapshot(m)
}

// runSnapshotList prints the archived snapshots, newest first.
func runSnapshotList(_ *cobra.Command, _ []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	snaps, err := s.List()
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Println("no snapshots")
		return nil
	}

	for _, snap := range snaps {
		fmt.Printf("%s  %s  %s  (%d dirs, %d symlinks, %d files, %d bytes)\n",
			snap.ID,
			snap.Timestamp.Format("2006-01-02 15:04:05"),
			snap.BaseDir,
			snap.Summary.FoundDirs,
			snap.Summary.FoundSymlinks,
			snap.Summary.FoundFiles,
			snap.Summary.FilesTotalSize)
	}
	return nil
}

// runSnapshotShow writes an archived manifest to stdout.
func runSnapshotShow(_ *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	m, err := s.Get(args[0])
	if err != nil {
		return err
	}
	return m.Encode(os.Stdout)
}
