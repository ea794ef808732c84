// Package watch monitors a manifested tree and reports drift as it
// happens, using filesystem notifications instead of repeated rescans.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/chumlabs/chum/pkg/chum/logging"
	"github.com/chumlabs/chum/pkg/chum/manifest"
	"github.com/chumlabs/chum/pkg/chum/pathnorm"
)

// logger is the package-level logger for watch events.
var logger = logging.Get("watch")

// Drift is one observed deviation from the baseline manifest.
type Drift struct {
	// Path is the normalized relative path that drifted.
	Path string

	// Op describes the filesystem operation (created, modified, removed,
	// renamed).
	Op string
}

// Watcher observes a tree against a baseline manifest built at start.
type Watcher struct {
	opts     manifest.Options
	baseline *manifest.Manifest
	fsw      *fsnotify.Watcher

	// OnDrift, when set, receives each drift event in addition to logging.
	OnDrift func(Drift)
}

// New creates a watcher for the tree described by opts, using baseline as
// the reference state.
func New(opts manifest.Options, baseline *manifest.Manifest) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{opts: opts, baseline: baseline, fsw: fsw}, nil
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run installs recursive watches and blocks, reporting drift until the
// context is cancelled or the watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.addRecursive(w.opts.BaseDir()); err != nil {
		return err
	}
	logger.Info("watching", "dir", w.opts.BaseDir())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// addRecursive walks the directory tree and watches every directory.
// Symlinks are not followed, matching the scanner's traversal.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		rel, err := pathnorm.Relative(root, path)
		if err != nil {
			return err
		}
		if rel != "." && w.opts.Excluded(rel) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// handle classifies one fsnotify event against the baseline.
func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := pathnorm.Relative(w.opts.BaseDir(), event.Name)
	if err != nil {
		logger.Warn("unnormalizable path in event", "path", event.Name, "err", err)
		return
	}
	if w.opts.Excluded(rel) {
		return
	}

	_, known := w.baseline.Lookup(rel)
	switch {
	case event.Has(fsnotify.Create):
		// A new directory needs its own watch for events beneath it.
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(event.Name); err != nil && !errors.Is(err, fsnotify.ErrClosed) {
				logger.Warn("cannot watch new directory", "path", rel, "err", err)
			}
		}
		w.report(Drift{Path: rel, Op: "created"})

	case event.Has(fsnotify.Remove):
		if known {
			w.report(Drift{Path: rel, Op: "removed"})
		}

	case event.Has(fsnotify.Rename):
		if known {
			w.report(Drift{Path: rel, Op: "renamed"})
		}

	case event.Has(fsnotify.Write):
		w.report(Drift{Path: rel, Op: "modified"})
	}
}

// report logs a drift event and forwards it to the callback.
func (w *Watcher) report(d Drift) {
	logger.Info("drift", "op", d.Op, "path", d.Path)
	if w.OnDrift != nil {
		w.OnDrift(d)
	}
}
