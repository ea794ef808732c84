package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chumlabs/chum/pkg/chum/manifest"
	"github.com/chumlabs/chum/pkg/chum/walker"
)

// startWatcher builds a baseline, starts the watcher, and returns a drift
// channel. The watcher is torn down with the test.
func startWatcher(t *testing.T, root string, patterns ...string) <-chan Drift {
	t.Helper()

	opts, err := manifest.NewOptions(root, patterns)
	require.NoError(t, err)

	baseline, err := walker.Walk(opts, walker.Options{})
	require.NoError(t, err)

	w, err := New(opts, baseline)
	require.NoError(t, err)

	drifts := make(chan Drift, 16)
	w.OnDrift = func(d Drift) { drifts <- d }

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Close()
	})

	// Give the watch registration a moment to settle.
	time.Sleep(50 * time.Millisecond)
	return drifts
}

func waitDrift(t *testing.T, drifts <-chan Drift, path string) Drift {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case d := <-drifts:
			if d.Path == path {
				return d
			}
		case <-deadline:
			t.Fatalf("timed out waiting for drift on %q", path)
		}
	}
}

func TestWatchDetectsCreation(t *testing.T) {
	root := t.TempDir()
	drifts := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.txt"), []byte("x"), 0o644))

	d := waitDrift(t, drifts, "new.txt")
	assert.Equal(t, "created", d.Op)
}

func TestWatchDetectsRemoval(t *testing.T) {
	root := t.TempDir()
	victim := filepath.Join(root, "victim.txt")
	require.NoError(t, os.WriteFile(victim, []byte("x"), 0o644))

	drifts := startWatcher(t, root)
	require.NoError(t, os.Remove(victim))

	d := waitDrift(t, drifts, "victim.txt")
	assert.Equal(t, "removed", d.Op)
}

func TestWatchIgnoresExcluded(t *testing.T) {
	root := t.TempDir()
	drifts := startWatcher(t, root, "*.tmp")

	require.NoError(t, os.WriteFile(filepath.Join(root, "scratch.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "kept.txt"), []byte("x"), 0o644))

	d := waitDrift(t, drifts, "kept.txt")
	assert.Equal(t, "created", d.Op)

	// Nothing for the excluded file should ever have arrived.
	for {
		select {
		case d := <-drifts:
			assert.NotEqual(t, "scratch.tmp", d.Path)
		default:
			return
		}
	}
}
