package walker

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chumlabs/chum/pkg/chum/chunkhash"
	"github.com/chumlabs/chum/pkg/chum/manifest"
)

// buildTree writes the reference tree: a 2 MiB + 1 byte file, an empty
// directory, and a symlink with a dangling relative target.
func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	content := make([]byte, 2*chunkhash.ChunkSize+1)
	for i := range content {
		content[i] = byte(i * 31)
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), content, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "b"), 0o755))
	require.NoError(t, os.Symlink("../target", filepath.Join(root, "c")))

	return root
}

func mustOptions(t *testing.T, root string, patterns ...string) manifest.Options {
	t.Helper()
	opts, err := manifest.NewOptions(root, patterns)
	require.NoError(t, err)
	return opts
}

func TestWalkReferenceTree(t *testing.T) {
	root := buildTree(t)

	m, err := Walk(mustOptions(t, root), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, m.Summary.FoundDirs)
	assert.Equal(t, 1, m.Summary.FoundSymlinks)
	assert.Equal(t, 1, m.Summary.FoundFiles)
	assert.Equal(t, int64(2097153), m.Summary.FilesTotalSize)

	file, ok := m.Lookup("a.txt")
	require.True(t, ok)
	assert.Equal(t, manifest.KindFile, file.Kind)
	assert.Equal(t, 3, file.Hash.Snapshots(), "two full chunks plus one 1-byte chunk")
	assert.Equal(t, int64(2097153), file.Len)
	assert.False(t, file.MTime.IsZero())

	link, ok := m.Lookup("c")
	require.True(t, ok)
	assert.Equal(t, manifest.KindSymlink, link.Kind)
	assert.Equal(t, "../target", link.Target, "dangling target recorded literally")

	dir, ok := m.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, manifest.KindDir, dir.Kind)
}

func TestWalkNestedTreeOrdering(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "z", "inner"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "z", "inner", "f.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "m.txt"), []byte("y"), 0o644))

	m, err := Walk(mustOptions(t, root), Options{})
	require.NoError(t, err)

	paths := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		paths[i] = e.Path
	}
	assert.Equal(t, []string{"a", "m.txt", "z", "z/inner", "z/inner/f.txt"}, paths)
}

func TestWalkOrderingKeepsSubtreeBeforeDottedSibling(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "foo"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "foo", "bar"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "foo.txt"), []byte("y"), 0o644))

	m, err := Walk(mustOptions(t, root), Options{})
	require.NoError(t, err)

	paths := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		paths[i] = e.Path
	}
	assert.Equal(t, []string{"foo", "foo/bar", "foo.txt"}, paths,
		"a directory's contents sort before a sibling whose name extends the directory's")
}

func TestWalkExcludesFilePattern(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("keep"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "drop.tmp"), []byte("drop"), 0o644))

	m, err := Walk(mustOptions(t, root, "*.tmp"), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, m.Summary.FoundFiles)
	_, ok := m.Lookup("keep.txt")
	assert.True(t, ok)
	_, ok = m.Lookup("drop.tmp")
	assert.False(t, ok)
	assert.Equal(t, int64(4), m.Summary.FilesTotalSize)
}

func TestWalkExcludedDirSubtreeNeverVisited(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "f.txt"), []byte("hidden"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), []byte("top"), 0o644))

	m, err := Walk(mustOptions(t, root, "sub"), Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, m.Summary.FoundDirs, "the excluded directory itself is not counted")
	assert.Equal(t, 1, m.Summary.FoundFiles)
	for _, e := range m.Entries {
		assert.NotContains(t, e.Path, "sub")
	}
}

func TestWalkCountersMatchRetainedEntries(t *testing.T) {
	root := buildTree(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "b", "nested.txt"), []byte("n"), 0o644))

	m, err := Walk(mustOptions(t, root), Options{})
	require.NoError(t, err)

	total := m.Summary.FoundDirs + m.Summary.FoundSymlinks + m.Summary.FoundFiles
	assert.Equal(t, len(m.Entries), total)

	var sum int64
	for _, e := range m.Entries {
		if e.Kind == manifest.KindFile {
			sum += e.Len
		}
	}
	assert.Equal(t, sum, m.Summary.FilesTotalSize)
}

func TestWalkDeterministicAcrossRuns(t *testing.T) {
	root := buildTree(t)

	first, err := Walk(mustOptions(t, root), Options{})
	require.NoError(t, err)
	second, err := Walk(mustOptions(t, root), Options{})
	require.NoError(t, err)

	// Pin the run timestamps; everything else must match byte for byte.
	pinned := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first.Timestamp = pinned
	second.Timestamp = pinned

	var a, b bytes.Buffer
	require.NoError(t, first.Encode(&a))
	require.NoError(t, second.Encode(&b))
	assert.Equal(t, a.String(), b.String())
}

func TestWalkParallelMatchesSerial(t *testing.T) {
	root := buildTree(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "d1", "d2"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "d1", "x.bin"), bytes.Repeat([]byte{7}, chunkhash.ChunkSize+5), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "d1", "d2", "y.bin"), []byte{}, 0o644))

	serial, err := Walk(mustOptions(t, root), Options{})
	require.NoError(t, err)
	parallel, err := Walk(mustOptions(t, root), Options{Parallel: true})
	require.NoError(t, err)

	pinned := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	serial.Timestamp = pinned
	parallel.Timestamp = pinned

	var a, b bytes.Buffer
	require.NoError(t, serial.Encode(&a))
	require.NoError(t, parallel.Encode(&b))
	assert.Equal(t, a.String(), b.String())
}

func TestWalkEmptyFileHasEmptyChain(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty"), nil, 0o644))

	m, err := Walk(mustOptions(t, root), Options{})
	require.NoError(t, err)

	e, ok := m.Lookup("empty")
	require.True(t, ok)
	assert.Equal(t, 0, e.Hash.Snapshots())
	assert.Equal(t, int64(0), e.Len)
}

func TestWalkNormalizesDecomposedNames(t *testing.T) {
	root := t.TempDir()
	// NFD spelling on disk; the manifest key must be the NFC form.
	decomposed := "café.txt"
	require.NoError(t, os.WriteFile(filepath.Join(root, decomposed), []byte("x"), 0o644))

	m, err := Walk(mustOptions(t, root), Options{})
	require.NoError(t, err)

	_, ok := m.Lookup("café.txt")
	assert.True(t, ok, "path should be stored in NFC form")
}

func TestWalkProgressCallbacks(t *testing.T) {
	root := buildTree(t)

	var countEvents []Counts
	var hashEvents int
	var lastHashed, lastTotal int64

	_, err := Walk(mustOptions(t, root), Options{
		OnCounts: func(c Counts) { countEvents = append(countEvents, c) },
		OnHash: func(hashed, total int64) {
			hashEvents++
			lastHashed, lastTotal = hashed, total
		},
	})
	require.NoError(t, err)

	// One counts event per retained entry.
	require.Len(t, countEvents, 3)
	final := countEvents[len(countEvents)-1]
	assert.Equal(t, Counts{Dirs: 1, Symlinks: 1, Files: 1}, final)

	// One hash tick per chunk of a.txt; the last tick covers the file.
	assert.Equal(t, 3, hashEvents)
	assert.Equal(t, int64(2097153), lastHashed)
	assert.Equal(t, int64(2097153), lastTotal)
}

func TestWalkCallbacksDoNotAffectResult(t *testing.T) {
	root := buildTree(t)

	plain, err := Walk(mustOptions(t, root), Options{})
	require.NoError(t, err)
	observed, err := Walk(mustOptions(t, root), Options{
		OnCounts: func(Counts) {},
		OnHash:   func(int64, int64) {},
	})
	require.NoError(t, err)

	pinned := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	plain.Timestamp = pinned
	observed.Timestamp = pinned

	var a, b bytes.Buffer
	require.NoError(t, plain.Encode(&a))
	require.NoError(t, observed.Encode(&b))
	assert.Equal(t, a.String(), b.String())
}

func TestWalkMissingRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	_, err := Walk(mustOptions(t, missing), Options{})
	require.Error(t, err)

	var walkErr *WalkError
	require.ErrorAs(t, err, &walkErr)
	assert.Equal(t, "read dir", walkErr.Op)
	assert.Equal(t, missing, walkErr.Path)
}

func TestWalkDeepTree(t *testing.T) {
	root := t.TempDir()

	// Deep enough to blow a naive recursive descent on constrained stacks.
	dir := root
	for i := 0; i < 500; i++ {
		dir = filepath.Join(dir, "d")
		require.NoError(t, os.Mkdir(dir, 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leaf.txt"), []byte("leaf"), 0o644))

	m, err := Walk(mustOptions(t, root), Options{})
	require.NoError(t, err)
	assert.Equal(t, 500, m.Summary.FoundDirs)
	assert.Equal(t, 1, m.Summary.FoundFiles)
}
