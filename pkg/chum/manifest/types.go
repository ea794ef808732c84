// Package manifest defines the ordered directory-tree manifest model, its
// persisted JSON document form, and manifest comparison.
//
// A manifest records every sub-directory, symlink, and regular file beneath
// a base directory. Entries are keyed by normalized relative path and held
// in path order, so any two manifests of the same tree state serialize
// byte-identically regardless of the order the filesystem enumerated
// directory entries in.
package manifest

import (
	"sort"
	"time"

	"github.com/chumlabs/chum/pkg/chum/chunkhash"
	"github.com/chumlabs/chum/pkg/chum/exclude"
)

// Kind discriminates manifest entry variants.
type Kind string

// Entry kinds.
const (
	KindDir     Kind = "dir"
	KindSymlink Kind = "symlink"
	KindFile    Kind = "file"
)

// Entry is one manifest row, keyed by its normalized relative path. Exactly
// one path exists per entry; the payload depends on Kind.
type Entry struct {
	// Path is the NFC-normalized, slash-separated path relative to the
	// manifest's base directory.
	Path string

	// Kind classifies the entry.
	Kind Kind

	// Target is the raw symlink target as read from the filesystem, not
	// resolved or normalized. Set only for KindSymlink.
	Target string

	// Len is the file's byte length at time of read. Set only for KindFile.
	Len int64

	// MTime is the file's last-modified time in UTC. Set only for KindFile.
	MTime time.Time

	// Hash is the file's chunked hash chain. Set only for KindFile; empty
	// for zero-length files.
	Hash chunkhash.Chain
}

// Options is the immutable per-run configuration: the absolute base
// directory plus the deduplicated exclude pattern set and its compiled
// matcher. The matcher is always consistent with the pattern set; changing
// patterns means constructing a new Options value.
type Options struct {
	baseDir string
	matcher *exclude.Matcher
}

// NewOptions builds run options for the given absolute base directory and
// exclude glob patterns. An unparsable pattern fails with an
// *exclude.PatternError before any traversal work is done.
func NewOptions(baseDir string, excludePatterns []string) (Options, error) {
	m, err := exclude.New(excludePatterns)
	if err != nil {
		return Options{}, err
	}
	return Options{baseDir: baseDir, matcher: m}, nil
}

// BaseDir returns the absolute root path of the run.
func (o Options) BaseDir() string { return o.baseDir }

// ExcludeSet returns the deduplicated exclude pattern set.
func (o Options) ExcludeSet() []string { return o.matcher.Patterns() }

// Excluded reports whether the normalized relative path matches any
// exclude pattern.
func (o Options) Excluded(rel string) bool { return o.matcher.Match(rel) }

// Summary holds the run counters. Each counter equals the number of
// corresponding entries actually retained in the manifest, and
// FilesTotalSize is the exact sum of Len over all file entries.
type Summary struct {
	FoundDirs      int   `json:"found_dirs"`
	FoundSymlinks  int   `json:"found_symlinks"`
	FoundFiles     int   `json:"found_files"`
	FilesTotalSize int64 `json:"files_total_size"`
}

// Manifest is the in-memory manifest model: run metadata, summary counters,
// and the entries discovered by a single traversal. Entries are inserted
// monotonically during the walk and sorted by path before serialization.
type Manifest struct {
	// Timestamp is the run start instant, in UTC.
	Timestamp time.Time

	// BaseDir is the absolute root the tree was scanned from.
	BaseDir string

	// ExcludeSet is the deduplicated exclude pattern set of the run.
	ExcludeSet []string

	// Summary holds the run counters.
	Summary Summary

	// Entries holds the retained entries. Sorted by Path after the
	// populating walk completes.
	Entries []Entry
}

// New creates an empty manifest for the given run options, stamped with
// the current UTC time.
func New(opts Options) *Manifest {
	return &Manifest{
		Timestamp:  time.Now().UTC(),
		BaseDir:    opts.BaseDir(),
		ExcludeSet: opts.ExcludeSet(),
	}
}

// Add inserts an entry and updates the summary counters to match. Exclusion
// decisions belong to the caller: everything added is retained.
func (m *Manifest) Add(e Entry) {
	switch e.Kind {
	case KindDir:
		m.Summary.FoundDirs++
	case KindSymlink:
		m.Summary.FoundSymlinks++
	case KindFile:
		m.Summary.FoundFiles++
		m.Summary.FilesTotalSize += e.Len
	}
	m.Entries = append(m.Entries, e)
}

// ComparePaths orders normalized relative paths component by component:
// each /-separated component is compared byte-wise, and a path sorts before
// any longer path it is a prefix of. Equivalently, the separator orders
// below every other byte, so a directory's subtree stays contiguous
// ("foo/bar" sorts before the sibling "foo.txt"). Returns -1, 0, or 1.
func ComparePaths(a, b string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		ca, cb := a[i], b[i]
		if ca == cb {
			continue
		}
		switch {
		case ca == '/':
			return -1
		case cb == '/':
			return 1
		case ca < cb:
			return -1
		default:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// Sort orders entries by ComparePaths over their normalized paths. It must
// be called once traversal completes and before the manifest is serialized
// or compared.
func (m *Manifest) Sort() {
	sort.Slice(m.Entries, func(i, j int) bool {
		return ComparePaths(m.Entries[i].Path, m.Entries[j].Path) < 0
	})
}

// Lookup returns the entry at the given normalized relative path. The
// manifest must be sorted.
func (m *Manifest) Lookup(path string) (Entry, bool) {
	i := sort.Search(len(m.Entries), func(i int) bool {
		return ComparePaths(m.Entries[i].Path, path) >= 0
	})
	if i < len(m.Entries) && m.Entries[i].Path == path {
		return m.Entries[i], true
	}
	return Entry{}, false
}
