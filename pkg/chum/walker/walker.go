package walker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/chumlabs/chum/pkg/chum/chunkhash"
	"github.com/chumlabs/chum/pkg/chum/logging"
	"github.com/chumlabs/chum/pkg/chum/manifest"
	"github.com/chumlabs/chum/pkg/chum/pathnorm"
)

// logger is the package-level logger for traversal events.
var logger = logging.Get("walker")

// WalkError reports a fatal traversal failure at a specific path. Any I/O
// error while reading a directory, link target, metadata, or file content
// aborts the whole walk; there is no partial-success mode.
type WalkError struct {
	// Op names the failed operation (read dir, read link, stat, hash).
	Op string

	// Path is the offending filesystem path.
	Path string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *WalkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *WalkError) Unwrap() error { return e.Err }

// Walk scans the tree rooted at opts.BaseDir() and returns the populated,
// sorted manifest. The first fatal error discards the in-progress manifest.
func Walk(opts manifest.Options, wopts Options) (*manifest.Manifest, error) {
	m := manifest.New(opts)

	var err error
	if wopts.Parallel {
		err = walkParallel(opts, wopts, m)
	} else {
		err = walkSerial(opts, wopts, m)
	}
	if err != nil {
		return nil, err
	}

	m.Sort()
	return m, nil
}

// frame is one suspended directory iteration on the work stack. rel is the
// directory's normalized relative path, empty for the root itself.
type frame struct {
	dir     string
	rel     string
	entries []fs.DirEntry
	next    int
}

// walkSerial is the depth-first traversal over an explicit stack of
// directory frames. Descending into a child directory pushes a frame and
// resumes the parent's remaining siblings later, so pathologically deep
// trees cannot exhaust the call stack.
func walkSerial(opts manifest.Options, wopts Options, m *manifest.Manifest) error {
	root := opts.BaseDir()

	stack := make([]*frame, 0, 16)
	f, err := readFrame(root, "")
	if err != nil {
		return err
	}
	stack = append(stack, f)

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next >= len(top.entries) {
			stack = stack[:len(stack)-1]
			continue
		}

		entry := top.entries[top.next]
		top.next++

		descend, err := visit(opts, wopts, m, top, entry)
		if err != nil {
			return err
		}
		if descend != nil {
			stack = append(stack, descend)
		}
	}

	return nil
}

// readFrame enumerates a directory into a fresh stack frame.
func readFrame(dir, rel string) (*frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &WalkError{Op: "read dir", Path: dir, Err: err}
	}
	return &frame{dir: dir, rel: rel, entries: entries}, nil
}

// visit classifies and records a single directory entry. It returns the
// child frame to descend into when the entry is a retained directory.
func visit(opts manifest.Options, wopts Options, m *manifest.Manifest, parent *frame, entry fs.DirEntry) (descend *frame, err error) {
	full := filepath.Join(parent.dir, entry.Name())

	name, err := pathnorm.Normalize(entry.Name())
	if err != nil {
		return nil, err
	}
	rel := pathnorm.Join(parent.rel, name)

	// Exclusion is decided before any side effect: an excluded directory's
	// whole subtree is never visited, and nothing excluded is counted.
	if opts.Excluded(rel) {
		return nil, nil
	}

	switch {
	case entry.IsDir():
		m.Add(manifest.Entry{Path: rel, Kind: manifest.KindDir})
		reportCounts(wopts, m)
		return readFrame(full, rel)

	case entry.Type()&fs.ModeSymlink != 0:
		// The raw target is recorded as-is; a dangling target is fine.
		target, err := readLink(full)
		if err != nil {
			return nil, err
		}
		m.Add(manifest.Entry{Path: rel, Kind: manifest.KindSymlink, Target: target})
		reportCounts(wopts, m)
		return nil, nil

	case entry.Type().IsRegular():
		e, err := fileEntry(full, rel, entry, wopts)
		if err != nil {
			return nil, err
		}
		m.Add(e)
		reportCounts(wopts, m)
		return nil, nil

	default:
		// Device nodes, sockets, FIFOs: not recorded, not counted.
		logger.Debug("skipping unsupported entry", "path", rel, "type", entry.Type().String())
		return nil, nil
	}
}

// readLink reads a symlink's raw target without following or normalizing it.
func readLink(path string) (string, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return "", &WalkError{Op: "read link", Path: path, Err: err}
	}
	return target, nil
}

// fileEntry reads a regular file's metadata and fingerprints its content.
func fileEntry(full, rel string, entry fs.DirEntry, wopts Options) (manifest.Entry, error) {
	info, err := entry.Info()
	if err != nil {
		return manifest.Entry{}, &WalkError{Op: "stat", Path: full, Err: err}
	}

	size := info.Size()
	var hashed int64
	chain, err := chunkhash.File(full, func(n int64) {
		hashed += n
		if wopts.OnHash != nil {
			wopts.OnHash(hashed, size)
		}
	})
	if err != nil {
		return manifest.Entry{}, &WalkError{Op: "hash", Path: full, Err: err}
	}

	return manifest.Entry{
		Path:  rel,
		Kind:  manifest.KindFile,
		Len:   size,
		MTime: info.ModTime().UTC(),
		Hash:  chain,
	}, nil
}

// reportCounts delivers the updated counters to the progress callback.
func reportCounts(wopts Options, m *manifest.Manifest) {
	if wopts.OnCounts == nil {
		return
	}
	wopts.OnCounts(Counts{
		Dirs:     m.Summary.FoundDirs,
		Symlinks: m.Summary.FoundSymlinks,
		Files:    m.Summary.FoundFiles,
	})
}
