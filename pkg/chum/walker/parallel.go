package walker

import (
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/chumlabs/chum/pkg/chum/chunkhash"
	"github.com/chumlabs/chum/pkg/chum/manifest"
	"github.com/chumlabs/chum/pkg/chum/pathnorm"
)

// walkParallel traverses with fastwalk's worker pool. Entries are inserted
// under a mutex and the manifest is sorted by Walk afterwards, so the
// result is byte-identical to a serial walk of the same tree state. The
// first error aborts the whole walk, matching the serial semantics.
func walkParallel(opts manifest.Options, wopts Options, m *manifest.Manifest) error {
	root := opts.BaseDir()

	var mu sync.Mutex
	conf := fastwalk.Config{
		Follow: false,
	}

	return fastwalk.Walk(&conf, root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return &WalkError{Op: "walk", Path: path, Err: err}
		}
		if path == root {
			return nil
		}

		rel, err := pathnorm.Relative(root, path)
		if err != nil {
			return err
		}

		if opts.Excluded(rel) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case entry.IsDir():
			add(&mu, wopts, m, manifest.Entry{Path: rel, Kind: manifest.KindDir})
			return nil

		case entry.Type()&fs.ModeSymlink != 0:
			target, err := readLink(path)
			if err != nil {
				return err
			}
			add(&mu, wopts, m, manifest.Entry{Path: rel, Kind: manifest.KindSymlink, Target: target})
			return nil

		case entry.Type().IsRegular():
			e, err := parallelFileEntry(path, rel, entry, wopts, &mu)
			if err != nil {
				return err
			}
			add(&mu, wopts, m, e)
			return nil

		default:
			logger.Debug("skipping unsupported entry", "path", rel, "type", entry.Type().String())
			return nil
		}
	})
}

// add inserts an entry and reports counts under the shared lock.
func add(mu *sync.Mutex, wopts Options, m *manifest.Manifest, e manifest.Entry) {
	mu.Lock()
	defer mu.Unlock()
	m.Add(e)
	reportCounts(wopts, m)
}

// parallelFileEntry fingerprints a file, serializing only the progress
// callback; hashing itself runs concurrently across files.
func parallelFileEntry(full, rel string, entry fs.DirEntry, wopts Options, mu *sync.Mutex) (manifest.Entry, error) {
	info, err := entry.Info()
	if err != nil {
		return manifest.Entry{}, &WalkError{Op: "stat", Path: full, Err: err}
	}

	size := info.Size()
	var hashed int64
	chain, err := chunkhash.File(full, func(n int64) {
		hashed += n
		if wopts.OnHash != nil {
			mu.Lock()
			wopts.OnHash(hashed, size)
			mu.Unlock()
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
