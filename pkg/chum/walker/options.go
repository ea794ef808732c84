// Package walker traverses a directory tree and populates the manifest
// model: directories, symlinks (targets read raw, never followed), and
// regular files with their chunked hash chains.
//
// The default traversal is single-threaded and depth-first over an
// explicit work stack, so tree depth never translates into call-stack
// depth. An optional parallel traversal built on fastwalk produces the
// identical sorted manifest.
package walker

// Counts is a snapshot of the retained-entry counters, delivered to the
// progress callback after every insertion.
type Counts struct {
	// Dirs is the number of directory entries retained so far.
	Dirs int

	// Symlinks is the number of symlink entries retained so far.
	Symlinks int

	// Files is the number of file entries retained so far.
	Files int
}

// Options configures a walk. Callbacks are purely observational: they must
// not alter traversal behavior, and leaving them nil changes nothing about
// the produced manifest.
type Options struct {
	// OnCounts is called after every entry insertion with the updated
	// counters.
	OnCounts func(Counts)

	// OnHash is called after every chunk snapshot with the cumulative
	// bytes hashed for the current file and that file's total length.
	OnHash func(hashed, total int64)

	// Parallel selects the fastwalk-based traversal. Counters are then
	// accumulated under synchronization and the manifest is sorted after
	// all sub-walks complete, so the result is identical to a serial walk.
	Parallel bool
}
