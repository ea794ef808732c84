// Package progress renders live scan progress as a single rewritten status
// line on a terminal stream.
//
// The reporter is purely observational: it consumes the walker's counts and
// hashing events and never feeds back into the traversal. Dropping it (or
// pointing it at io.Discard) cannot change the produced manifest.
package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/chumlabs/chum/pkg/chum/walker"
)

// Reporter writes the status line. Safe for concurrent use so the parallel
// walk can share it.
type Reporter struct {
	mu     sync.Mutex
	w      io.Writer
	counts walker.Counts
}

// New creates a Reporter writing to w, normally the process's status
// stream (stderr), keeping stdout clean for the manifest itself.
func New(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Counts handles a counts-changed event.
func (r *Reporter) Counts(c walker.Counts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = c
	r.line("")
}

// Hashed handles a bytes-hashed event for the file currently being
// fingerprinted.
func (r *Reporter) Hashed(hashed, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pct := 100.0
	if total > 0 {
		pct = 100 * float64(hashed) / float64(total)
	}
	r.line(fmt.Sprintf("; hashing... %5.1f%% %s/%s",
		pct, humanize.IBytes(uint64(hashed)), humanize.IBytes(uint64(total))))
}

// Done terminates the status line once the walk completes.
func (r *Reporter) Done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w)
}

// line rewrites the status line in place.
func (r *Reporter) line(suffix string) {
	fmt.Fprintf(r.w, "\r%6d dirs, %6d symlinks, %6d files found%-40s",
		r.counts.Dirs, r.counts.Symlinks, r.counts.Files, suffix)
}
