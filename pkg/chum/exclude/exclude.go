// Package exclude compiles glob pattern sets into a single matcher tested
// against normalized relative paths.
//
// Patterns use conventional filesystem glob syntax: `*` and `?` stop at
// path separators, `**` crosses them, and character classes and brace
// alternation are supported. A path matching any pattern in the set is
// excluded from the manifest.
package exclude

import (
	"fmt"
	"sort"

	"github.com/gobwas/glob"
)

// PatternError reports an exclude pattern that failed to compile. It is
// raised during matcher construction, before any traversal begins.
type PatternError struct {
	// Pattern is the offending glob string.
	Pattern string

	// Err is the underlying compile error.
	Err error
}

// Error implements the error interface.
func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid exclude pattern %q: %v", e.Pattern, e.Err)
}

// Unwrap returns the underlying compile error.
func (e *PatternError) Unwrap() error { return e.Err }

// Matcher is a compiled exclude pattern set. It is immutable after
// construction; changing the pattern set requires building a new Matcher.
type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

// New deduplicates and compiles the given patterns into a Matcher.
// All patterns are compiled up front: a single bad pattern fails the whole
// construction with a *PatternError rather than being silently dropped.
func New(patterns []string) (*Matcher, error) {
	seen := make(map[string]struct{}, len(patterns))
	unique := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}
	sort.Strings(unique)

	globs := make([]glob.Glob, 0, len(unique))
	for _, p := range unique {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, &PatternError{Pattern: p, Err: err}
		}
		globs = append(globs, g)
	}

	return &Matcher{patterns: unique, globs: globs}, nil
}

// Match reports whether the normalized relative path matches any pattern
// in the set.
func (m *Matcher) Match(rel string) bool {
	for _, g := range m.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Patterns returns the deduplicated pattern set the matcher was built from.
// The returned slice is a copy.
func (m *Matcher) Patterns() []string {
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}
