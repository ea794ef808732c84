// Package pathnorm canonicalizes filesystem paths into the relative,
// NFC-normalized, slash-separated form used as manifest keys.
//
// Different filesystems may store visually identical names using different
// Unicode decompositions (macOS famously stores NFD). Normalizing to NFC
// guarantees that exclusion patterns and manifest paths compare equal for
// equivalent text, whichever platform produced the tree.
package pathnorm

import (
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// EncodingError reports a path whose bytes are not valid UTF-8 and therefore
// cannot be normalized. It is recoverable by the caller; it never panics the
// traversal.
type EncodingError struct {
	// Path is the offending path as read from the filesystem.
	Path string
}

// Error implements the error interface.
func (e *EncodingError) Error() string {
	return fmt.Sprintf("path is not valid UTF-8: %q", e.Path)
}

// Relative strips the root prefix from path and returns the NFC-normalized
// relative form with forward-slash separators. The path must be located
// beneath root.
//
// Returns an *EncodingError if the path bytes cannot be interpreted as
// valid Unicode text.
func Relative(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("relativize %q against %q: %w", path, root, err)
	}
	return Normalize(filepath.ToSlash(rel))
}

// Normalize applies Unicode canonical composition (NFC) to an already
// relative, slash-separated path string.
func Normalize(rel string) (string, error) {
	if !utf8.ValidString(rel) {
		return "", &EncodingError{Path: rel}
	}
	if norm.NFC.IsNormalString(rel) {
		return rel, nil
	}
	return norm.NFC.String(rel), nil
}

// Join appends a child name to a normalized relative path. The parent may be
// empty, denoting the root itself.
func Join(parent, name string) string {
	if parent == "" || parent == "." {
		return name
	}
	return parent + "/" + name
}
