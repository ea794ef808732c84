package manifest

import (
	"fmt"

	"github.com/chumlabs/chum/pkg/chum/chunkhash"
)

// ChangeKind classifies one difference between two manifests.
type ChangeKind string

// Change kinds, from the perspective of the newer manifest.
const (
	// ChangeAdded marks a path present only in the newer manifest.
	ChangeAdded ChangeKind = "added"

	// ChangeRemoved marks a path present only in the older manifest.
	ChangeRemoved ChangeKind = "removed"

	// ChangeModified marks a path whose kind, symlink target, file length,
	// or file content changed.
	ChangeModified ChangeKind = "modified"

	// ChangeTouched marks a file whose content is identical but whose
	// modification time drifted.
	ChangeTouched ChangeKind = "touched"
)

// Change is one detected difference between two manifests.
type Change struct {
	Path   string     `json:"path"`
	Kind   ChangeKind `json:"kind"`
	Detail string     `json:"detail,omitempty"`
}

// Diff compares an older manifest against a newer one and returns the
// differences in path order. Both manifests must be sorted.
func Diff(older, newer *Manifest) []Change {
	var changes []Change

	i, j := 0, 0
	for i < len(older.Entries) || j < len(newer.Entries) {
		switch {
		case i >= len(older.Entries):
			changes = append(changes, Change{Path: newer.Entries[j].Path, Kind: ChangeAdded})
			j++
		case j >= len(newer.Entries):
			changes = append(changes, Change{Path: older.Entries[i].Path, Kind: ChangeRemoved})
			i++
		case ComparePaths(older.Entries[i].Path, newer.Entries[j].Path) < 0:
			changes = append(changes, Change{Path: older.Entries[i].Path, Kind: ChangeRemoved})
			i++
		case ComparePaths(older.Entries[i].Path, newer.Entries[j].Path) > 0:
			changes = append(changes, Change{Path: newer.Entries[j].Path, Kind: ChangeAdded})
			j++
		default:
			if c, changed := compareEntries(older.Entries[i], newer.Entries[j]); changed {
				changes = append(changes, c)
			}
			i++
			j++
		}
	}

	return changes
}

// compareEntries reports the difference between two entries at the same path.
func compareEntries(prev, cur Entry) (Change, bool) {
	if prev.Kind != cur.Kind {
		return Change{
			Path:   cur.Path,
			Kind:   ChangeModified,
			Detail: fmt.Sprintf("kind changed from %s to %s", prev.Kind, cur.Kind),
		}, true
	}

	switch cur.Kind {
	case KindSymlink:
		if prev.Target != cur.Target {
			return Change{
				Path:   cur.Path,
				Kind:   ChangeModified,
				Detail: fmt.Sprintf("target changed from %q to %q", prev.Target, cur.Target),
			}, true
		}
	case KindFile:
		if prev.Len != cur.Len {
			return Change{
				Path:   cur.Path,
				Kind:   ChangeModified,
				Detail: fmt.Sprintf("length changed from %d to %d", prev.Len, cur.Len),
			}, true
		}
		if !prev.Hash.Equal(cur.Hash) {
			return Change{
				Path:   cur.Path,
				Kind:   ChangeModified,
				Detail: fmt.Sprintf("content changed at chunk %d", firstDivergentChunk(prev, cur)),
			}, true
		}
		if !prev.MTime.Equal(cur.MTime) {
			return Change{
				Path:   cur.Path,
				Kind:   ChangeTouched,
				Detail: fmt.Sprintf("mtime changed from %s to %s", formatTime(prev.MTime), formatTime(cur.MTime)),
			}, true
		}
	}

	return Change{}, false
}

// firstDivergentChunk returns the index of the first chunk whose snapshots
// disagree. The chain makes this cheap: leading snapshots of an intact
// prefix are identical.
func firstDivergentChunk(prev, cur Entry) int {
	n := prev.Hash.Snapshots()
	if m := cur.Hash.Snapshots(); m < n {
		n = m
	}
	for i := 0; i < n; i++ {
		lo, hi := i*chunkhash.SnapshotSize, (i+1)*chunkhash.SnapshotSize
		if !prev.Hash[lo:hi].Equal(cur.Hash[lo:hi]) {
			return i
		}
	}
	return n
}
