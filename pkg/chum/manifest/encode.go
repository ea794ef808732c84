package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chumlabs/chum/pkg/chum/chunkhash"
)

// jsonManifest is the persisted document shape.
type jsonManifest struct {
	Timestamp      string      `json:"timestamp"`
	BaseDir        string      `json:"base_dir"`
	ExcludeSet     []string    `json:"exclude_set"`
	FoundDirs      int         `json:"found_dirs"`
	FoundSymlinks  int         `json:"found_symlinks"`
	FoundFiles     int         `json:"found_files"`
	FilesTotalSize int64       `json:"files_total_size"`
	Entries        []jsonEntry `json:"entries"`
}

// jsonEntry is one persisted entry. Fields beyond path and kind are
// kind-specific; pointers keep zero values (len=0, empty hash) present in
// the output for file entries while omitting them for the other kinds.
type jsonEntry struct {
	Path   string  `json:"path"`
	Kind   Kind    `json:"kind"`
	Target *string `json:"target,omitempty"`
	Len    *int64  `json:"len,omitempty"`
	MTime  *string `json:"mtime,omitempty"`
	Hash   *string `json:"hash,omitempty"`
}

// Encode renders the manifest as an indented JSON document, preserving the
// model's path ordering in the entries array.
func (m *Manifest) Encode(w io.Writer) error {
	doc := jsonManifest{
		Timestamp:      formatTime(m.Timestamp),
		BaseDir:        m.BaseDir,
		ExcludeSet:     m.ExcludeSet,
		FoundDirs:      m.Summary.FoundDirs,
		FoundSymlinks:  m.Summary.FoundSymlinks,
		FoundFiles:     m.Summary.FoundFiles,
		FilesTotalSize: m.Summary.FilesTotalSize,
		Entries:        make([]jsonEntry, 0, len(m.Entries)),
	}
	if doc.ExcludeSet == nil {
		doc.ExcludeSet = []string{}
	}

	for _, e := range m.Entries {
		je := jsonEntry{Path: e.Path, Kind: e.Kind}
		switch e.Kind {
		case KindDir:
		case KindSymlink:
			target := e.Target
			je.Target = &target
		case KindFile:
			length := e.Len
			mtime := formatTime(e.MTime)
			hash := e.Hash.Hex()
			je.Len = &length
			je.MTime = &mtime
			je.Hash = &hash
		default:
			return fmt.Errorf("entry %q has unknown kind %q", e.Path, e.Kind)
		}
		doc.Entries = append(doc.Entries, je)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return nil
}

// Decode reads a persisted manifest document back into the model form.
func Decode(r io.Reader) (*Manifest, error) {
	var doc jsonManifest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	ts, err := parseTime(doc.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("manifest timestamp: %w", err)
	}

	m := &Manifest{
		Timestamp:  ts,
		BaseDir:    doc.BaseDir,
		ExcludeSet: doc.ExcludeSet,
		Summary: Summary{
			FoundDirs:      doc.FoundDirs,
			FoundSymlinks:  doc.FoundSymlinks,
			FoundFiles:     doc.FoundFiles,
			FilesTotalSize: doc.FilesTotalSize,
		},
		Entries: make([]Entry, 0, len(doc.Entries)),
	}

	for _, je := range doc.Entries {
		e := Entry{Path: je.Path, Kind: je.Kind}
		switch je.Kind {
		case KindDir:
		case KindSymlink:
			if je.Target != nil {
				e.Target = *je.Target
			}
		case KindFile:
			if je.Len != nil {
				e.Len = *je.Len
			}
			if je.MTime != nil {
				if e.MTime, err = parseTime(*je.MTime); err != nil {
					return nil, fmt.Errorf("entry %q mtime: %w", je.Path, err)
				}
			}
			if je.Hash != nil {
				if e.Hash, err = chunkhash.ParseHex(*je.Hash); err != nil {
					return nil, fmt.Errorf("entry %q: %w", je.Path, err)
				}
			}
		default:
			return nil, fmt.Errorf("entry %q has unknown kind %q", je.Path, je.Kind)
		}
		m.Entries = append(m.Entries, e)
	}

	m.Sort()
	return m, nil
}

// Load reads and decodes the manifest document at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// formatTime renders an instant as RFC 3339 UTC, with sub-second digits
// only when they are non-zero.
func formatTime(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond() == 0 {
		return t.Format(time.RFC3339)
	}
	return t.Format(time.RFC3339Nano)
}

// parseTime accepts both the whole-second and sub-second renderings.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
