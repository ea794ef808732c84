// Package store persists manifest snapshots in a local Badger database so
// a tree can later be verified against a historical scan without keeping
// loose JSON files around.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/chumlabs/chum/pkg/chum/manifest"
)

// Key prefixes for the two record types.
const (
	prefixManifest = "m:" // m:<id> -> manifest JSON document
	prefixIndex    = "i:" // i:<id> -> snapshot metadata JSON
)

// ErrNotFound is returned when no snapshot exists for the requested ID.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is the listing metadata of one stored manifest.
type Snapshot struct {
	// ID is the snapshot's identifier, assigned at save time.
	ID string `json:"id"`

	// Timestamp is the manifest's run start instant.
	Timestamp time.Time `json:"timestamp"`

	// BaseDir is the scanned root.
	BaseDir string `json:"base_dir"`

	// Summary carries the manifest's counters.
	Summary manifest.Summary `json:"summary"`
}

// Store is a snapshot archive backed by Badger.
type Store struct {
	db *badger.DB
}

// Open opens or creates a store at the given directory.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores the manifest and returns its assigned snapshot ID.
func (s *Store) Save(m *manifest.Manifest) (string, error) {
	id := uuid.NewString()

	var doc bytes.Buffer
	if err := m.Encode(&doc); err != nil {
		return "", err
	}

	meta, err := json.Marshal(Snapshot{
		ID:        id,
		Timestamp: m.Timestamp,
		BaseDir:   m.BaseDir,
		Summary:   m.Summary,
	})
	if err != nil {
		return "", fmt.Errorf("marshal snapshot metadata: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(prefixManifest+id), doc.Bytes()); err != nil {
			return err
		}
		return txn.Set([]byte(prefixIndex+id), meta)
	})
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	return id, nil
}

// Get loads the manifest stored under the given snapshot ID.
func (s *Store) Get(id string) (*manifest.Manifest, error) {
	var m *manifest.Manifest

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixManifest + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			m, err = manifest.Decode(bytes.NewReader(val))
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// List returns metadata for all stored snapshots, newest first.
func (s *Store) List() ([]Snapshot, error) {
	var snaps []Snapshot

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixIndex)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var snap Snapshot
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			})
			if err != nil {
				return err
			}
			snaps = append(snaps, snap)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Timestamp.After(snaps[j].Timestamp)
	})
	return snaps, nil
}
