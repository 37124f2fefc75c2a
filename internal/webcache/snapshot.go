package webcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var bucketEntries = []byte("entries")

// Snapshot persists cache entries so a restarted process can serve stale
// data when the website is unreachable.
type Snapshot struct {
	db *bbolt.DB
}

// DefaultSnapshotPath returns ~/.civic/webcache.db.
func DefaultSnapshotPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("webcache: resolve home: %w", err)
	}
	return filepath.Join(home, ".civic", "webcache.db"), nil
}

// OpenSnapshot opens or creates the snapshot database at path.
func OpenSnapshot(path string) (*Snapshot, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("webcache: create snapshot dir: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("webcache: open snapshot %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("webcache: init snapshot: %w", err)
	}
	return &Snapshot{db: db}, nil
}

// Save writes entry under key, replacing any previous value.
func (s *Snapshot) Save(key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("webcache: encode entry %q: %w", key, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntries).Put([]byte(key), data)
	})
}

// LoadAll returns every persisted entry. Undecodable entries are skipped.
func (s *Snapshot) LoadAll() (map[string]*Entry, error) {
	out := make(map[string]*Entry)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil
			}
			out[string(k)] = &e
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("webcache: read snapshot: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *Snapshot) Close() error {
	return s.db.Close()
}
