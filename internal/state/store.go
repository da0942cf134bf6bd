package state

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Store persists run snapshots.
type Store interface {
	Save(snap *Snapshot) error
	Load() (*Snapshot, error)
	Close() error
}

var (
	bucketState = []byte("state")
	keySnapshot = []byte("snapshot")
)

// OpenStore picks a store by file extension: .json for plain JSON,
// .json.gz or .gz for compressed JSON, anything else for BoltDB.
func OpenStore(path string) (Store, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		return NewFileStore(path[:len(path)-3], true), nil
	case strings.HasSuffix(lower, ".json"):
		return NewFileStore(path, false), nil
	default:
		return NewBoltStore(path)
	}
}

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore creates a new BoltDB-backed store.
func NewBoltStore(path string) (*BoltStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketState)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// Save saves the snapshot.
func (s *BoltStore) Save(snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put(keySnapshot, data)
	})
}

// Load loads the snapshot. It returns nil, nil when none was saved.
func (s *BoltStore) Load() (*Snapshot, error) {
	var snap *Snapshot

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		data := b.Get(keySnapshot)
		if data == nil {
			return nil
		}

		snap = &Snapshot{}
		return json.Unmarshal(data, snap)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// FileStore implements Store using JSON files.
type FileStore struct {
	path       string
	compressed bool
}

// NewFileStore creates a new file-based store. Compressed stores write to
// path + ".gz".
func NewFileStore(path string, compressed bool) *FileStore {
	return &FileStore{
		path:       path,
		compressed: compressed,
	}
}

// Save writes the snapshot to the file.
func (s *FileStore) Save(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if s.compressed {
		return s.saveCompressed(data)
	}
	return os.WriteFile(s.path, data, 0644)
}

func (s *FileStore) saveCompressed(data []byte) error {
	file, err := os.Create(s.path + ".gz")
	if err != nil {
		return err
	}
	defer file.Close()

	gw := gzip.NewWriter(file)
	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

// Load reads the snapshot. It returns nil, nil when the file does not exist.
func (s *FileStore) Load() (*Snapshot, error) {
	var data []byte
	var err error

	if s.compressed {
		data, err = s.loadCompressed()
	} else {
		data, err = os.ReadFile(s.path)
	}

	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *FileStore) loadCompressed() ([]byte, error) {
	file, err := os.Open(s.path + ".gz")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gr, err := gzip.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}

// Close is a no-op for FileStore.
func (s *FileStore) Close() error {
	return nil
}

// MemoryStore keeps the last snapshot in memory.
type MemoryStore struct {
	snap *Snapshot
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save keeps the snapshot.
func (s *MemoryStore) Save(snap *Snapshot) error {
	s.snap = snap
	return nil
}

// Load returns the kept snapshot.
func (s *MemoryStore) Load() (*Snapshot, error) {
	return s.snap, nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}
