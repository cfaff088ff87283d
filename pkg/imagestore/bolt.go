package imagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fortiblox/intcode/internal/types"
	bolt "go.etcd.io/bbolt"
)

// Bucket names for BoltDB.
var (
	// bucketImages stores gob-encoded records keyed by image id.
	bucketImages = []byte("images")

	// bucketNames maps record names to image ids.
	bucketNames = []byte("names")
)

// Config holds bolt store configuration options.
type Config struct {
	// Path is the database file path.
	Path string

	// NoSync disables fsync after each write (faster but less durable).
	NoSync bool

	// ReadOnly opens the database in read-only mode.
	ReadOnly bool

	// Timeout bounds the wait for the database file lock.
	Timeout time.Duration
}

// DefaultConfig returns the default bolt store configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:    path,
		Timeout: 5 * time.Second,
	}
}

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db     *bolt.DB
	config Config

	mu     sync.RWMutex
	closed bool
}

// Open creates or opens a bolt image store.
func Open(config Config) (*BoltStore, error) {
	if !config.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	opts := &bolt.Options{
		Timeout:  config.Timeout,
		NoSync:   config.NoSync,
		ReadOnly: config.ReadOnly,
	}
	db, err := bolt.Open(config.Path, 0600, opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &BoltStore{db: db, config: config}

	// Buckets can't be created in read-only mode; readers treat a missing
	// bucket as an empty catalog.
	if !config.ReadOnly {
		if err := store.initBuckets(); err != nil {
			db.Close()
			return nil, fmt.Errorf("init buckets: %w", err)
		}
	}
	return store, nil
}

func (s *BoltStore) initBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketImages, bucketNames} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func (s *BoltStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Put stores image under name.
func (s *BoltStore) Put(name string, image []int64) (*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rec, err := newRecord(name, image)
	if err != nil {
		return nil, err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return nil, err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		images := tx.Bucket(bucketImages)
		names := tx.Bucket(bucketNames)

		// The name moves to the new image; the image it named goes away.
		if old := names.Get([]byte(name)); old != nil && !bytesEqualID(old, rec.ID) {
			if err := images.Delete(old); err != nil {
				return err
			}
		}
		// The image may have been stored under another name.
		if prev := images.Get(rec.ID[:]); prev != nil {
			if old, err := decodeRecord(prev); err == nil && old.Name != name {
				if err := names.Delete([]byte(old.Name)); err != nil {
					return err
				}
			}
		}

		if err := images.Put(rec.ID[:], data); err != nil {
			return err
		}
		return names.Put([]byte(name), rec.ID[:])
	})
	if err != nil {
		return nil, fmt.Errorf("put image %s: %w", name, err)
	}
	return rec, nil
}

// Get retrieves a record by id.
func (s *BoltStore) Get(id types.ImageID) (*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var rec *Record
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		rec, err = getRecord(tx, id[:])
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Lookup retrieves a record by name.
func (s *BoltStore) Lookup(name string) (*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var rec *Record
	err := s.db.View(func(tx *bolt.Tx) error {
		names := tx.Bucket(bucketNames)
		if names == nil {
			return ErrNotFound
		}
		id := names.Get([]byte(name))
		if id == nil {
			return ErrNotFound
		}
		var err error
		rec, err = getRecord(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns all records ordered by name.
func (s *BoltStore) List() ([]*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var recs []*Record
	err := s.db.View(func(tx *bolt.Tx) error {
		images := tx.Bucket(bucketImages)
		if images == nil {
			return nil
		}
		return images.ForEach(func(_, v []byte) error {
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Name < recs[j].Name })
	return recs, nil
}

// Delete removes a record and its name.
func (s *BoltStore) Delete(id types.ImageID) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		images := tx.Bucket(bucketImages)
		data := images.Get(id[:])
		if data == nil {
			return ErrNotFound
		}
		if rec, err := decodeRecord(data); err == nil {
			if err := tx.Bucket(bucketNames).Delete([]byte(rec.Name)); err != nil {
				return err
			}
		}
		return images.Delete(id[:])
	})
}

// Count returns the number of stored records.
func (s *BoltStore) Count() (uint64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var n uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		if images := tx.Bucket(bucketImages); images != nil {
			n = uint64(images.Stats().KeyN)
		}
		return nil
	})
	return n, err
}

// Sync forces a sync of the database to disk.
func (s *BoltStore) Sync() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.Sync()
}

// Close shuts down the store.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.db.Close()
}

func getRecord(tx *bolt.Tx, id []byte) (*Record, error) {
	images := tx.Bucket(bucketImages)
	if images == nil {
		return nil, ErrNotFound
	}
	data := images.Get(id)
	if data == nil {
		return nil, ErrNotFound
	}
	return decodeRecord(data)
}

func bytesEqualID(b []byte, id types.ImageID) bool {
	other, err := types.ImageIDFromBytes(b)
	return err == nil && other == id
}

// Verify interface compliance.
var _ Store = (*BoltStore)(nil)
