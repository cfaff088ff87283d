package imagestore

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/fortiblox/intcode/internal/types"
)

// Key prefixes for BadgerDB storage.
var (
	// prefixImage is the prefix for records.
	// Key format: prefixImage + image id (32 bytes)
	prefixImage = []byte{0x01}

	// prefixName is the prefix for the name index.
	// Key format: prefixName + name, value: image id
	prefixName = []byte{0x02}
)

// BadgerConfig contains configuration for the badger store.
type BadgerConfig struct {
	// Path is the directory path for the database.
	Path string

	// InMemory runs the database in memory (for testing).
	InMemory bool

	// SyncWrites ensures writes are synced to disk.
	SyncWrites bool

	// Logger is an optional logger. Set to nil to disable logging.
	Logger badger.Logger
}

// DefaultBadgerConfig returns default configuration.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:       path,
		SyncWrites: true,
	}
}

// BadgerStore implements Store using BadgerDB.
type BadgerStore struct {
	db *badger.DB

	// count is cached in memory
	count atomic.Uint64

	// mu serialises writers so count stays exact
	mu sync.Mutex

	closed atomic.Bool
}

// OpenBadger creates or opens a badger image store.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(cfg.Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := &BadgerStore{db: db}
	if err := s.loadCount(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load count: %w", err)
	}
	return s, nil
}

// loadCount counts stored records.
func (s *BadgerStore) loadCount() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixImage
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var n uint64
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		s.count.Store(n)
		return nil
	})
}

func imageKey(id []byte) []byte {
	key := make([]byte, 0, 1+len(id))
	key = append(key, prefixImage...)
	return append(key, id...)
}

func nameKey(name string) []byte {
	key := make([]byte, 0, 1+len(name))
	key = append(key, prefixName...)
	return append(key, name...)
}

// getValue returns a copy of the value at key, or nil if absent.
func getValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Put stores image under name.
func (s *BadgerStore) Put(name string, image []int64) (*Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rec, err := newRecord(name, image)
	if err != nil {
		return nil, err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var added, removed bool
	err = s.db.Update(func(txn *badger.Txn) error {
		// The name moves to the new image; the image it named goes away.
		old, err := getValue(txn, nameKey(name))
		if err != nil {
			return err
		}
		if old != nil && !bytesEqualID(old, rec.ID) {
			if err := txn.Delete(imageKey(old)); err != nil {
				return err
			}
			removed = true
		}

		// The image may have been stored under another name.
		prev, err := getValue(txn, imageKey(rec.ID[:]))
		if err != nil {
			return err
		}
		if prev == nil {
			added = true
		} else if prevRec, err := decodeRecord(prev); err == nil && prevRec.Name != name {
			if err := txn.Delete(nameKey(prevRec.Name)); err != nil {
				return err
			}
		}

		if err := txn.Set(imageKey(rec.ID[:]), data); err != nil {
			return err
		}
		return txn.Set(nameKey(name), rec.ID[:])
	})
	if err != nil {
		return nil, fmt.Errorf("put image %s: %w", name, err)
	}

	if added {
		s.count.Add(1)
	}
	if removed {
		s.count.Add(^uint64(0)) // Decrement
	}
	return rec, nil
}

// Get retrieves a record by id.
func (s *BadgerStore) Get(id types.ImageID) (*Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var rec *Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = s.getRecord(txn, id[:])
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Lookup retrieves a record by name.
func (s *BadgerStore) Lookup(name string) (*Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var rec *Record
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getValue(txn, nameKey(name))
		if err != nil {
			return err
		}
		if id == nil {
			return ErrNotFound
		}
		rec, err = s.getRecord(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *BadgerStore) getRecord(txn *badger.Txn, id []byte) (*Record, error) {
	data, err := getValue(txn, imageKey(id))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNotFound
	}
	return decodeRecord(data)
}

// List returns all records ordered by name.
func (s *BadgerStore) List() ([]*Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var recs []*Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixImage
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec, err := decodeRecord(val)
				if err != nil {
					return err
				}
				recs = append(recs, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Name < recs[j].Name })
	return recs, nil
}

// Delete removes a record and its name.
func (s *BadgerStore) Delete(id types.ImageID) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		data, err := getValue(txn, imageKey(id[:]))
		if err != nil {
			return err
		}
		if data == nil {
			return ErrNotFound
		}
		if rec, err := decodeRecord(data); err == nil {
			if err := txn.Delete(nameKey(rec.Name)); err != nil {
				return err
			}
		}
		return txn.Delete(imageKey(id[:]))
	})
	if err != nil {
		return err
	}
	s.count.Add(^uint64(0)) // Decrement
	return nil
}

// Count returns the number of stored records.
func (s *BadgerStore) Count() (uint64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	return s.count.Load(), nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// Verify interface compliance.
var _ Store = (*BadgerStore)(nil)
