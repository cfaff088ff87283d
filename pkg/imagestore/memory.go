package imagestore

import (
	"sort"
	"sync"

	"github.com/fortiblox/intcode/internal/types"
)

// MemoryStore is a Store kept entirely in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[types.ImageID]*Record
	names   map[string]types.ImageID
	closed  bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[types.ImageID]*Record),
		names:   make(map[string]types.ImageID),
	}
}

// Put stores image under name.
func (s *MemoryStore) Put(name string, image []int64) (*Record, error) {
	rec, err := newRecord(name, image)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	if old, ok := s.names[name]; ok && old != rec.ID {
		delete(s.records, old)
	}
	if prev, ok := s.records[rec.ID]; ok && prev.Name != name {
		delete(s.names, prev.Name)
	}
	s.records[rec.ID] = rec
	s.names[name] = rec.ID
	return copyRecord(rec), nil
}

// Get retrieves a record by id.
func (s *MemoryStore) Get(id types.ImageID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

// Lookup retrieves a record by name.
func (s *MemoryStore) Lookup(name string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	id, ok := s.names[name]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(s.records[id]), nil
}

// List returns all records ordered by name.
func (s *MemoryStore) List() ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	recs := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, copyRecord(rec))
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Name < recs[j].Name })
	return recs, nil
}

// Delete removes a record and its name.
func (s *MemoryStore) Delete(id types.ImageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.names, rec.Name)
	delete(s.records, id)
	return nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return uint64(len(s.records)), nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func copyRecord(r *Record) *Record {
	c := *r
	c.Words = append([]int64(nil), r.Words...)
	return &c
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
