// Package imagestore provides a persistent catalog of Intcode program images.
//
// Images are content addressed: a record's ID is the BLAKE3 digest of its
// words, and each record also carries a SHA3 checksum that is verified on
// every read. A record additionally has a unique name. Names and images map
// one to one; storing an image under a name that already refers to another
// image replaces that image.
//
// Only program images are stored, never machine state.
package imagestore

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fortiblox/intcode/internal/types"
)

var (
	// ErrNotFound is returned when an image doesn't exist.
	ErrNotFound = errors.New("image not found")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("image store closed")

	// ErrCorrupt is returned when a stored record fails verification.
	ErrCorrupt = errors.New("image record corrupt")

	// ErrEmptyName is returned when storing an image without a name.
	ErrEmptyName = errors.New("image name is empty")

	// ErrEmptyImage is returned when storing an image with no words.
	ErrEmptyImage = errors.New("image has no words")

	// ErrUnknownBackend is returned by OpenStore for an unsupported backend.
	ErrUnknownBackend = errors.New("unknown store backend")
)

// Backend names accepted by OpenStore.
const (
	BackendBolt   = "bolt"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Record is a stored program image.
type Record struct {
	// ID is the content address of Words.
	ID types.ImageID

	// Name is the unique catalog name.
	Name string

	// Words is the program image.
	Words []int64

	// Checksum is the SHA3-256 digest of Words.
	Checksum types.Checksum

	// CreatedAt is the Unix time the record was stored.
	CreatedAt int64
}

// Verify checks that the record's ID and checksum match its words.
func (r *Record) Verify() error {
	if types.ComputeChecksum(r.Words) != r.Checksum {
		return fmt.Errorf("%w: checksum mismatch for %s", ErrCorrupt, r.ID)
	}
	if types.ComputeImageID(r.Words) != r.ID {
		return fmt.Errorf("%w: id mismatch for %s", ErrCorrupt, r.Name)
	}
	return nil
}

// Store is the image catalog interface.
type Store interface {
	// Put stores image under name and returns the stored record.
	Put(name string, image []int64) (*Record, error)

	// Get returns the record with the given id.
	Get(id types.ImageID) (*Record, error)

	// Lookup returns the record stored under name.
	Lookup(name string) (*Record, error)

	// List returns every record, ordered by name.
	List() ([]*Record, error)

	// Delete removes the record with the given id and its name.
	Delete(id types.ImageID) error

	// Count returns the number of stored records.
	Count() (uint64, error)

	// Close releases the store.
	Close() error
}

// OpenStore opens a store of the named backend at path. The memory backend
// ignores path.
func OpenStore(backend, path string) (Store, error) {
	switch strings.ToLower(backend) {
	case BackendBolt:
		return Open(DefaultConfig(path))
	case BackendBadger:
		return OpenBadger(DefaultBadgerConfig(path))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// newRecord validates name and image and builds a record for them.
func newRecord(name string, image []int64) (*Record, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	words := append([]int64(nil), image...)
	return &Record{
		ID:        types.ComputeImageID(words),
		Name:      name,
		Words:     words,
		Checksum:  types.ComputeChecksum(words),
		CreatedAt: time.Now().Unix(),
	}, nil
}

func encodeRecord(r *Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeRecord decodes and verifies a stored record.
func decodeRecord(data []byte) (*Record, error) {
	var r Record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := r.Verify(); err != nil {
		return nil, err
	}
	return &r, nil
}
