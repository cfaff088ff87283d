// Package types defines content identifiers for Intcode program images.
//
// An image is identified by the BLAKE3 digest of its canonical encoding: each
// word as 8 little-endian bytes, in address order. Identifiers print as
// base58, like the hashes and keys they are modelled on.
package types

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// Size constants.
const (
	ImageIDSize  = 32
	ChecksumSize = 32
)

var (
	// ErrInvalidImageID is returned when an image id has invalid length.
	ErrInvalidImageID = errors.New("invalid image id: must be 32 bytes")
)

// ImageID is the BLAKE3 digest of a program image.
type ImageID [ImageIDSize]byte

// Checksum is the SHA3-256 digest of a program image, kept alongside stored
// images to detect corruption independently of the id.
type Checksum [ChecksumSize]byte

// EncodeImage returns the canonical byte encoding of image.
func EncodeImage(image []int64) []byte {
	buf := make([]byte, 8*len(image))
	for i, w := range image {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(w))
	}
	return buf
}

// DecodeImage is the inverse of EncodeImage.
func DecodeImage(b []byte) ([]int64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("image encoding length %d is not a multiple of 8", len(b))
	}
	image := make([]int64, len(b)/8)
	for i := range image {
		image[i] = int64(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return image, nil
}

// ComputeImageID hashes image.
func ComputeImageID(image []int64) ImageID {
	return ImageID(blake3.Sum256(EncodeImage(image)))
}

// ComputeChecksum returns the SHA3-256 checksum of image.
func ComputeChecksum(image []int64) Checksum {
	return Checksum(sha3.Sum256(EncodeImage(image)))
}

// ImageIDFromBase58 parses a base58-encoded image id.
func ImageIDFromBase58(s string) (ImageID, error) {
	var id ImageID
	data, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("base58 decode: %w", err)
	}
	return ImageIDFromBytes(data)
}

// ImageIDFromBytes creates an ImageID from a byte slice.
func ImageIDFromBytes(b []byte) (ImageID, error) {
	var id ImageID
	if len(b) != ImageIDSize {
		return id, ErrInvalidImageID
	}
	copy(id[:], b)
	return id, nil
}

// String returns the base58-encoded representation.
func (id ImageID) String() string {
	return base58.Encode(id[:])
}

// Short returns the first 8 characters of the base58 form, for logs.
func (id ImageID) Short() string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Bytes returns the id as a byte slice.
func (id ImageID) Bytes() []byte {
	return id[:]
}

// IsZero returns true if the id is all zeros.
func (id ImageID) IsZero() bool {
	return id == ImageID{}
}

// String returns the base58-encoded checksum.
func (c Checksum) String() string {
	return base58.Encode(c[:])
}
