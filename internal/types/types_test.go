package types

import (
	"errors"
	"reflect"
	"testing"
)

func TestImageIDDeterministic(t *testing.T) {
	a := ComputeImageID([]int64{1, 0, 0, 0, 99})
	b := ComputeImageID([]int64{1, 0, 0, 0, 99})
	c := ComputeImageID([]int64{2, 0, 0, 0, 99})

	if a != b {
		t.Errorf("same image hashed to %s and %s", a, b)
	}
	if a == c {
		t.Error("different images share an id")
	}
	if a.IsZero() {
		t.Error("IsZero() = true for a computed id")
	}
	if !(ImageID{}).IsZero() {
		t.Error("IsZero() = false for the zero id")
	}
}

func TestImageIDBase58RoundTrip(t *testing.T) {
	id := ComputeImageID([]int64{104, 1125899906842624, 99})

	parsed, err := ImageIDFromBase58(id.String())
	if err != nil {
		t.Fatalf("ImageIDFromBase58() failed: %v", err)
	}
	if parsed != id {
		t.Errorf("ImageIDFromBase58() = %s, want %s", parsed, id)
	}
	if len(id.Short()) != 8 {
		t.Errorf("Short() = %q, want 8 characters", id.Short())
	}
}

func TestImageIDFromBase58Invalid(t *testing.T) {
	if _, err := ImageIDFromBase58("0OIl"); err == nil {
		t.Error("ImageIDFromBase58() accepted characters outside the alphabet")
	}
	if _, err := ImageIDFromBase58("3mJr7AoUXx2Wqd"); !errors.Is(err, ErrInvalidImageID) {
		t.Errorf("ImageIDFromBase58() = %v, want ErrInvalidImageID", err)
	}
}

func TestEncodeDecodeImage(t *testing.T) {
	image := []int64{-1, 0, 1219070632396864, -9223372036854775808}

	enc := EncodeImage(image)
	if len(enc) != 32 {
		t.Fatalf("len(EncodeImage()) = %d, want 32", len(enc))
	}
	dec, err := DecodeImage(enc)
	if err != nil {
		t.Fatalf("DecodeImage() failed: %v", err)
	}
	if !reflect.DeepEqual(dec, image) {
		t.Errorf("DecodeImage() = %v, want %v", dec, image)
	}

	if _, err := DecodeImage(enc[:5]); err == nil {
		t.Error("DecodeImage() accepted a truncated encoding")
	}
}

func TestChecksum(t *testing.T) {
	a := ComputeChecksum([]int64{3, 0, 4, 0, 99})
	b := ComputeChecksum([]int64{3, 0, 4, 0, 98})
	if a == b {
		t.Error("different images share a checksum")
	}
	if a.String() == "" {
		t.Error("String() is empty")
	}
}
