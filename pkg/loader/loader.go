// Package loader reads and writes Intcode program images.
//
// The text format is a single list of comma-separated signed decimal
// integers. Whitespace around numbers (including a trailing newline) is
// ignored. Files whose name ends in ".zst" are zstd-compressed text.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fortiblox/intcode/pkg/intcode"
	"github.com/klauspost/compress/zstd"
)

// CompressedSuffix marks zstd-compressed image files.
const CompressedSuffix = ".zst"

var (
	// ErrEmptyImage is returned when the input holds no numbers.
	ErrEmptyImage = errors.New("empty program image")

	// ErrImageNotFound is returned when an image file does not exist.
	ErrImageNotFound = errors.New("program image not found")

	// ErrDecompressionFailed indicates zstd decompression failed.
	ErrDecompressionFailed = errors.New("image decompression failed")
)

// ParseError reports a token that is not a signed 64-bit integer.
type ParseError struct {
	Index int    // position of the token in the list, 0-based
	Token string // offending token
	Err   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse image: token %d %q: %v", e.Index, e.Token, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse reads a program image from r.
func Parse(r io.Reader) ([]intcode.Word, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return ParseString(string(data))
}

// ParseString parses a program image from s.
func ParseString(s string) ([]intcode.Word, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyImage
	}

	tokens := strings.Split(s, ",")
	image := make([]intcode.Word, 0, len(tokens))
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, &ParseError{Index: i, Token: tok, Err: err}
		}
		image = append(image, v)
	}
	return image, nil
}

// LoadFile reads a program image from path, decompressing ".zst" files.
func LoadFile(path string) ([]intcode.Word, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, path)
		}
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, CompressedSuffix) {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
		}
		defer dec.Close()
		data, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
		}
		r = strings.NewReader(string(data))
	}

	image, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return image, nil
}

// Format renders image in the text format, without a trailing newline.
func Format(image []intcode.Word) string {
	var b strings.Builder
	for i, v := range image {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(v, 10))
	}
	return b.String()
}

// WriteFile writes image to path, compressing when path ends in ".zst".
func WriteFile(path string, image []intcode.Word) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close image: %w", cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	var w io.Writer = f
	var enc *zstd.Encoder
	if strings.HasSuffix(path, CompressedSuffix) {
		enc, err = zstd.NewWriter(f)
		if err != nil {
			return fmt.Errorf("create compressor: %w", err)
		}
		w = enc
	}

	if _, err = io.WriteString(w, Format(image)+"\n"); err != nil {
		if enc != nil {
			enc.Close()
		}
		return fmt.Errorf("write image: %w", err)
	}
	if enc != nil {
		if err = enc.Close(); err != nil {
			return fmt.Errorf("flush compressor: %w", err)
		}
	}
	return nil
}
