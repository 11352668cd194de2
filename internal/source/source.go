// Package source reads local input files for the pipeline.
//
// Files are memory-mapped, so sampling the head of a large file for delimiter
// detection does not read the rest of it. Names ending in ".zst" are
// decompressed transparently.
package source

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/exp/mmap"
)

// CompressedSuffix marks zstd-compressed input.
const CompressedSuffix = ".zst"

// ErrSizeLimit is returned when an input, after decompression, exceeds the
// configured ceiling.
var ErrSizeLimit = errors.New("file too large")

// File provides memory-mapped read access to a local input.
type File struct {
	reader *mmap.ReaderAt
	path   string
}

// Open maps the file at path.
func Open(path string) (*File, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &File{reader: reader, path: path}, nil
}

// Name returns the file's base name, used as its display name.
func (f *File) Name() string { return filepath.Base(f.path) }

// Size returns the on-disk size.
func (f *File) Size() int64 { return int64(f.reader.Len()) }

// Compressed reports whether the file name carries CompressedSuffix.
func (f *File) Compressed() bool {
	return strings.HasSuffix(strings.ToLower(f.path), CompressedSuffix)
}

// Close unmaps the file.
func (f *File) Close() error { return f.reader.Close() }

// Head returns up to n leading bytes of the raw file.
func (f *File) Head(n int) ([]byte, error) {
	if size := f.reader.Len(); n > size {
		n = size
	}
	buf := make([]byte, n)
	if _, err := f.reader.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

// ReadAll returns the whole input, decompressed when needed. maxSize bounds
// the returned length; zero means no bound. progress, if non-nil, receives
// the percentage of the raw file consumed.
func (f *File) ReadAll(maxSize int64, progress func(int)) ([]byte, error) {
	if maxSize > 0 && !f.Compressed() && f.Size() > maxSize {
		return nil, fmt.Errorf("%s: %w", f.Name(), ErrSizeLimit)
	}

	counter := NewCountingReader(io.NewSectionReader(f.reader, 0, f.Size()), f.Size())
	counter.OnProgress = progress

	if f.Compressed() {
		return Decompress(counter, maxSize)
	}
	return io.ReadAll(counter)
}

// Load opens, reads, and closes the file at path.
func Load(path string, maxSize int64) (string, []byte, error) {
	f, err := Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	data, err := f.ReadAll(maxSize, nil)
	if err != nil {
		return "", nil, err
	}
	return f.Name(), data, nil
}
