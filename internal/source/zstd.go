package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Decompress reads a zstd stream fully. maxSize bounds the decompressed
// length; zero means no bound.
func Decompress(r io.Reader, maxSize int64) ([]byte, error) {
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
	if maxSize > 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(uint64(maxSize)+1))
	}
	decoder, err := zstd.NewReader(r, opts...)
	if sizeExceeded(err) {
		return nil, ErrSizeLimit
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer decoder.Close()

	var src io.Reader = decoder
	if maxSize > 0 {
		src = io.LimitReader(decoder, maxSize+1)
	}
	data, err := io.ReadAll(src)
	if sizeExceeded(err) {
		return nil, ErrSizeLimit
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decompress zstd: %w", err)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, ErrSizeLimit
	}
	return data, nil
}

func sizeExceeded(err error) bool {
	return errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded)
}

// DecompressBytes is Decompress over an in-memory payload.
func DecompressBytes(data []byte, maxSize int64) ([]byte, error) {
	return Decompress(bytes.NewReader(data), maxSize)
}

// Compress encodes data as a single zstd frame.
func Compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}
