// Package codec implements the per-chunk compression, checksum and
// hashing primitives used by the segment and media layers. Operations
// here are pure functions over byte buffers; none of them touch a file.
package codec

import (
	"bytes"
	"compress/zlib"
	"errors"
	"io"
)

// Level selects a chunk's compression treatment, mirroring the EWF
// compression_level field.
type Level int

const (
	LevelNone Level = iota
	LevelFast
	LevelBest
	LevelEmptyBlock
)

var (
	ErrCompressionFailed   = errors.New("codec: compression failed")
	ErrDecompressionFailed = errors.New("codec: decompression failed")
)

// isAllZero reports whether src contains only zero bytes.
func isAllZero(src []byte) bool {
	for _, b := range src {
		if b != 0 {
			return false
		}
	}
	return true
}

// Compress converts src into its on-disk chunk form for the given level.
// LevelNone returns ok=false and no data. LevelEmptyBlock behaves like
// LevelFast unless src is entirely zero, in which case the whole
// all-zero chunk is compressed at zlib's best compression level.
func Compress(src []byte, level Level) (dst []byte, ok bool) {
	if level == LevelNone {
		return nil, false
	}

	zlibLevel := zlib.BestSpeed
	if level == LevelBest {
		zlibLevel = zlib.BestCompression
	}
	if level == LevelEmptyBlock && isAllZero(src) {
		// Still must decompress back to len(src) zero bytes, so the
		// compressed form only needs to encode "len(src) zero bytes";
		// zlib already does this compactly for repeated runs.
		zlibLevel = zlib.BestCompression
	}

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlibLevel)
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(src); err != nil {
		w.Close()
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// Decompress expands src, failing rather than allocating more than
// expectedSize bytes of output (bounded-decompression
// guarantee).
func Decompress(src []byte, expectedSize int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, ErrDecompressionFailed
	}
	defer r.Close()

	dst := make([]byte, expectedSize)
	n, err := io.ReadFull(r, dst)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, ErrDecompressionFailed
	}
	if n != expectedSize {
		return nil, ErrDecompressionFailed
	}

	// Confirm the stream doesn't carry more than expectedSize bytes of
	// payload; if it does, the stored size lied and decompression must
	// fail rather than silently truncate.
	var extra [1]byte
	if m, _ := r.Read(extra[:]); m > 0 {
		return nil, ErrDecompressionFailed
	}

	return dst, nil
}
