package media

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ewf-forensics/goewf/internal/chunkindex"
	"github.com/ewf-forensics/goewf/internal/codec"
	"github.com/ewf-forensics/goewf/internal/segment"
)

// Params is the geometry the engine needs to translate byte offsets to
// chunk numbers and back. It mirrors the relevant subset
// of the public ewf.Geometry without importing it, since the root
// package imports this one.
type Params struct {
	SectorSize   uint32
	ChunkSectors uint32
	Compression  codec.Level
	MediaSize    uint64 // 0 if not yet known (streaming acquisition)
}

// ChunkSize returns the uncompressed size of one chunk in bytes.
func (p Params) ChunkSize() uint32 { return p.SectorSize * p.ChunkSectors }

// Engine is the media data stream: it turns byte-range reads and
// writes into chunk-indexed, pooled segment file I/O, with a
// bounded cache in front of the decompress/checksum-verify path.
type Engine struct {
	params Params
	index  *chunkindex.Index
	pool   *segment.Pool
	cache  *Cache

	mediaSize           uint64
	zeroOnChecksumError bool
	onChecksumError     func(chunkNumber uint64)
}

// NewEngine wires an Engine over an already-built chunk index and
// segment pool.
func NewEngine(params Params, index *chunkindex.Index, pool *segment.Pool, cacheCapacity int) *Engine {
	return &Engine{
		params:    params,
		index:     index,
		pool:      pool,
		cache:     NewCache(cacheCapacity),
		mediaSize: params.MediaSize,
	}
}

// SetMediaSize updates the exact addressable media size used to clamp
// and truncate reads. The handle calls it when its media size or
// sector count is set through the geometry setters; write finalize
// does not call it. Callers serialize this against ReadAt
// themselves; the engine has no internal lock of its own.
func (e *Engine) SetMediaSize(n uint64) { e.mediaSize = n }

// SetZeroOnChecksumError toggles the read_zero_chunk_on_error repair
// path: a checksum-mismatched chunk is zero-filled and recorded rather
// than surfaced as a read error.
func (e *Engine) SetZeroOnChecksumError(v bool) { e.zeroOnChecksumError = v }

// SetChecksumErrorRecorder installs the callback invoked with a
// chunk number whenever SetZeroOnChecksumError(true) causes a mismatch
// to be repaired rather than returned as an error.
func (e *Engine) SetChecksumErrorRecorder(fn func(chunkNumber uint64)) { e.onChecksumError = fn }

// Size returns the total addressable media size implied by the chunk
// index (number_of_chunks * chunk size), a chunk-grid-aligned upper
// bound. ReadAt clamps reads to the engine's exact media size and
// falls back to this value only when that size is 0.
func (e *Engine) Size() int64 {
	return int64(e.index.Len()) * int64(e.params.ChunkSize())
}

// ReadAt fills p starting at the given absolute byte offset, reading
// across as many chunks as necessary. Reads are clamped to the exact
// media size rather than the chunk-grid-aligned Size(): a read that
// runs past media_size is truncated and reported via io.EOF the way
// io.ReaderAt expects, instead of spilling the zero-padding a partial
// final chunk carries past its true end.
func (e *Engine) ReadAt(p []byte, offset int64) (int, error) {
	chunkSize := int64(e.params.ChunkSize())
	if chunkSize == 0 {
		return 0, fmt.Errorf("media: zero chunk size")
	}
	if offset < 0 {
		return 0, fmt.Errorf("media: negative offset %d", offset)
	}

	mediaSize := int64(e.mediaSize)
	if mediaSize <= 0 {
		mediaSize = e.Size()
	}
	if offset > mediaSize {
		return 0, fmt.Errorf("media: offset %d beyond end of media", offset)
	}

	want := len(p)
	if remaining := mediaSize - offset; int64(want) > remaining {
		want = int(remaining)
	}

	read := 0
	for read < want {
		abs := offset + int64(read)
		chunkNumber := abs / chunkSize
		inChunk := abs % chunkSize

		data, err := e.readChunk(uint64(chunkNumber))
		if err != nil {
			return read, err
		}
		if inChunk >= int64(len(data)) {
			return read, fmt.Errorf("media: offset %d beyond end of media", abs)
		}
		n := copy(p[read:want], data[inChunk:])
		read += n
	}
	if read < len(p) {
		return read, io.EOF
	}
	return read, nil
}

// readChunk returns chunk chunkNumber's decompressed, checksum-verified
// bytes, installing it into the cache on a miss.
func (e *Engine) readChunk(chunkNumber uint64) ([]byte, error) {
	if data, ok := e.cache.Get(chunkNumber); ok {
		return data, nil
	}

	desc, err := e.index.Get(int(chunkNumber))
	if err != nil {
		return nil, err
	}

	if desc.IsSparse() {
		data := make([]byte, e.params.ChunkSize())
		e.cache.Put(chunkNumber, data)
		return data, nil
	}

	f, err := e.pool.Get(desc.SegmentRef)
	if err != nil {
		return nil, fmt.Errorf("media: opening segment %q for chunk %d: %w", desc.SegmentRef, chunkNumber, err)
	}

	raw, err := f.ReadPayloadAt(desc.FileOffset, uint64(desc.StoredSize))
	if err != nil {
		return nil, fmt.Errorf("media: reading chunk %d: %w", chunkNumber, err)
	}
	if len(raw) < 1 {
		return nil, fmt.Errorf("media: chunk %d missing flags byte", chunkNumber)
	}
	raw = raw[1:] // leading flags byte, see WritePlanner.WriteChunk

	if desc.HasChecksum() {
		if len(raw) < 4 {
			return nil, fmt.Errorf("media: chunk %d too short to hold a trailing checksum", chunkNumber)
		}
		payload := raw[:len(raw)-4]
		want := binary.LittleEndian.Uint32(raw[len(raw)-4:])
		if got := codec.Checksum32(payload); got != want {
			if e.zeroOnChecksumError {
				if e.onChecksumError != nil {
					e.onChecksumError(chunkNumber)
				}
				data := make([]byte, e.params.ChunkSize())
				e.cache.Put(chunkNumber, data)
				return data, nil
			}
			return nil, fmt.Errorf("media: chunk %d checksum mismatch (got %08x, want %08x)", chunkNumber, got, want)
		}
		raw = payload
	}

	var data []byte
	if desc.Compressed() {
		data, err = codec.Decompress(raw, int(e.params.ChunkSize()))
		if err != nil {
			return nil, fmt.Errorf("media: decompressing chunk %d: %w", chunkNumber, err)
		}
	} else {
		data = raw
	}

	e.cache.Put(chunkNumber, data)
	return data, nil
}

// InvalidateChunk drops chunkNumber from the cache, called after a
// delta-segment overlay replaces its descriptor so a stale decompressed
// copy can't outlive the edit.
func (e *Engine) InvalidateChunk(chunkNumber uint64) {
	e.cache.Invalidate(chunkNumber)
}
