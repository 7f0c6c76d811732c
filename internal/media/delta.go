package media

import (
	"fmt"

	"github.com/ewf-forensics/goewf/internal/chunkindex"
	"github.com/ewf-forensics/goewf/internal/codec"
	"github.com/ewf-forensics/goewf/internal/segment"
)

// DeltaWriter implements random-access writes against an
// already-finalized acquisition: a read-modify-write of the touched
// chunk, stored uncompressed in a single-segment delta file and
// overlaid onto the chunk index. A post-acquisition write goes to the
// delta segment rather than mutating the original.
type DeltaWriter struct {
	engine   *Engine
	index    *chunkindex.Index
	pool     *segment.Pool
	dialect  segment.Dialect
	filename string
	file     *segment.File
}

// NewDeltaWriter prepares the single delta segment file used for all
// random-access writes in this session. The file is created on the
// first write; an existing file of that name is truncated, not
// reopened or extended (one delta file is
// sufficient since delta segments are never chunk-budget-limited the
// way acquisition segments are: they only ever hold edited chunks).
func NewDeltaWriter(engine *Engine, index *chunkindex.Index, pool *segment.Pool, dialect segment.Dialect, filename string) *DeltaWriter {
	return &DeltaWriter{engine: engine, index: index, pool: pool, dialect: dialect, filename: filename}
}

func (d *DeltaWriter) ensureOpen() error {
	if d.file != nil {
		return nil
	}
	f, err := segment.CreateWrite(d.filename, d.dialect, 1)
	if err != nil {
		return fmt.Errorf("media: creating delta segment %q: %w", d.filename, err)
	}
	d.pool.Put(d.filename, f)
	d.pool.Pin(d.filename)
	d.file = f
	return nil
}

// WriteAt performs a read-modify-write of the bytes in [offset,
// offset+len(p)) against the media stream, chunk by chunk.
func (d *DeltaWriter) WriteAt(p []byte, offset int64) (int, error) {
	chunkSize := int64(d.engine.params.ChunkSize())
	if chunkSize == 0 {
		return 0, fmt.Errorf("media: zero chunk size")
	}

	written := 0
	for written < len(p) {
		abs := offset + int64(written)
		chunkNumber := abs / chunkSize
		inChunk := abs % chunkSize

		original, err := d.engine.readChunk(uint64(chunkNumber))
		if err != nil {
			return written, err
		}
		modified := append([]byte(nil), original...)
		n := copy(modified[inChunk:], p[written:])

		if err := d.writeDeltaChunk(uint64(chunkNumber), modified); err != nil {
			return written, err
		}
		d.engine.InvalidateChunk(uint64(chunkNumber))
		written += n
	}
	return written, nil
}

func (d *DeltaWriter) writeDeltaChunk(chunkNumber uint64, data []byte) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}

	sum := codec.Checksum32(data)
	trailer := []byte{byte(sum), byte(sum >> 8), byte(sum >> 16), byte(sum >> 24)}
	flags := chunkindex.FlagHasTrailingChecksum
	encoded := append([]byte{byte(flags)}, append(append([]byte(nil), data...), trailer...)...)

	payloadOffset := d.file.CurrentOffset() + int64(d.file.Dialect().DescriptorSize())
	if _, err := d.file.WriteSection(segment.TypeSectors, encoded); err != nil {
		return fmt.Errorf("media: writing delta chunk %d: %w", chunkNumber, err)
	}

	return d.index.ReplaceFromDelta(int(chunkNumber), chunkindex.Descriptor{
		SegmentRef: d.filename,
		FileOffset: payloadOffset,
		StoredSize: uint32(len(encoded)),
		Flags:      flags,
	})
}

// Finalize writes the delta segment's terminal section and releases
// its write pin.
func (d *DeltaWriter) Finalize() error {
	if d.file == nil {
		return nil
	}
	if _, err := d.file.WriteSection(segment.TypeDone, nil); err != nil {
		return fmt.Errorf("media: finalizing delta segment: %w", err)
	}
	d.pool.Unpin(d.filename)
	return nil
}
