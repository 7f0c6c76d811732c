package media

import (
	"fmt"

	"github.com/ewf-forensics/goewf/internal/chunkindex"
	"github.com/ewf-forensics/goewf/internal/codec"
	"github.com/ewf-forensics/goewf/internal/segment"
)

// Namer returns the filename a segment should be created under, given
// its one-based segment number (the rolling extension sequence lives
// in the root package; the planner only needs the already-resolved
// name).
type Namer func(segmentNumber int) (string, error)

// WritePlanner drives the streaming write path: it appends chunks to
// the current (tail) segment, rolling over to a freshly created
// segment once the configured byte budget is reached, and keeps the
// chunk index in lockstep with what has actually been durably written
// (a two-phase stream-then-finalize lifecycle). The bounded-growth-
// then-roll-over shape mirrors a segmented-container cluster table,
// adapted here to a byte-budget-per-segment rollover.
//
// Each chunk is written as its own "sectors"-tagged section rather than
// packed alongside siblings into one big sectors section followed by a
// separate table section: the internal sectors/table packing is not
// required to be bit-exact, and per-chunk sections keep the
// crash-recovery guarantee at chunk granularity instead of
// whole-section granularity.
type WritePlanner struct {
	params          Params
	index           *chunkindex.Index
	pool            *segment.Pool
	namer           Namer
	dialect         segment.Dialect
	maxSegmentBytes int64

	current         *segment.File
	currentFilename string
	segmentNumber   int
}

// NewWritePlanner creates a planner that rolls to a new segment file
// once the current one would exceed maxSegmentBytes.
func NewWritePlanner(params Params, index *chunkindex.Index, pool *segment.Pool, namer Namer, dialect segment.Dialect, maxSegmentBytes int64) *WritePlanner {
	return &WritePlanner{
		params:          params,
		index:           index,
		pool:            pool,
		namer:           namer,
		dialect:         dialect,
		maxSegmentBytes: maxSegmentBytes,
	}
}

// WriteChunk compresses (if configured) and appends one chunk of raw
// media bytes, rolling to a new segment first if necessary, and
// records the resulting location in the chunk index. The on-disk
// payload is prefixed with a one-byte flags marker, this
// implementation's own chunk framing: a bare per-chunk "sectors"
// section carries none of the table-entry high-compressed-bit metadata
// the classic sectors+table pairing relies on, so a freshly reopened
// handle can recover each chunk's compressed/checksummed treatment
// without requiring a "table" section at all.
func (p *WritePlanner) WriteChunk(raw []byte) error {
	compressedPayload, compressed := codec.Compress(raw, p.params.Compression)

	flags := chunkindex.Flags(0)
	var body []byte
	if compressed {
		flags |= chunkindex.FlagCompressed
		body = compressedPayload
	} else {
		flags |= chunkindex.FlagHasTrailingChecksum
		body = append(append([]byte(nil), raw...), checksumTrailer(raw)...)
	}
	encoded := append([]byte{byte(flags)}, body...)

	if err := p.ensureCapacityFor(int64(len(encoded))); err != nil {
		return err
	}

	payloadOffset := p.current.CurrentOffset() + int64(p.current.Dialect().DescriptorSize())
	if _, err := p.current.WriteSection(segment.TypeSectors, encoded); err != nil {
		return fmt.Errorf("media: writing chunk section: %w", err)
	}

	p.index.Append(chunkindex.Descriptor{
		SegmentRef: p.currentFilename,
		FileOffset: payloadOffset,
		StoredSize: uint32(len(encoded)),
		Flags:      flags,
	})
	return nil
}

// WriteMetadataSection writes a non-chunk section (volume, header,
// header2, xheader, hash, xhash) to the current tail segment, rolling
// over first if necessary. Used by the root package to lay down
// metadata sections immediately before the terminal "done" section at
// write_finalize.
func (p *WritePlanner) WriteMetadataSection(sectionType segment.Type, payload []byte) error {
	if err := p.ensureCapacityFor(int64(len(payload))); err != nil {
		return err
	}
	if _, err := p.current.WriteSection(sectionType, payload); err != nil {
		return fmt.Errorf("media: writing %s section: %w", sectionType, err)
	}
	return nil
}

// WriteSparseChunk records a chunk number as sparse (never written,
// read back as zeroes) without touching any segment file.
func (p *WritePlanner) WriteSparseChunk() {
	p.index.Append(chunkindex.Descriptor{Flags: chunkindex.FlagIsSparse})
}

func checksumTrailer(payload []byte) []byte {
	sum := codec.Checksum32(payload)
	return []byte{byte(sum), byte(sum >> 8), byte(sum >> 16), byte(sum >> 24)}
}

// ensureCapacityFor opens the first segment, or rolls to a new one, so
// that the upcoming write of size bytes fits within maxSegmentBytes.
func (p *WritePlanner) ensureCapacityFor(size int64) error {
	if p.current == nil {
		return p.openNextSegment()
	}
	if p.current.CurrentOffset()+int64(p.current.Dialect().DescriptorSize())+size > p.maxSegmentBytes {
		if err := p.closeCurrentSegment(); err != nil {
			return err
		}
		return p.openNextSegment()
	}
	return nil
}

func (p *WritePlanner) openNextSegment() error {
	p.segmentNumber++
	filename, err := p.namer(p.segmentNumber)
	if err != nil {
		return fmt.Errorf("media: naming segment %d: %w", p.segmentNumber, err)
	}
	f, err := segment.CreateWrite(filename, p.dialect, uint16(p.segmentNumber))
	if err != nil {
		return fmt.Errorf("media: creating segment %q: %w", filename, err)
	}
	p.pool.Put(filename, f)
	p.pool.Pin(filename)
	p.current = f
	p.currentFilename = filename
	return nil
}

func (p *WritePlanner) closeCurrentSegment() error {
	if _, err := p.current.WriteSection(segment.TypeNext, nil); err != nil {
		return fmt.Errorf("media: writing next-segment marker: %w", err)
	}
	p.pool.Unpin(p.currentFilename)
	return nil
}

// Finalize writes the terminal "done" section to the last segment and
// releases its write pin, completing the acquisition (write_finalize).
func (p *WritePlanner) Finalize() error {
	if p.current == nil {
		return fmt.Errorf("media: finalize called with no segment written")
	}
	if _, err := p.current.WriteSection(segment.TypeDone, nil); err != nil {
		return fmt.Errorf("media: writing done section: %w", err)
	}
	p.pool.Unpin(p.currentFilename)
	return nil
}

// Abort truncates the current segment back to its last successfully
// completed section, then writes a terminal "done" section so the
// segment remains a well-formed, readable image ending at the last
// fully-written chunk, rather than left open-ended. It does not remove
// already-rolled predecessor segment files; mid-write crash recovery of
// a partially-flushed OS write is handled by segment.File.Walk's
// descriptor-chain validation on the next open, not by this call.
func (p *WritePlanner) Abort() error {
	if p.current == nil {
		return nil
	}
	if err := p.current.Truncate(p.current.CurrentOffset()); err != nil {
		return fmt.Errorf("media: truncating aborted segment: %w", err)
	}
	if _, err := p.current.WriteSection(segment.TypeDone, nil); err != nil {
		return fmt.Errorf("media: writing done section on abort: %w", err)
	}
	p.pool.Unpin(p.currentFilename)
	return nil
}
