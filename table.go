package ewf

import (
	"encoding/binary"
	"fmt"

	"github.com/ewf-forensics/goewf/internal/chunkindex"
	"github.com/ewf-forensics/goewf/internal/codec"
	"github.com/ewf-forensics/goewf/internal/segment"
)

const chunkCompressedBit = 1 << 31

// parseTable decodes a "table"/"table2" section's entries into chunk
// index descriptors: number_of_entries:u32le, padding[16],
// base_offset:u64le, padding[4], entries:u32le[N] (high bit =
// compressed), checksum:u32le. Each entry encodes an offset relative
// to base_offset, recovered by masking the high bit
// (entry & 0x7FFFFFFF).
//
// This path exists for interoperating with sectors+table-packed
// segment files produced by other encoders; this package's own writer
// never emits a "table" section (see internal/media.WritePlanner), so
// it is not exercised by this package's own round trip.
func (h *Handle) parseTable(f *segment.File, filename string, s segment.Section) ([]chunkindex.Descriptor, error) {
	payload, err := f.ReadPayload(s)
	if err != nil {
		return nil, err
	}
	if len(payload) < 4+16+8+4+4 {
		return nil, fmt.Errorf("table section too short (%d bytes)", len(payload))
	}

	numberOfEntries := binary.LittleEndian.Uint32(payload[0:4])
	baseOffset := binary.LittleEndian.Uint64(payload[20:28])

	entriesStart := 32
	entriesEnd := entriesStart + int(numberOfEntries)*4
	if entriesEnd+4 > len(payload) {
		return nil, fmt.Errorf("table section declares %d entries but payload is too short", numberOfEntries)
	}

	checksum := binary.LittleEndian.Uint32(payload[entriesEnd : entriesEnd+4])
	if got := codec.Checksum32(payload[:entriesEnd]); got != checksum {
		return nil, fmt.Errorf("table section checksum mismatch (got %08x, want %08x)", got, checksum)
	}

	raw := make([]uint32, numberOfEntries)
	for i := range raw {
		raw[i] = binary.LittleEndian.Uint32(payload[entriesStart+i*4 : entriesStart+i*4+4])
	}

	out := make([]chunkindex.Descriptor, numberOfEntries)
	for i, e := range raw {
		compressed := e&chunkCompressedBit != 0
		rel := uint64(e &^ chunkCompressedBit)

		var size uint32
		if i+1 < len(raw) {
			nextRel := uint64(raw[i+1] &^ chunkCompressedBit)
			size = uint32(nextRel - rel)
		}
		// The final entry's size can't be derived from this table alone
		// (it depends on the paired sectors section's total length,
		// which this decoder doesn't track across sections); callers
		// reading a table-packed file produced elsewhere should expect
		// this limitation for the last chunk in each table.

		flags := chunkindex.Flags(0)
		if compressed {
			flags |= chunkindex.FlagCompressed
		} else {
			flags |= chunkindex.FlagHasTrailingChecksum
		}
		out[i] = chunkindex.Descriptor{
			SegmentRef: filename,
			FileOffset: int64(baseOffset + rel),
			StoredSize: size,
			Flags:      flags,
		}
	}
	return out, nil
}

// parseInlineSectorsChunk recovers a chunk descriptor from a
// self-produced "sectors" section, whose payload is exactly one
// chunk's data prefixed by a one-byte flags marker (see
// internal/media.WritePlanner.WriteChunk).
func (h *Handle) parseInlineSectorsChunk(f *segment.File, filename string, s segment.Section) (chunkindex.Descriptor, error) {
	descSize := int64(f.Dialect().DescriptorSize())
	payloadOffset := s.Offset + descSize
	payloadLen := s.DataSize
	if payloadLen == 0 {
		payloadLen = s.Size - uint64(descSize)
	}
	if payloadLen < 1 {
		return chunkindex.Descriptor{}, fmt.Errorf("sectors section at %d too short for a flags byte", s.Offset)
	}

	flagsByte, err := f.ReadPayloadAt(payloadOffset, 1)
	if err != nil {
		return chunkindex.Descriptor{}, err
	}

	return chunkindex.Descriptor{
		SegmentRef: filename,
		FileOffset: payloadOffset,
		StoredSize: uint32(payloadLen),
		Flags:      chunkindex.Flags(flagsByte[0]),
	}, nil
}
