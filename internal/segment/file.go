package segment

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Section pairs a decoded Descriptor with the absolute file offset it
// was found at, a property of where the section was found rather than
// of the descriptor's own encoding, so it's attached only by Walk.
type Section struct {
	Descriptor
	Offset int64
}

// File reads and/or writes one on-disk segment file: its signature,
// fixed header fields, and the ordered section chain.
type File struct {
	f        *os.File
	dialect  Dialect
	writable bool

	headerEnd int64 // offset immediately after signature + file header fields

	// write state
	writeCursor          int64
	havePrevDescriptor   bool
	prevDescriptorOffset int64
	prevDescriptor       Descriptor
}

// Dialects recognized on open, tried signature-first.
var knownDialects = []Dialect{V1, V2}

// DetectDialect sniffs the first bytes of a segment file and returns
// the matching Dialect, or an error if none match.
func DetectDialect(sig []byte) (Dialect, error) {
	for _, d := range knownDialects {
		want := d.Signature()
		if len(sig) >= len(want) && bytes.Equal(sig[:len(want)], want) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("segment: unrecognized segment file signature")
}

// OpenRead opens an existing segment file for reading, verifying its
// signature and file header.
func OpenRead(path string) (*File, uint16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}

	maxSigLen := 8
	sig := make([]byte, maxSigLen)
	if _, err := io.ReadFull(f, sig); err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("segment: reading signature: %w", err)
	}
	dialect, err := DetectDialect(sig)
	if err != nil {
		f.Close()
		return nil, 0, err
	}

	hdr := make([]byte, dialect.FileHeaderSize())
	if _, err := io.ReadFull(f, hdr); err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("segment: reading file header: %w", err)
	}
	segmentNumber, err := dialect.DecodeFileHeader(hdr)
	if err != nil {
		f.Close()
		return nil, 0, err
	}

	sf := &File{
		f:         f,
		dialect:   dialect,
		headerEnd: int64(len(sig) + len(hdr)),
	}
	return sf, segmentNumber, nil
}

// CreateWrite creates a new segment file and writes its signature and
// file header, ready for WriteSection calls.
func CreateWrite(path string, dialect Dialect, segmentNumber uint16) (*File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(dialect.Signature()); err != nil {
		f.Close()
		return nil, err
	}
	hdr := dialect.EncodeFileHeader(segmentNumber)
	if _, err := f.Write(hdr); err != nil {
		f.Close()
		return nil, err
	}

	headerEnd := int64(len(dialect.Signature()) + len(hdr))
	return &File{
		f:                    f,
		dialect:              dialect,
		writable:             true,
		headerEnd:            headerEnd,
		writeCursor:          headerEnd,
		prevDescriptorOffset: -1,
	}, nil
}

// Close closes the underlying file handle.
func (sf *File) Close() error {
	return sf.f.Close()
}

// Dialect returns the segment file's on-disk dialect.
func (sf *File) Dialect() Dialect { return sf.dialect }

// Walk reads the full section chain from the start of the file,
// stopping at a "done" section or at the first sign of a malformed
// link (non-monotonic offset, self-loop other than "done", or an
// offset seen before) rather than looping forever.
func (sf *File) Walk() ([]Section, error) {
	var out []Section
	seen := make(map[int64]bool)
	offset := sf.headerEnd
	descSize := sf.dialect.DescriptorSize()

	for {
		if seen[offset] {
			break
		}
		seen[offset] = true

		buf := make([]byte, descSize)
		if _, err := sf.f.ReadAt(buf, offset); err != nil {
			return out, fmt.Errorf("segment: reading descriptor at %d: %w", offset, err)
		}
		d, err := sf.dialect.DecodeDescriptor(buf)
		if err != nil {
			return out, fmt.Errorf("segment: decoding descriptor at %d: %w", offset, err)
		}

		wd := Section{Descriptor: d, Offset: offset}
		out = append(out, wd)

		if d.Type == TypeDone {
			break
		}
		next := int64(d.NextOffset)
		if next == offset || next <= offset {
			break
		}
		offset = next
	}
	return out, nil
}

// ReadPayload returns the section's payload bytes for a descriptor
// produced by Walk.
func (sf *File) ReadPayload(wd Section) ([]byte, error) {
	descSize := sf.dialect.DescriptorSize()
	payloadLen := wd.Size - uint64(descSize)
	if wd.DataSize != 0 {
		payloadLen = wd.DataSize
	}
	buf := make([]byte, payloadLen)
	if payloadLen == 0 {
		return buf, nil
	}
	if _, err := sf.f.ReadAt(buf, wd.Offset+int64(descSize)); err != nil {
		return nil, fmt.Errorf("segment: reading payload at %d: %w", wd.Offset, err)
	}
	return buf, nil
}

// ReadPayloadAt reads length bytes starting at absoluteOffset in the
// segment file, for chunk-table-indexed reads that shouldn't
// materialize the whole (potentially huge) sectors section at once.
func (sf *File) ReadPayloadAt(absoluteOffset int64, length uint64) ([]byte, error) {
	buf := make([]byte, length)
	if length == 0 {
		return buf, nil
	}
	if _, err := sf.f.ReadAt(buf, absoluteOffset); err != nil {
		return nil, fmt.Errorf("segment: reading at %d: %w", absoluteOffset, err)
	}
	return buf, nil
}

// WriteSection appends a new section at the current write cursor. The
// descriptor it writes initially links to itself (a valid, checksummed
// terminal state); the *previous* section's descriptor is retroactively
// patched to point at this one. This is what makes the segment
// crash-recoverable at any point: the file on disk is always a
// well-formed, checksummed chain up to the last completed
// WriteSection call.
func (sf *File) WriteSection(t Type, payload []byte) (Descriptor, error) {
	if !sf.writable {
		return Descriptor{}, fmt.Errorf("segment: file not opened for writing")
	}

	offset := sf.writeCursor
	descSize := uint64(sf.dialect.DescriptorSize())
	size := descSize + uint64(len(payload))

	d := Descriptor{
		Type:       t,
		NextOffset: uint64(offset), // self-referencing until patched
		Size:       size,
		DataSize:   uint64(len(payload)),
	}
	encoded := sf.dialect.EncodeDescriptor(d)

	if _, err := sf.f.WriteAt(encoded, offset); err != nil {
		sf.Truncate(offset)
		return Descriptor{}, fmt.Errorf("segment: writing descriptor: %w", err)
	}
	if len(payload) > 0 {
		if _, err := sf.f.WriteAt(payload, offset+int64(descSize)); err != nil {
			sf.Truncate(offset)
			return Descriptor{}, fmt.Errorf("segment: writing payload: %w", err)
		}
	}

	if sf.havePrevDescriptor {
		patched := sf.prevDescriptor
		patched.NextOffset = uint64(offset)
		reencoded := sf.dialect.EncodeDescriptor(patched)
		if _, err := sf.f.WriteAt(reencoded, sf.prevDescriptorOffset); err != nil {
			return Descriptor{}, fmt.Errorf("segment: patching previous descriptor: %w", err)
		}
	}

	sf.prevDescriptorOffset = offset
	sf.prevDescriptor = d
	sf.havePrevDescriptor = true
	sf.writeCursor = offset + int64(size)

	return d, nil
}

// WritePayloadAt writes raw bytes at an absolute file offset, such as
// into the payload area returned by ReserveSection. No code in this
// module calls it; the write planner stores each chunk with
// WriteSection.
func (sf *File) WritePayloadAt(data []byte, absoluteOffset int64) error {
	_, err := sf.f.WriteAt(data, absoluteOffset)
	return err
}

// ReserveSection writes a section descriptor whose payload is filled
// in afterward with WritePayloadAt, and patches the previous
// descriptor to link to it as WriteSection does. The caller must know
// the final payload length up front. No code in this module calls it.
// Returns the absolute offset where the payload begins.
func (sf *File) ReserveSection(t Type, payloadLen uint64) (payloadOffset int64, err error) {
	descSize := uint64(sf.dialect.DescriptorSize())
	offset := sf.writeCursor

	d := Descriptor{
		Type:       t,
		NextOffset: uint64(offset),
		Size:       descSize + payloadLen,
		DataSize:   payloadLen,
	}
	encoded := sf.dialect.EncodeDescriptor(d)
	if _, err := sf.f.WriteAt(encoded, offset); err != nil {
		sf.Truncate(offset)
		return 0, fmt.Errorf("segment: writing descriptor: %w", err)
	}

	if sf.havePrevDescriptor {
		patched := sf.prevDescriptor
		patched.NextOffset = uint64(offset)
		reencoded := sf.dialect.EncodeDescriptor(patched)
		if _, err := sf.f.WriteAt(reencoded, sf.prevDescriptorOffset); err != nil {
			return 0, fmt.Errorf("segment: patching previous descriptor: %w", err)
		}
	}

	sf.prevDescriptorOffset = offset
	sf.prevDescriptor = d
	sf.havePrevDescriptor = true
	sf.writeCursor = offset + int64(d.Size)

	return offset + int64(descSize), nil
}

// CurrentOffset returns the write cursor (offset where the next section
// would begin).
func (sf *File) CurrentOffset() int64 { return sf.writeCursor }

// Truncate drops everything at or after offset, used to roll back an
// aborted or interrupted chunk write to the last committed section
// (abort semantics).
func (sf *File) Truncate(offset int64) error {
	if err := sf.f.Truncate(offset); err != nil {
		return err
	}
	sf.writeCursor = offset
	return nil
}
