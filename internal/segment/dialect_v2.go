package segment

import (
	"encoding/binary"
	"fmt"

	"github.com/ewf-forensics/goewf/internal/codec"
)

// V2 is the EWF2 (Ex01/EnCase7+) segment file dialect:
// richer section descriptors carrying explicit data_size and
// previous_offset back-links, a CRC-32 (rather than Adler-32) over the
// descriptor, and UTF-8 metadata sections.
var V2 Dialect = v2Dialect{}

type v2Dialect struct{}

// v2Signature is not a byte-exact reproduction of any particular
// EnCase7 build. It is a stable, internally-consistent 8-byte
// signature this package recognizes on read and emits on write.
var v2Signature = []byte{'E', 'V', 'F', '2', 0x0d, 0x0a, 0x81, 0x00}

func (v2Dialect) Signature() []byte { return v2Signature }

// FileHeaderSize: major(1) + minor(1) + reserved(2) + segment_number(2)
// + set_identifier(16) + reserved(8) = 30.
func (v2Dialect) FileHeaderSize() int { return 30 }

func (v2Dialect) EncodeFileHeader(segmentNumber uint16) []byte {
	b := make([]byte, 30)
	b[0] = 2 // major version
	b[1] = 0 // minor version
	binary.LittleEndian.PutUint16(b[4:6], segmentNumber)
	return b
}

func (v2Dialect) DecodeFileHeader(b []byte) (uint16, error) {
	if len(b) < 30 {
		return 0, fmt.Errorf("segment: v2 file header too short")
	}
	if b[0] != 2 {
		return 0, fmt.Errorf("segment: unsupported v2 major version %d", b[0])
	}
	return binary.LittleEndian.Uint16(b[4:6]), nil
}

// DescriptorSize: type[16] + data_flags(4) + previous_offset(8) +
// data_size(8) + next_offset(8) + padding(32) + checksum(4) = 80.
func (v2Dialect) DescriptorSize() int { return 80 }

func (v2Dialect) EncodeDescriptor(d Descriptor) []byte {
	buf := make([]byte, 80)
	typeField := encodeType(d.Type)
	copy(buf[0:16], typeField[:])
	binary.LittleEndian.PutUint32(buf[16:20], 0) // data_flags, unused
	binary.LittleEndian.PutUint64(buf[20:28], d.PreviousOffset)
	binary.LittleEndian.PutUint64(buf[28:36], d.DataSize)
	binary.LittleEndian.PutUint64(buf[36:44], d.NextOffset)
	// buf[44:76] is reserved padding.
	checksum := codec.CRC32(buf[0:76])
	binary.LittleEndian.PutUint32(buf[76:80], checksum)
	return buf
}

func (v2Dialect) DecodeDescriptor(b []byte) (Descriptor, error) {
	if len(b) != 80 {
		return Descriptor{}, fmt.Errorf("segment: v2 descriptor must be 80 bytes, got %d", len(b))
	}
	var typeField [16]byte
	copy(typeField[:], b[0:16])

	d := Descriptor{
		Type:           decodeType(typeField),
		PreviousOffset: binary.LittleEndian.Uint64(b[20:28]),
		DataSize:       binary.LittleEndian.Uint64(b[28:36]),
		NextOffset:     binary.LittleEndian.Uint64(b[36:44]),
		Checksum:       binary.LittleEndian.Uint32(b[76:80]),
	}
	d.Size = d.DataSize + uint64(len(b))

	if got := codec.CRC32(b[0:76]); got != d.Checksum {
		return d, ErrBadChecksum
	}
	return d, nil
}
