package segment

import (
	"encoding/binary"
	"fmt"

	"github.com/ewf-forensics/goewf/internal/codec"
)

// V1 is the classic EWF/EnCase1-6 segment file dialect, bit-exact:
// signature + {start_of_fields, segment_number, end_of_fields}
// followed by 76-byte section descriptors
// {type[16], next:u64, size:u64, padding[40], checksum:u32}.
var V1 Dialect = v1Dialect{}

type v1Dialect struct{}

var v1Signature = []byte{'E', 'V', 'F', 0x09, 0x0d, 0x0a, 0xff, 0x00}

func (v1Dialect) Signature() []byte { return v1Signature }

// FileHeaderSize: 1 (start_of_fields) + 2 (segment_number) + 2 (end_of_fields) = 5.
func (v1Dialect) FileHeaderSize() int { return 5 }

func (v1Dialect) EncodeFileHeader(segmentNumber uint16) []byte {
	b := make([]byte, 5)
	b[0] = 1
	binary.LittleEndian.PutUint16(b[1:3], segmentNumber)
	binary.LittleEndian.PutUint16(b[3:5], 0)
	return b
}

func (v1Dialect) DecodeFileHeader(b []byte) (uint16, error) {
	if len(b) < 5 {
		return 0, fmt.Errorf("segment: v1 file header too short")
	}
	if b[0] != 1 {
		return 0, fmt.Errorf("segment: v1 file header start_of_fields != 1")
	}
	return binary.LittleEndian.Uint16(b[1:3]), nil
}

// DescriptorSize: 16 + 8 + 8 + 40 + 4 = 76.
func (v1Dialect) DescriptorSize() int { return 76 }

func (v1Dialect) EncodeDescriptor(d Descriptor) []byte {
	buf := make([]byte, 76)
	typeField := encodeType(d.Type)
	copy(buf[0:16], typeField[:])
	binary.LittleEndian.PutUint64(buf[16:24], d.NextOffset)
	binary.LittleEndian.PutUint64(buf[24:32], d.Size)
	// buf[32:72] is the 40-byte zero pad.
	checksum := codec.Checksum32(buf[0:72])
	binary.LittleEndian.PutUint32(buf[72:76], checksum)
	return buf
}

func (v1Dialect) DecodeDescriptor(b []byte) (Descriptor, error) {
	if len(b) != 76 {
		return Descriptor{}, fmt.Errorf("segment: v1 descriptor must be 76 bytes, got %d", len(b))
	}
	var typeField [16]byte
	copy(typeField[:], b[0:16])

	d := Descriptor{
		Type:       decodeType(typeField),
		NextOffset: binary.LittleEndian.Uint64(b[16:24]),
		Size:       binary.LittleEndian.Uint64(b[24:32]),
		Checksum:   binary.LittleEndian.Uint32(b[72:76]),
	}
	// v1 has no explicit data-size field: the descriptor's Size covers
	// itself plus the payload, so the payload alone is Size minus this
	// descriptor's own 76 bytes.
	if d.Size >= 76 {
		d.DataSize = d.Size - 76
	}

	if got := codec.Checksum32(b[0:72]); got != d.Checksum {
		return d, ErrBadChecksum
	}
	return d, nil
}
