// Package segment implements reading and writing of a single EWF/LEF
// segment file: its signature, fixed header fields, and the ordered
// sequence of typed, checksummed sections it contains.
package segment

import (
	"bytes"
	"fmt"
)

// Type is a section's 16-byte ASCII type tag.
type Type string

const (
	TypeHeader  Type = "header"
	TypeHeader2 Type = "header2"
	TypeXHeader Type = "xheader"
	TypeVolume  Type = "volume"
	TypeDisk    Type = "disk"
	TypeData    Type = "data"
	TypeSectors Type = "sectors"
	TypeTable   Type = "table"
	TypeTable2  Type = "table2"
	TypeDigest  Type = "digest"
	TypeHash    Type = "hash"
	TypeXHash   Type = "xhash"
	TypeError2  Type = "error2"
	TypeSession Type = "session"
	TypeLtree   Type = "ltree"
	TypeSxattr  Type = "sxattr"
	TypeAcl     Type = "acl"
	TypeDone    Type = "done"
	TypeNext    Type = "next"
)

// encodeType renders a Type into its fixed 16-byte zero-padded field.
func encodeType(t Type) [16]byte {
	var out [16]byte
	copy(out[:], []byte(t))
	return out
}

// decodeType trims the zero padding from a raw 16-byte type field.
func decodeType(raw [16]byte) Type {
	return Type(bytes.TrimRight(raw[:], "\x00"))
}

// Descriptor is the dialect-neutral view of a section's framing data.
// Size is the section's total on-disk size including its own leading
// descriptor (matching the v1 "size" field semantics); DataSize is the
// payload-only size (Size minus the descriptor size).
type Descriptor struct {
	Type           Type
	NextOffset     uint64
	PreviousOffset uint64 // v2 only; 0 under v1
	Size           uint64
	DataSize       uint64 // payload bytes; derived from Size under v1
	Checksum       uint32
}

// ErrBadChecksum is returned by Dialect.DecodeDescriptor when the
// descriptor's own checksum does not match its bytes.
var ErrBadChecksum = fmt.Errorf("segment: section descriptor checksum mismatch")

// Dialect abstracts over the v1/v2 on-disk structure differences so
// the reader/writer above it never branches on format, matching
// against a small closed interface instead of a class hierarchy.
type Dialect interface {
	// Signature is the fixed byte string at file offset 0.
	Signature() []byte
	// FileHeaderSize is the length in bytes of the fields following the
	// signature (segment number, etc.).
	FileHeaderSize() int
	EncodeFileHeader(segmentNumber uint16) []byte
	DecodeFileHeader(b []byte) (segmentNumber uint16, err error)

	DescriptorSize() int
	EncodeDescriptor(d Descriptor) []byte
	DecodeDescriptor(b []byte) (Descriptor, error)
}
