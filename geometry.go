package ewf

// MediaType identifies the acquired device class.
type MediaType uint8

const (
	MediaTypeRemovable MediaType = 0x00
	MediaTypeFixed      MediaType = 0x01
	MediaTypeOptical    MediaType = 0x03
	MediaTypeLogical    MediaType = 0x0e
	MediaTypeMemory     MediaType = 0x10
)

// MediaFlags is a bitset; bit 0 is always set for an acquired image.
type MediaFlags uint8

const (
	MediaFlagImage    MediaFlags = 0x01
	MediaFlagPhysical MediaFlags = 0x02
	MediaFlagFastbloc MediaFlags = 0x04
	MediaFlagTableau  MediaFlags = 0x08
)

// CompressionLevel mirrors internal/codec.Level but is re-declared here
// as the public-facing enum names; conversion is explicit at
// the package boundary to keep internal/codec import-free of the public
// API surface.
type CompressionLevel int

const (
	CompressionNone CompressionLevel = iota
	CompressionEmptyBlock
	CompressionFast
	CompressionBest
)

// CompressionMethod selects the deflate-family variant. Only Deflate is
// implemented; the enum exists so Format's EWF2 dialect has a place to
// carry the on-disk compression_method field.
type CompressionMethod int

const (
	CompressionMethodNone CompressionMethod = iota
	CompressionMethodDeflate
)

// Format selects the on-disk dialect. The engine reads by
// sniffing the segment signature and writes according to the Format the
// handle was opened/created with.
type Format int

const (
	FormatUnknown Format = iota
	FormatEWF            // EnCase 1-6 style v1 segment file
	FormatEWF2           // Ex01 / EnCase7+ v2 segment file
	FormatLogicalV1
	FormatLogicalV2
	FormatEnCase1
	FormatEnCase2
	FormatEnCase3
	FormatEnCase4
	FormatEnCase5
	FormatEnCase6
	FormatEnCase7
	FormatFTK
	FormatLinEn1
	FormatLinEn5
	FormatLinEn6
	FormatLinEn7
	FormatSMART
	FormatEWFX
)

// IsV2 reports whether a Format uses the v2 segment-file dialect
// (richer descriptors, UTF-8 metadata)
func (f Format) IsV2() bool {
	switch f {
	case FormatEWF2, FormatLogicalV2, FormatEnCase7:
		return true
	default:
		return false
	}
}

// IsLogical reports whether a Format stores a file tree (LEF) rather
// than a raw block device.
func (f Format) IsLogical() bool {
	return f == FormatLogicalV1 || f == FormatLogicalV2
}

// Geometry holds the immutable-once-write-begins media description.
type Geometry struct {
	SectorsPerChunk   uint32
	BytesPerSector    uint32
	MediaSize         uint64 // 0 if streaming
	NumberOfSectors   uint64
	ErrorGranularity  uint32
	MediaType         MediaType
	MediaFlags        MediaFlags
	CompressionLevel  CompressionLevel
	CompressionMethod CompressionMethod
	Format            Format
	SetIdentifier     [16]byte
}

// ChunkSize returns sectors_per_chunk * bytes_per_sector.
func (g Geometry) ChunkSize() uint64 {
	return uint64(g.SectorsPerChunk) * uint64(g.BytesPerSector)
}

// Streaming reports whether MediaSize is not yet known.
func (g Geometry) Streaming() bool {
	return g.MediaSize == 0
}
