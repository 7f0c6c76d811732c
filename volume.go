package ewf

import (
	"encoding/binary"
	"fmt"

	"github.com/ewf-forensics/goewf/internal/codec"
)

// Fixed field offsets for the volume/disk section payload this package
// writes and reads. This is a compact, internally-consistent rendering
// of the named fields rather than a byte-exact reproduction of
// EnCase's full CHS/PALM/SMART-padded volume section.
const (
	volumeOffMediaType         = 0
	volumeOffNumberOfChunks    = 4
	volumeOffSectorsPerChunk   = 8
	volumeOffBytesPerSector    = 12
	volumeOffNumberOfSectors   = 16
	volumeOffErrorGranularity  = 20
	volumeOffSetIdentifier     = 24
	volumeOffCompressionLevel  = 40
	volumeOffMediaFlags        = 41
	volumeOffChecksum          = 42
	volumePayloadMinSize       = volumeOffChecksum + 4
)

// parseVolume decodes a "volume"/"disk" section payload into h.geo.
func (h *Handle) parseVolume(payload []byte) error {
	if len(payload) < volumePayloadMinSize {
		return fmt.Errorf("volume section too short (%d bytes)", len(payload))
	}

	checksum := binary.LittleEndian.Uint32(payload[volumeOffChecksum : volumeOffChecksum+4])
	if got := codec.Checksum32(payload[:volumeOffChecksum]); got != checksum {
		return fmt.Errorf("volume section checksum mismatch (got %08x, want %08x)", got, checksum)
	}

	numberOfSectors := binary.LittleEndian.Uint32(payload[volumeOffNumberOfSectors : volumeOffNumberOfSectors+4])
	bytesPerSector := binary.LittleEndian.Uint32(payload[volumeOffBytesPerSector : volumeOffBytesPerSector+4])

	var setID [16]byte
	copy(setID[:], payload[volumeOffSetIdentifier:volumeOffSetIdentifier+16])

	h.geo = Geometry{
		SectorsPerChunk:   binary.LittleEndian.Uint32(payload[volumeOffSectorsPerChunk : volumeOffSectorsPerChunk+4]),
		BytesPerSector:    bytesPerSector,
		NumberOfSectors:   uint64(numberOfSectors),
		MediaSize:         uint64(numberOfSectors) * uint64(bytesPerSector),
		ErrorGranularity:  binary.LittleEndian.Uint32(payload[volumeOffErrorGranularity : volumeOffErrorGranularity+4]),
		MediaType:         MediaType(payload[volumeOffMediaType]),
		MediaFlags:        MediaFlags(payload[volumeOffMediaFlags]),
		CompressionLevel:  CompressionLevel(payload[volumeOffCompressionLevel]),
		CompressionMethod: CompressionMethodDeflate,
		SetIdentifier:     setID,
	}
	return nil
}

// encodeVolumeSection renders a "volume" section payload from h.geo,
// the write-path counterpart to parseVolume.
func (h *Handle) encodeVolumeSection() []byte {
	buf := make([]byte, volumePayloadMinSize)

	buf[volumeOffMediaType] = byte(h.geo.MediaType)
	binary.LittleEndian.PutUint32(buf[volumeOffNumberOfChunks:volumeOffNumberOfChunks+4], uint32(h.index.Len()))
	binary.LittleEndian.PutUint32(buf[volumeOffSectorsPerChunk:volumeOffSectorsPerChunk+4], h.geo.SectorsPerChunk)
	binary.LittleEndian.PutUint32(buf[volumeOffBytesPerSector:volumeOffBytesPerSector+4], h.geo.BytesPerSector)
	binary.LittleEndian.PutUint32(buf[volumeOffNumberOfSectors:volumeOffNumberOfSectors+4], uint32(h.geo.NumberOfSectors))
	binary.LittleEndian.PutUint32(buf[volumeOffErrorGranularity:volumeOffErrorGranularity+4], h.geo.ErrorGranularity)
	copy(buf[volumeOffSetIdentifier:volumeOffSetIdentifier+16], h.geo.SetIdentifier[:])
	buf[volumeOffCompressionLevel] = byte(h.geo.CompressionLevel)
	buf[volumeOffMediaFlags] = byte(h.geo.MediaFlags)

	checksum := codec.Checksum32(buf[:volumeOffChecksum])
	binary.LittleEndian.PutUint32(buf[volumeOffChecksum:volumeOffChecksum+4], checksum)
	return buf
}
