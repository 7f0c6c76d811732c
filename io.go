package ewf

import (
	"fmt"
	"io"

	"github.com/ewf-forensics/goewf/internal/media"
	"github.com/ewf-forensics/goewf/internal/metadata"
	"github.com/ewf-forensics/goewf/internal/segment"
)

// Whence mirrors io.Seek* for SeekOffset's `seek_offset(offset, whence)`.
type Whence int

const (
	SeekStart   Whence = io.SeekStart
	SeekCurrent Whence = io.SeekCurrent
	SeekEnd     Whence = io.SeekEnd
)

// SeekOffset repositions the handle's read/write cursor.
func (h *Handle) SeekOffset(offset int64, whence Whence) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return 0, err
	}

	var base int64
	switch whence {
	case SeekStart:
		base = 0
	case SeekCurrent:
		base = h.offset
	case SeekEnd:
		base = h.engine.Size()
	default:
		return 0, newErr(ErrInvalidArgument, "invalid whence")
	}

	newOffset := base + offset
	if newOffset < 0 {
		return 0, newErr(ErrValueOutOfBounds, "seek before start of media")
	}
	h.offset = newOffset
	return h.offset, nil
}

// GetOffset returns the handle's current cursor.
func (h *Handle) GetOffset() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.offset
}

// ReadBuffer reads len(p) bytes (or fewer, at end of media) from the
// current cursor and advances it, `read_buffer`.
func (h *Handle) ReadBuffer(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return 0, err
	}
	n, err := h.engine.ReadAt(p, h.offset)
	h.offset += int64(n)
	if err != nil {
		if err == io.EOF {
			return n, io.EOF
		}
		return n, wrapErr(ErrChunkCorrupt, "read_buffer", err)
	}
	return n, nil
}

// ReadBufferAt reads len(p) bytes at an explicit offset without moving
// the handle's cursor (`read_buffer_at_offset`).
func (h *Handle) ReadBufferAt(p []byte, offset int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return 0, err
	}
	n, err := h.engine.ReadAt(p, offset)
	if err != nil {
		if err == io.EOF {
			return n, io.EOF
		}
		return n, wrapErr(ErrChunkCorrupt, "read_buffer_at_offset", err)
	}
	return n, nil
}

// WriteBuffer appends/overlays p at the current cursor and advances it
// (`write_buffer`). During initial streaming acquisition
// (AccessWrite without AccessResume, before WriteFinalize) this appends
// new chunks through the planner; after finalize it performs a
// read-modify-write through the delta writer.
func (h *Handle) WriteBuffer(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return 0, err
	}
	n, err := h.writeAtLocked(p, h.offset)
	h.offset += int64(n)
	return n, err
}

// WriteBufferAt writes p at an explicit offset without moving the
// handle's cursor (`write_buffer_at_offset`).
func (h *Handle) WriteBufferAt(p []byte, offset int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return 0, err
	}
	return h.writeAtLocked(p, offset)
}

func (h *Handle) writeAtLocked(p []byte, offset int64) (int, error) {
	if h.aborted {
		// SignalAbort already finalized whatever was durably written
		// with a terminal "done" section; no further writes are
		// accepted in this session.
		return 0, Kind(ErrAborted)
	}

	if h.planner != nil {
		// Still streaming: random writes before finalize aren't
		// supported (write-then-finalize lifecycle is
		// strictly sequential), only sequential append at the current
		// write position.
		chunkSize := int64(h.mediaParams().ChunkSize())
		if offset != int64(h.index.Len())*chunkSize {
			return 0, newErr(ErrInvalidState, "random write during streaming acquisition")
		}
		if err := h.planner.WriteChunk(p); err != nil {
			return 0, wrapErr(ErrIoFailure, "write_buffer", err)
		}
		return len(p), nil
	}

	if h.access&AccessWrite == 0 {
		return 0, newErr(ErrInvalidState, "handle not opened for writing")
	}
	if err := h.ensureDeltaWriter(); err != nil {
		return 0, err
	}
	n, err := h.delta.WriteAt(p, offset)
	if err != nil {
		return n, wrapErr(ErrIoFailure, "write_buffer", err)
	}
	return n, nil
}

// WriteFinalize completes a streaming acquisition: it writes the
// volume/header/hash sections and the terminal "done" section, then
// switches the handle into random-access (delta-write) mode
// (`write_finalize`).
func (h *Handle) WriteFinalize() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return err
	}
	if h.planner == nil {
		return newErr(ErrInvalidState, "write_finalize called outside a streaming acquisition")
	}

	if err := h.writeMetadataSections(); err != nil {
		return wrapErr(ErrIoFailure, "write_finalize", err)
	}
	if err := h.planner.Finalize(); err != nil {
		return wrapErr(ErrIoFailure, "write_finalize", err)
	}
	h.planner = nil
	return nil
}

// writeMetadataSections lays down the volume, header(/2/x) and hash(/x)
// sections immediately before the terminal "done" section: media
// geometry and case metadata are written once, at the end of the
// stream, rather than known up front.
func (h *Handle) writeMetadataSections() error {
	if err := h.planner.WriteMetadataSection(segment.TypeVolume, h.encodeVolumeSection()); err != nil {
		return err
	}

	variant, sectionType := metadata.VariantHeader2, segment.TypeHeader2
	if h.dialect == segment.V2 {
		variant, sectionType = metadata.VariantXHeader, segment.TypeXHeader
	}
	headerPayload, err := metadata.EncodeSection(h.headerValues, variant, h.codepage)
	if err != nil {
		return fmt.Errorf("encoding header section: %w", err)
	}
	if err := h.planner.WriteMetadataSection(sectionType, headerPayload); err != nil {
		return err
	}

	if h.hashValues.Count() > 0 {
		if h.dialect == segment.V2 {
			xhashPayload, err := metadata.EncodeXHash(h.hashValues)
			if err != nil {
				return fmt.Errorf("encoding xhash section: %w", err)
			}
			if err := h.planner.WriteMetadataSection(segment.TypeXHash, xhashPayload); err != nil {
				return err
			}
		} else if _, ok := h.hashValues.Get("md5"); ok {
			hashPayload, err := metadata.EncodeLegacyHash(h.hashValues)
			if err != nil {
				return fmt.Errorf("encoding hash section: %w", err)
			}
			if err := h.planner.WriteMetadataSection(segment.TypeHash, hashPayload); err != nil {
				return err
			}
		}
	}
	return nil
}

// ensureDeltaWriter lazily creates the random-access delta writer the
// first time a post-finalize write is attempted.
func (h *Handle) ensureDeltaWriter() error {
	if h.delta != nil {
		return nil
	}
	if h.deltaSegmentFilename == "" {
		ext := ".d01"
		if h.dialect == segment.V2 {
			ext = ".dx01"
		}
		h.deltaSegmentFilename = h.segmentFilenames[0] + ext
	}
	h.delta = media.NewDeltaWriter(h.engine, h.index, h.pool, h.dialect, h.deltaSegmentFilename)
	return nil
}
