package ewf

import "github.com/ewf-forensics/goewf/internal/metadata"

// --- geometry and format getters/setters ---

func (h *Handle) SectorsPerChunk() uint32 { return h.geo.SectorsPerChunk }
func (h *Handle) BytesPerSector() uint32  { return h.geo.BytesPerSector }
func (h *Handle) NumberOfSectors() uint64 { return h.geo.NumberOfSectors }
func (h *Handle) ChunkSize() uint64       { return h.geo.ChunkSize() }
func (h *Handle) ErrorGranularity() uint32 { return h.geo.ErrorGranularity }
func (h *Handle) CompressionMethod() CompressionMethod { return h.geo.CompressionMethod }
func (h *Handle) CompressionLevel() CompressionLevel   { return h.geo.CompressionLevel }
func (h *Handle) MediaSize() uint64       { return h.geo.MediaSize }
func (h *Handle) MediaType() MediaType    { return h.geo.MediaType }
func (h *Handle) MediaFlags() MediaFlags  { return h.geo.MediaFlags }
func (h *Handle) Format() Format          { return h.geo.Format }
func (h *Handle) SegmentFileSetIdentifier() [16]byte { return h.geo.SetIdentifier }
func (h *Handle) ReadZeroChunkOnError() bool { return h.readZeroChunkOnError }
func (h *Handle) HeaderCodepage() metadata.Codepage { return h.codepage }

func (h *Handle) SetSectorsPerChunk(n uint32) error {
	return h.setGeometryField(func() { h.geo.SectorsPerChunk = n })
}
func (h *Handle) SetBytesPerSector(n uint32) error {
	return h.setGeometryField(func() { h.geo.BytesPerSector = n })
}
func (h *Handle) SetNumberOfSectors(n uint64) error {
	return h.setGeometryField(func() {
		h.geo.NumberOfSectors = n
		h.geo.MediaSize = n * uint64(h.geo.BytesPerSector)
	})
}
func (h *Handle) SetErrorGranularity(n uint32) error {
	return h.setGeometryField(func() { h.geo.ErrorGranularity = n })
}
func (h *Handle) SetCompressionMethod(m CompressionMethod) error {
	return h.setGeometryField(func() { h.geo.CompressionMethod = m })
}
func (h *Handle) SetCompressionLevel(l CompressionLevel) error {
	return h.setGeometryField(func() { h.geo.CompressionLevel = l })
}
func (h *Handle) SetMediaSize(n uint64) error {
	return h.setGeometryField(func() { h.geo.MediaSize = n })
}
func (h *Handle) SetMediaType(t MediaType) error {
	return h.setGeometryField(func() { h.geo.MediaType = t })
}
func (h *Handle) SetMediaFlags(f MediaFlags) error {
	return h.setGeometryField(func() { h.geo.MediaFlags = f })
}
func (h *Handle) SetReadZeroChunkOnError(v bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readZeroChunkOnError = v
	if h.engine != nil {
		h.engine.SetZeroOnChecksumError(v)
	}
	return nil
}
func (h *Handle) SetHeaderCodepage(cp metadata.Codepage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.planner != nil {
		return newErr(ErrInvalidState, "cannot change codepage after streaming acquisition begins")
	}
	h.codepage = cp
	return nil
}

// setGeometryField applies mutate under lock, rejecting the change once
// a streaming write is already underway (Open Question 2:
// every post-write-initialization setter uniformly fails with
// InvalidState, no silent ignores).
func (h *Handle) setGeometryField(mutate func()) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.planner != nil && h.index.Len() > 0 {
		return newErr(ErrInvalidState, "cannot change geometry after chunks have been written")
	}
	mutate()
	if h.engine != nil {
		h.engine.SetMediaSize(h.geo.MediaSize)
	}
	return nil
}

// checkMetadataWritable rejects header/hash value mutation once chunk
// writing has begun, the same point geometry freezes at. Hash values
// are the one exception: a read+resume handle may still record hash
// values computed over chunks written in an earlier session,
// allowDuringResume exempts that case.
func (h *Handle) checkMetadataWritable(allowDuringResume bool) error {
	if h.planner == nil || h.index.Len() == 0 {
		return nil
	}
	if allowDuringResume && h.access&AccessResume != 0 {
		return nil
	}
	return newErr(ErrInvalidState, "cannot change metadata after chunk writing has begun")
}

// --- segment filename accessors ---

// MaximumSegmentSize returns the configured per-segment byte budget.
func (h *Handle) MaximumSegmentSize() int64 { return h.maximumSegmentSize }

// SetMaximumSegmentSize changes the handle's recorded per-segment byte
// budget. The write planner takes its budget once, at Open, so a
// change made after Open does not alter rollover of the current
// handle, and already-written segments are not affected.
func (h *Handle) SetMaximumSegmentSize(n int64) error {
	if n < 1 {
		return newErr(ErrValueTooSmall, "maximum segment size must be positive")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maximumSegmentSize = n
	return nil
}

// MaximumDeltaSegmentSize returns the configured delta-segment budget.
func (h *Handle) MaximumDeltaSegmentSize() int64 { return h.maximumDeltaSegment }

func (h *Handle) SetMaximumDeltaSegmentSize(n int64) error {
	if n < 1 {
		return newErr(ErrValueTooSmall, "maximum delta segment size must be positive")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maximumDeltaSegment = n
	return nil
}

// SegmentFilename returns the n'th (one-based) segment's filename.
func (h *Handle) SegmentFilename(n int) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n < 1 || n > len(h.segmentFilenames) {
		return "", newErr(ErrValueOutOfBounds, "segment number out of range")
	}
	return h.segmentFilenames[n-1], nil
}

// SetDeltaSegmentFilename overrides the default (base+.d01/.dx01)
// filename used for random-access writes.
func (h *Handle) SetDeltaSegmentFilename(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.delta != nil {
		return newErr(ErrInvalidState, "delta segment already opened")
	}
	h.deltaSegmentFilename = name
	return nil
}

func (h *Handle) DeltaSegmentFilename() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.deltaSegmentFilename
}

// Filename returns the primary (first) segment filename, the handle's
// canonical on-disk identity.
func (h *Handle) Filename() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.segmentFilenames) == 0 {
		return ""
	}
	return h.segmentFilenames[0]
}

// --- metadata tables ---

func (h *Handle) NumberOfHeaderValues() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.headerValues.Count()
}

func (h *Handle) HeaderValueIdentifier(index int) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.headerValues.IdentifierAt(index)
}

func (h *Handle) HeaderValue(identifier string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.headerValues.Get(identifier)
	if !ok {
		return "", Kind(ErrNotFound)
	}
	return v, nil
}

func (h *Handle) SetHeaderValue(identifier, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkMetadataWritable(false); err != nil {
		return err
	}
	h.headerValues.Set(identifier, value)
	return nil
}

// CopyHeaderValues bulk-replaces this handle's header table with a
// clone of src's (`copy_header_values`).
func (h *Handle) CopyHeaderValues(src *Handle) error {
	src.mu.Lock()
	clone := src.headerValues.Clone()
	src.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.headerValues = clone
	return nil
}

func (h *Handle) NumberOfHashValues() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hashValues.Count()
}

func (h *Handle) HashValue(name string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.hashValues.Get(name)
	if !ok {
		return "", Kind(ErrNotFound)
	}
	return v, nil
}

func (h *Handle) SetHashValue(name, hexDigest string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkMetadataWritable(true); err != nil {
		return err
	}
	h.hashValues.Set(name, hexDigest)
	return nil
}

// MD5Hash returns the md5 hash value, a dedicated accessor alongside
// the general hash-value suite.
func (h *Handle) MD5Hash() (string, error) { return h.HashValue("md5") }

// SHA1Hash returns the sha1 hash value.
func (h *Handle) SHA1Hash() (string, error) { return h.HashValue("sha1") }

// --- media-values bulk copy ---

// CopyMediaValues copies src's geometry into h, rejecting the copy once
// h has already started a streaming write.
func (h *Handle) CopyMediaValues(src *Handle) error {
	src.mu.Lock()
	geo := src.geo
	src.mu.Unlock()

	return h.setGeometryField(func() { h.geo = geo })
}

// --- event lists ---

func (h *Handle) NumberOfAcquiryErrors() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.acquiryErrs.Len()
}

func (h *Handle) AcquiryError(index int) (firstSector, numberOfSectors uint64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, err := h.acquiryErrs.At(index)
	if err != nil {
		return 0, 0, wrapErr(ErrValueOutOfBounds, "acquiry error index", err)
	}
	return r.Start, r.Count, nil
}

func (h *Handle) AppendAcquiryError(firstSector, numberOfSectors uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.acquiryErrs.Add(firstSector, numberOfSectors)
}

func (h *Handle) NumberOfChecksumErrors() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.checksumErrs.Len()
}

func (h *Handle) ChecksumError(index int) (firstSector, numberOfSectors uint64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, err := h.checksumErrs.At(index)
	if err != nil {
		return 0, 0, wrapErr(ErrValueOutOfBounds, "checksum error index", err)
	}
	return r.Start, r.Count, nil
}

func (h *Handle) AppendChecksumError(firstSector, numberOfSectors uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.checksumErrs.Add(firstSector, numberOfSectors)
}

func (h *Handle) NumberOfSessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions.Len()
}

func (h *Handle) Session(index int) (metadata.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions.At(index)
}

func (h *Handle) AppendSession(s metadata.Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions.Add(s)
	return nil
}

func (h *Handle) NumberOfTracks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tracks.Len()
}

func (h *Handle) Track(index int) (metadata.Track, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tracks.At(index)
}

func (h *Handle) AppendTrack(t metadata.Track) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tracks.Add(t)
	return nil
}
