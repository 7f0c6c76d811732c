// Package ewf implements reading and writing of EWF (Expert Witness
// Format, E01) and LEF (Logical Evidence File) forensic disk-image
// containers.
package ewf

import (
	"fmt"
	"sync"

	"github.com/ewf-forensics/goewf/internal/chunkindex"
	"github.com/ewf-forensics/goewf/internal/codec"
	"github.com/ewf-forensics/goewf/internal/media"
	"github.com/ewf-forensics/goewf/internal/metadata"
	"github.com/ewf-forensics/goewf/internal/segment"
)

// AccessFlags is the open-mode bitset.
type AccessFlags uint8

const (
	AccessRead AccessFlags = 1 << iota
	AccessWrite
	AccessResume // open an interrupted write image and continue it
)

// Logger is the minimal sink for diagnostic/warning output (demoted
// non-essential parse failures, cache pressure, etc). A nil Logger is
// a no-op; the package never reaches for a logging framework itself
// (injected-logger design note).
type Logger interface {
	Warnf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warnf(string, ...any) {}

// Handle is an open EWF/LEF acquisition: one logical media stream
// spread across one or more segment files, plus its metadata tables.
// All exported methods are safe for concurrent use.
type Handle struct {
	mu sync.Mutex

	access AccessFlags
	geo    Geometry
	logger Logger

	pool    *segment.Pool
	dialect segment.Dialect
	index   *chunkindex.Index
	engine  *media.Engine
	planner *media.WritePlanner
	delta   *media.DeltaWriter

	headerValues *metadata.HeaderValues
	hashValues   *metadata.HashValues
	acquiryErrs  *metadata.RangeList
	checksumErrs *metadata.RangeList
	sessions     *metadata.SessionList
	tracks       *metadata.TrackList
	codepage     metadata.Codepage

	segmentFilenames      []string
	deltaSegmentFilename  string
	maximumSegmentSize    int64
	maximumDeltaSegment   int64
	readZeroChunkOnError  bool
	headerValuesDateLayout string

	offset int64 // current seek position, for read_buffer/write_buffer

	closed  bool
	aborted bool
}

// Builder configures a Handle prior to Open, collapsing a v1-vs-v2
// "two APIs" ambiguity into a single construction path: every option
// is set before Open, and nothing may be reconfigured afterward.
type Builder struct {
	access             AccessFlags
	geo                Geometry
	logger             Logger
	codepage           metadata.Codepage
	maximumSegmentSize int64
	maximumDeltaSize   int64
	cacheCapacity      int
	poolCapacity       int
}

// NewBuilder returns a Builder with documented defaults.
func NewBuilder() *Builder {
	return &Builder{
		access:             AccessRead,
		codepage:           metadata.CodepageASCII,
		maximumSegmentSize: 1400 * 1024 * 1024,
		maximumDeltaSize:   2 * 1024 * 1024 * 1024,
		cacheCapacity:      64,
		poolCapacity:       16,
	}
}

func (b *Builder) WithAccess(flags AccessFlags) *Builder { b.access = flags; return b }
func (b *Builder) WithGeometry(g Geometry) *Builder       { b.geo = g; return b }
func (b *Builder) WithLogger(l Logger) *Builder           { b.logger = l; return b }
func (b *Builder) WithHeaderCodepage(cp metadata.Codepage) *Builder {
	b.codepage = cp
	return b
}
func (b *Builder) WithMaximumSegmentSize(n int64) *Builder {
	b.maximumSegmentSize = n
	return b
}
func (b *Builder) WithMaximumDeltaSegmentSize(n int64) *Builder {
	b.maximumDeltaSize = n
	return b
}
func (b *Builder) WithCacheCapacity(n int) *Builder { b.cacheCapacity = n; return b }
func (b *Builder) WithSegmentPoolCapacity(n int) *Builder {
	b.poolCapacity = n
	return b
}

// Open opens an existing acquisition spread across filenames (read or
// resume) or begins a new one at filenames[0] (write): `open(filenames,
// flags)`.
func (b *Builder) Open(filenames []string) (*Handle, error) {
	if len(filenames) == 0 {
		return nil, newErr(ErrInvalidArgument, "open requires at least one filename")
	}

	logger := b.logger
	if logger == nil {
		logger = noopLogger{}
	}

	h := &Handle{
		access:               b.access,
		geo:                  b.geo,
		logger:               logger,
		index:                chunkindex.New(),
		headerValues:         metadata.NewHeaderValues(),
		hashValues:           metadata.NewHashValues(),
		acquiryErrs:          metadata.NewRangeList(),
		checksumErrs:         metadata.NewRangeList(),
		sessions:             metadata.NewSessionList(),
		tracks:               metadata.NewTrackList(),
		codepage:             b.codepage,
		segmentFilenames:     append([]string(nil), filenames...),
		maximumSegmentSize:   b.maximumSegmentSize,
		maximumDeltaSegment:  b.maximumDeltaSize,
		headerValuesDateLayout: "2 1 6 15 4 5",
	}

	h.pool = segment.NewPool(b.poolCapacity, func(path string) (*segment.File, uint16, error) {
		return segment.OpenRead(path)
	})

	if b.access&AccessWrite != 0 && b.access&AccessResume == 0 {
		// Fresh write: nothing to parse yet, the planner lazily creates
		// the first segment on the first WriteChunk.
		h.dialect = segment.V1
		if h.geo.Format.IsV2() {
			h.dialect = segment.V2
		}
		if h.geo.SetIdentifier == ([16]byte{}) {
			h.geo.SetIdentifier = metadata.NewSetIdentifier()
		}
		h.engine = media.NewEngine(h.mediaParams(), h.index, h.pool, b.cacheCapacity)
		h.planner = media.NewWritePlanner(h.mediaParams(), h.index, h.pool, h.nextSegmentName, h.dialect, h.maximumSegmentSize)
		h.wireEngine()
		return h, nil
	}

	if err := h.loadSegments(); err != nil {
		return nil, err
	}
	h.engine = media.NewEngine(h.mediaParams(), h.index, h.pool, b.cacheCapacity)
	h.wireEngine()
	return h, nil
}

// wireEngine connects the engine to handle-level state it cannot see
// on its own: the zero_on_error_chunk repair flag and the
// checksum-error list it reports into. The recorder runs under
// whatever lock the caller already holds (ReadBuffer/ReadBufferAt hold
// h.mu for the whole call), so it must not try to reacquire h.mu.
func (h *Handle) wireEngine() {
	h.engine.SetZeroOnChecksumError(h.readZeroChunkOnError)
	h.engine.SetChecksumErrorRecorder(func(chunkNumber uint64) {
		h.checksumErrs.Add(chunkNumber*uint64(h.geo.SectorsPerChunk), uint64(h.geo.SectorsPerChunk))
	})
}

// nextSegmentName resolves the filename for the n'th (one-based)
// segment of a streaming write, using the filename templates in
// filenames.go. h.segmentFilenames[0] is treated as the extension-free
// base path the Builder was opened with.
func (h *Handle) nextSegmentName(n int) (string, error) {
	return SegmentFilename(h.segmentFilenames[0], n, h.geo.Format, false)
}

// compressionLevelFor maps the public CompressionLevel enum onto
// internal/codec.Level. The two enums order their members differently
// (CompressionLevel's EmptyBlock sits right after None; codec.Level's
// sits last), so this must be an explicit switch, never a numeric cast.
func compressionLevelFor(l CompressionLevel) codec.Level {
	switch l {
	case CompressionNone:
		return codec.LevelNone
	case CompressionEmptyBlock:
		return codec.LevelEmptyBlock
	case CompressionFast:
		return codec.LevelFast
	case CompressionBest:
		return codec.LevelBest
	default:
		return codec.LevelNone
	}
}

func (h *Handle) mediaParams() media.Params {
	return media.Params{
		SectorSize:   h.geo.BytesPerSector,
		ChunkSectors: h.geo.SectorsPerChunk,
		Compression:  compressionLevelFor(h.geo.CompressionLevel),
		MediaSize:    h.geo.MediaSize,
	}
}

// loadSegments walks every segment file in order, building the chunk
// index and metadata tables from the combined section walk across all
// segments, not just one file.
func (h *Handle) loadSegments() error {
	nextChunkNumber := 0
	for _, path := range h.segmentFilenames {
		f, _, err := segment.OpenRead(path)
		if err != nil {
			return wrapErr(ErrIoFailure, fmt.Sprintf("opening segment %q", path), err)
		}
		h.pool.Put(path, f)
		if h.dialect == nil {
			h.dialect = f.Dialect()
		}

		sections, err := f.Walk()
		if err != nil {
			return wrapErr(ErrSegmentCorrupt, fmt.Sprintf("walking segment %q", path), err)
		}

		for _, s := range sections {
			switch s.Type {
			case segment.TypeVolume, segment.TypeDisk:
				payload, err := f.ReadPayload(s)
				if err != nil {
					return wrapErr(ErrSegmentCorrupt, "reading volume section", err)
				}
				if err := h.parseVolume(payload); err != nil {
					return wrapErr(ErrSegmentCorrupt, "parsing volume section", err)
				}
			case segment.TypeHeader:
				payload, err := f.ReadPayload(s)
				if err == nil {
					if hv, err := metadata.DecodeSection(payload, metadata.VariantHeader, h.codepage); err == nil {
						h.headerValues = hv
					} else {
						h.logger.Warnf("ewf: header section parse failed: %v", err)
					}
				}
			case segment.TypeHeader2:
				payload, err := f.ReadPayload(s)
				if err == nil {
					if hv, err := metadata.DecodeSection(payload, metadata.VariantHeader2, h.codepage); err == nil {
						h.headerValues = hv
					} else {
						h.logger.Warnf("ewf: header2 section parse failed: %v", err)
					}
				}
			case segment.TypeXHeader:
				payload, err := f.ReadPayload(s)
				if err == nil {
					if hv, err := metadata.DecodeSection(payload, metadata.VariantXHeader, h.codepage); err == nil {
						h.headerValues = hv
					} else {
						h.logger.Warnf("ewf: xheader section parse failed: %v", err)
					}
				}
			case segment.TypeHash:
				payload, err := f.ReadPayload(s)
				if err == nil {
					if hv, err := metadata.DecodeLegacyHash(payload); err == nil {
						h.hashValues = hv
					} else {
						h.logger.Warnf("ewf: hash section parse failed: %v", err)
					}
				}
			case segment.TypeXHash:
				payload, err := f.ReadPayload(s)
				if err == nil {
					if hv, err := metadata.DecodeXHash(payload); err == nil {
						h.hashValues = hv
					} else {
						h.logger.Warnf("ewf: xhash section parse failed: %v", err)
					}
				}
			case segment.TypeTable:
				entries, err := h.parseTable(f, path, s)
				if err != nil {
					return wrapErr(ErrSegmentCorrupt, "parsing table section", err)
				}
				if err := h.index.AppendFromTable(nextChunkNumber, entries); err != nil {
					return wrapErr(ErrSegmentCorrupt, "table section gap", err)
				}
				nextChunkNumber += len(entries)
			case segment.TypeSectors:
				// This package's own writer (internal/media.WritePlanner)
				// packs exactly one chunk per "sectors" section rather
				// than pairing a multi-chunk sectors section with a
				// separate table section; recover that framing directly.
				desc, err := h.parseInlineSectorsChunk(f, path, s)
				if err != nil {
					return wrapErr(ErrSegmentCorrupt, "parsing sectors section", err)
				}
				h.index.Append(desc)
				nextChunkNumber++
			}
		}
	}
	return nil
}

// Close releases the handle's open segment files. Repeated calls are a
// no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.pool.CloseAll()
}

// SignalAbort stops any in-progress streaming write at the current
// chunk boundary (`signal_abort`). It finalizes the current segment
// with a terminal "done" section immediately, rather than waiting for
// the next WriteChunk call, so the image is left in a well-formed,
// readable state (a fresh open reports number_of_sectors for whatever
// was durably written) instead of dangling open-ended.
func (h *Handle) SignalAbort() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.aborted = true
	if h.planner != nil {
		if err := h.planner.Abort(); err != nil {
			h.logger.Warnf("ewf: signal_abort: %v", err)
		}
		h.planner = nil
	}
}

func (h *Handle) checkOpen() error {
	if h.closed {
		return newErr(ErrInvalidState, "handle is closed")
	}
	return nil
}
