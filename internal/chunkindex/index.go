// Package chunkindex implements the global, ordered mapping from chunk
// number to its on-disk location: O(1) lookup, O(1) append during
// writes, and delta-segment overlay for post-creation edits.
package chunkindex

import "fmt"

// Flags describes how a chunk is stored on disk.
type Flags uint8

const (
	FlagCompressed Flags = 1 << iota
	FlagHasTrailingChecksum
	FlagIsDelta
	FlagIsSparse
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Descriptor is one chunk's on-disk location.
type Descriptor struct {
	SegmentRef string // segment filename the chunk lives in
	FileOffset int64  // absolute offset of the chunk's stored bytes
	StoredSize uint32 // on-disk size (compressed size if Flags.Compressed)
	Flags      Flags
}

func (d Descriptor) Compressed() bool   { return d.Flags.Has(FlagCompressed) }
func (d Descriptor) HasChecksum() bool  { return d.Flags.Has(FlagHasTrailingChecksum) }
func (d Descriptor) IsDelta() bool      { return d.Flags.Has(FlagIsDelta) }
func (d Descriptor) IsSparse() bool     { return d.Flags.Has(FlagIsSparse) }

// Index is the chunk_number -> Descriptor table. entries[i] holds chunk
// number i; a delta overlay replaces an entry in place (swap, not
// duplicate), while retaining the displaced primary descriptor for
// read-only fallback if the delta segment later becomes unreadable.
type Index struct {
	entries  []Descriptor
	fallback map[int]Descriptor // chunk number -> primary descriptor displaced by a delta
}

// New creates an empty chunk index.
func New() *Index {
	return &Index{fallback: make(map[int]Descriptor)}
}

// Len returns the number of chunks currently indexed.
func (idx *Index) Len() int { return len(idx.entries) }

// Get returns the descriptor for chunkNumber.
func (idx *Index) Get(chunkNumber int) (Descriptor, error) {
	if chunkNumber < 0 || chunkNumber >= len(idx.entries) {
		return Descriptor{}, fmt.Errorf("chunkindex: chunk %d out of range [0,%d)", chunkNumber, len(idx.entries))
	}
	return idx.entries[chunkNumber], nil
}

// Append records a newly-written chunk, advancing Len by one. Chunk
// numbers are assigned in append order as the index grows during a
// write.
func (idx *Index) Append(d Descriptor) int {
	idx.entries = append(idx.entries, d)
	return len(idx.entries) - 1
}

// AppendFromTable loads entries scanned from a "table" section in read
// order, advancing chunk numbers monotonically starting at
// startChunkNumber. Used when building the index during open. It is
// an error to leave gaps: entries must extend the index contiguously
// from its current length.
func (idx *Index) AppendFromTable(startChunkNumber int, entries []Descriptor) error {
	if startChunkNumber != len(idx.entries) {
		return fmt.Errorf("chunkindex: table starts at chunk %d, expected %d (gap or overlap)", startChunkNumber, len(idx.entries))
	}
	idx.entries = append(idx.entries, entries...)
	return nil
}

// ReplaceFromDelta overlays a delta segment's entry onto chunkNumber,
// retaining the displaced primary descriptor as a fallback. It is the
// caller's responsibility to have verified the delta segment's own
// table is valid before calling this.
func (idx *Index) ReplaceFromDelta(chunkNumber int, d Descriptor) error {
	if chunkNumber < 0 || chunkNumber >= len(idx.entries) {
		return fmt.Errorf("chunkindex: delta targets chunk %d out of range [0,%d)", chunkNumber, len(idx.entries))
	}
	d.Flags |= FlagIsDelta
	if _, alreadyOverlaid := idx.fallback[chunkNumber]; !alreadyOverlaid {
		idx.fallback[chunkNumber] = idx.entries[chunkNumber]
	}
	idx.entries[chunkNumber] = d
	return nil
}

// FallbackTo restores chunkNumber's primary (pre-delta) descriptor,
// used when a delta segment becomes unreadable.
func (idx *Index) FallbackTo(chunkNumber int) (Descriptor, bool) {
	d, ok := idx.fallback[chunkNumber]
	if ok {
		idx.entries[chunkNumber] = d
		delete(idx.fallback, chunkNumber)
	}
	return d, ok
}
