package metadata

import "fmt"

// Range is a contiguous run of sector or chunk numbers, the shape
// shared by acquisition-error lists, checksum-error lists, sessions and
// tracks: each is kept as an array of start/count pairs in the order
// they were added; the lists do not sort their entries.
type Range struct {
	Start uint64
	Count uint64
}

func (r Range) End() uint64 { return r.Start + r.Count }

// RangeList is an append-only, order-preserving list of Ranges that
// coalesces adjacent or overlapping entries on Add: a run appended
// immediately after an existing run's end is merged into it rather
// than kept as a second entry.
type RangeList struct {
	ranges []Range
}

// NewRangeList returns an empty range list.
func NewRangeList() *RangeList { return &RangeList{} }

// Add records [start, start+count) as touched, merging with the
// preceding entry when the new run overlaps or touches it. Adjacent
// error ranges are coalesced rather than kept as separate entries; a
// disjoint run is appended as a new entry.
func (l *RangeList) Add(start, count uint64) error {
	if count == 0 {
		return fmt.Errorf("metadata: range count must be nonzero")
	}
	if n := len(l.ranges); n > 0 {
		last := &l.ranges[n-1]
		if start <= last.End() && start+count >= last.Start {
			newStart, newEnd := last.Start, last.End()
			if start < newStart {
				newStart = start
			}
			if start+count > newEnd {
				newEnd = start + count
			}
			last.Start = newStart
			last.Count = newEnd - newStart
			return nil
		}
	}
	l.ranges = append(l.ranges, Range{Start: start, Count: count})
	return nil
}

// Len returns the number of (already-coalesced) ranges.
func (l *RangeList) Len() int { return len(l.ranges) }

// At returns the index'th range.
func (l *RangeList) At(index int) (Range, error) {
	if index < 0 || index >= len(l.ranges) {
		return Range{}, fmt.Errorf("metadata: range index %d out of range", index)
	}
	return l.ranges[index], nil
}

// All returns a copy of the coalesced range slice.
func (l *RangeList) All() []Range {
	out := make([]Range, len(l.ranges))
	copy(out, l.ranges)
	return out
}

// Session additionally carries the session's media-flags snapshot
// (sessions distinguish audio/data tracks on optical media).
type Session struct {
	Range
	Flags uint32
}

// SessionList holds the acquisition's recorded optical-disc sessions.
type SessionList struct {
	sessions []Session
}

func NewSessionList() *SessionList { return &SessionList{} }

func (l *SessionList) Add(s Session) { l.sessions = append(l.sessions, s) }

func (l *SessionList) Len() int { return len(l.sessions) }

func (l *SessionList) At(index int) (Session, error) {
	if index < 0 || index >= len(l.sessions) {
		return Session{}, fmt.Errorf("metadata: session index %d out of range", index)
	}
	return l.sessions[index], nil
}

// Track is one optical-disc track's sector range; tracks
// are recorded per-session but addressed by a flat, globally-ordered
// index on the public handle.
type Track struct {
	Range
}

// TrackList holds the acquisition's recorded optical-disc tracks.
type TrackList struct {
	tracks []Track
}

func NewTrackList() *TrackList { return &TrackList{} }

func (l *TrackList) Add(t Track) { l.tracks = append(l.tracks, t) }

func (l *TrackList) Len() int { return len(l.tracks) }

func (l *TrackList) At(index int) (Track, error) {
	if index < 0 || index >= len(l.tracks) {
		return Track{}, fmt.Errorf("metadata: track index %d out of range", index)
	}
	return l.tracks[index], nil
}
