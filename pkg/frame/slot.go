package frame

import (
	"sync"
	"sync/atomic"
)

// Slot holds at most one frame: the most recently published one.
// Publishing overwrites unread content; nothing is ever queued.
type Slot struct {
	mu     sync.Mutex
	frame  Frame
	full   bool
	closed bool

	published atomic.Uint64
	taken     atomic.Uint64
	dropped   atomic.Uint64
}

// SlotStats is a snapshot of slot counters.
type SlotStats struct {
	Published uint64 `json:"published"`
	Taken     uint64 `json:"taken"`
	Dropped   uint64 `json:"dropped"`
	Full      bool   `json:"full"`
	LastSeq   uint64 `json:"last_seq"`
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Publish replaces the slot content with f. It reports whether an unread
// frame was discarded. Publishing to a closed slot is a no-op.
func (s *Slot) Publish(f Frame) (dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if s.full {
		s.dropped.Add(1)
		dropped = true
	}
	s.frame = f
	s.full = true
	s.published.Add(1)
	return dropped
}

// TryTakeLatest returns and consumes the current frame without blocking.
// The second result is false when no unread frame is present.
func (s *Slot) TryTakeLatest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.full {
		return Frame{}, false
	}
	s.full = false
	s.taken.Add(1)
	return s.frame, true
}

// Peek returns the latest published frame without consuming it.
// It keeps returning the last frame after it has been taken.
func (s *Slot) Peek() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame.Empty() {
		return Frame{}, false
	}
	return s.frame, true
}

// Close empties the slot and rejects further frames.
func (s *Slot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.full = false
	s.frame = Frame{}
}

// Stats returns a snapshot of slot counters.
func (s *Slot) Stats() SlotStats {
	s.mu.Lock()
	full, seq := s.full, s.frame.Seq
	s.mu.Unlock()

	return SlotStats{
		Published: s.published.Load(),
		Taken:     s.taken.Load(),
		Dropped:   s.dropped.Load(),
		Full:      full,
		LastSeq:   seq,
	}
}
