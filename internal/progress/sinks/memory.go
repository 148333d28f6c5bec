package sinks

import (
	"context"
	"sync"

	"github.com/JakeFAU/datasetcrawler/internal/progress"
)

const defaultHistory = 1000

// MemorySink keeps the most recent events in a ring buffer and numbers them
// with a monotonically increasing sequence so pollers can resume.
type MemorySink struct {
	mu      sync.RWMutex
	ring    []progress.Event
	next    int
	full    bool
	lastSeq uint64
}

// NewMemorySink retains up to capacity events (default 1000).
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = defaultHistory
	}
	return &MemorySink{ring: make([]progress.Event, capacity)}
}

// Consume appends the batch to the history.
func (s *MemorySink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.lastSeq++
		evt.Seq = s.lastSeq
		s.ring[s.next] = evt
		s.next = (s.next + 1) % len(s.ring)
		if s.next == 0 {
			s.full = true
		}
	}
	return nil
}

// After returns up to limit retained events with Seq greater than after,
// oldest first. A non-positive limit returns everything available.
func (s *MemorySink) After(after uint64, limit int) []progress.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := s.orderedLocked()
	out := make([]progress.Event, 0, len(ordered))
	for _, evt := range ordered {
		if evt.Seq <= after {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// LastSeq returns the sequence number of the newest event.
func (s *MemorySink) LastSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq
}

func (s *MemorySink) orderedLocked() []progress.Event {
	if !s.full {
		return s.ring[:s.next]
	}
	out := make([]progress.Event, 0, len(s.ring))
	out = append(out, s.ring[s.next:]...)
	return append(out, s.ring[:s.next]...)
}

// Close implements progress.Sink; history stays readable after Close.
func (s *MemorySink) Close(context.Context) error {
	return nil
}
