package crawler

import (
	"sync"
	"sync/atomic"
)

// State is the shared per-run pipeline state: the counters every stage
// updates and the one-shot cancellation token every stage polls. A State is
// created by the controller for each run and handed to each component at
// construction time. All methods are safe for concurrent use.
type State struct {
	pagesFetched     atomic.Int64
	fetchFailures    atomic.Int64
	documentsSaved   atomic.Int64
	documentsDropped atomic.Int64

	cancelOnce sync.Once
	cancelled  atomic.Bool
	done       chan struct{}
}

// NewState returns a State with zeroed counters and an unset token.
func NewState() *State {
	return &State{done: make(chan struct{})}
}

// Cancel sets the cancellation token. Only the first call has an effect.
func (s *State) Cancel() {
	s.cancelOnce.Do(func() {
		s.cancelled.Store(true)
		close(s.done)
	})
}

// Cancelled reports whether the token is set.
func (s *State) Cancelled() bool {
	return s.cancelled.Load()
}

// Done is closed once the token is set.
func (s *State) Done() <-chan struct{} {
	return s.done
}

// AddPageFetched records one successful fetch.
func (s *State) AddPageFetched() int64 {
	return s.pagesFetched.Add(1)
}

// AddFetchFailure records one failed fetch.
func (s *State) AddFetchFailure() int64 {
	return s.fetchFailures.Add(1)
}

// AddDocumentsSaved records n committed rows.
func (s *State) AddDocumentsSaved(n int) int64 {
	return s.documentsSaved.Add(int64(n))
}

// AddDocumentsDropped records n records lost to backpressure or a failed commit.
func (s *State) AddDocumentsDropped(n int) int64 {
	return s.documentsDropped.Add(int64(n))
}

// Snapshot returns a read-only copy of the counters.
func (s *State) Snapshot() Counters {
	return Counters{
		PagesFetched:     s.pagesFetched.Load(),
		FetchFailures:    s.fetchFailures.Load(),
		DocumentsSaved:   s.documentsSaved.Load(),
		DocumentsDropped: s.documentsDropped.Load(),
	}
}
