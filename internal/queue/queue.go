// Package queue implements the bounded persistence queue that sits between
// the crawl workers and the batch writer.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
)

// DefaultCapacity bounds the queue when no capacity is configured.
const DefaultCapacity = 65536

var (
	// ErrFull is returned when a push finds no free slot in time.
	ErrFull = errors.New("queue full")
	// ErrClosed is returned by pushes after Close.
	ErrClosed = errors.New("queue closed")
)

// Queue is a bounded FIFO of document records with many producers and one
// consumer. Every popped record must be acknowledged with Done so that
// WaitDrained can tell when all pushed work has been persisted.
type Queue struct {
	ch chan crawler.DocumentRecord
	// sendMu is held shared by every push and exclusively by Close, so no
	// send can land after Close returns.
	sendMu   sync.RWMutex
	closed   bool
	closedCh chan struct{}
	once     sync.Once

	mu      sync.Mutex
	pending int
	idle    chan struct{}
}

// New constructs a queue with the provided capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		ch:       make(chan crawler.DocumentRecord, capacity),
		closedCh: make(chan struct{}),
		idle:     idle,
	}
}

// TryPush enqueues rec without blocking.
func (q *Queue) TryPush(rec crawler.DocumentRecord) error {
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	q.begin()
	select {
	case q.ch <- rec:
		return nil
	default:
		q.Done()
		return ErrFull
	}
}

// PushWait enqueues rec, waiting up to timeout for a free slot.
func (q *Queue) PushWait(rec crawler.DocumentRecord, timeout time.Duration) error {
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	q.begin()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case q.ch <- rec:
		return nil
	case <-q.closedCh:
		q.Done()
		return ErrClosed
	case <-timer.C:
		q.Done()
		return fmt.Errorf("wait %s: %w", timeout, ErrFull)
	}
}

// Pop returns the oldest record, waiting up to timeout. ok is false when
// nothing arrived in time.
func (q *Queue) Pop(timeout time.Duration) (rec crawler.DocumentRecord, ok bool) {
	select {
	case rec = <-q.ch:
		return rec, true
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case rec = <-q.ch:
		return rec, true
	case <-timer.C:
		return crawler.DocumentRecord{}, false
	}
}

// Done acknowledges one popped record.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == 0 {
		return
	}
	q.pending--
	if q.pending == 0 {
		close(q.idle)
	}
}

// WaitDrained blocks until every pushed record has been acknowledged.
func (q *Queue) WaitDrained(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for queue drain: %w", ctx.Err())
	}
}

// Len reports the number of buffered records.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap reports the capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Close rejects further pushes and wakes pushers blocked in PushWait. Once it
// returns Len is final apart from pops. Records already buffered can still be
// popped.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.closedCh)
		q.sendMu.Lock()
		q.closed = true
		q.sendMu.Unlock()
	})
}

func (q *Queue) begin() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == 0 {
		q.idle = make(chan struct{})
	}
	q.pending++
}
