package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBufferSize    = 4096
	defaultBatchSize     = 256
	defaultFlushInterval = 250 * time.Millisecond
	defaultSinkTimeout   = 5 * time.Second
	dropWarnInterval     = 5 * time.Second
)

// Config controls buffering and delivery for a Hub. Zero values take the
// defaults: a 4096 event buffer, batches of 256, a 250ms flush interval and
// a 5s per-sink deadline.
type Config struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	SinkTimeout   time.Duration
	Logger        *zap.Logger
	// OnDrop, when set, is told about every event lost to a full buffer.
	OnDrop func(n int)
}

// Hub fans run events out to sinks. Emit never blocks: events travel
// through a bounded buffer to one delivery goroutine, which hands each batch
// to all sinks concurrently so a slow sink only delays itself by its
// timeout.
type Hub struct {
	cfg    Config
	sinks  []Sink
	in     chan Event
	quit   chan struct{}
	done   chan struct{}
	logger *zap.Logger

	dropped    atomic.Int64
	unreported atomic.Int64
	dropWarn   *rate.Limiter
	closed     atomic.Bool
	closeOnce  sync.Once
}

// NewHub starts delivery to sinks. Nil sinks are skipped.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	h := &Hub{
		cfg:      cfg,
		in:       make(chan Event, cfg.BufferSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   cfg.Logger,
		dropWarn: newDropWarn(),
	}
	for _, s := range sinks {
		if s != nil {
			h.sinks = append(h.sinks, s)
		}
	}
	go h.loop()
	return h
}

// Emit queues evt for delivery. Invalid events and events arriving after
// Close are discarded; a full buffer drops the event.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid event", zap.Error(err))
		return
	}
	select {
	case h.in <- evt:
	default:
		h.drop()
	}
}

// Dropped reports how many events were lost to a full buffer.
func (h *Hub) Dropped() int64 {
	if h == nil {
		return 0
	}
	return h.dropped.Load()
}

// newDropWarn allows one buffer-full warning per dropWarnInterval.
func newDropWarn() *rate.Limiter {
	return rate.NewLimiter(rate.Every(dropWarnInterval), 1)
}

func (h *Hub) drop() {
	h.dropped.Add(1)
	h.unreported.Add(1)
	if h.cfg.OnDrop != nil {
		h.cfg.OnDrop(1)
	}
	if !h.dropWarn.Allow() {
		return
	}
	h.logger.Warn("event buffer full, events dropped", zap.Int64("dropped", h.unreported.Swap(0)))
}

// Close delivers what is buffered, closes every sink and waits for the
// delivery goroutine. Later calls return immediately.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		close(h.quit)
	})
	select {
	case <-h.done:
	case <-ctx.Done():
		return fmt.Errorf("wait for event delivery: %w", ctx.Err())
	}
	for _, s := range h.sinks {
		if err := s.Close(ctx); err != nil {
			h.logger.Warn("event sink close failed", zap.Error(err))
		}
	}
	return nil
}

func (h *Hub) loop() {
	defer close(h.done)
	tick := time.NewTicker(h.cfg.FlushInterval)
	defer tick.Stop()

	pending := make([]Event, 0, h.cfg.BatchSize)
	for {
		select {
		case evt := <-h.in:
			pending = append(pending, evt)
			if len(pending) >= h.cfg.BatchSize {
				pending = h.deliver(pending)
			}
		case <-tick.C:
			pending = h.deliver(pending)
		case <-h.quit:
			h.deliver(h.drain(pending))
			return
		}
	}
}

// drain appends every event still buffered to pending.
func (h *Hub) drain(pending []Event) []Event {
	for {
		select {
		case evt := <-h.in:
			pending = append(pending, evt)
		default:
			return pending
		}
	}
}

// deliver hands a copy of batch to every sink and returns batch emptied.
func (h *Hub) deliver(batch []Event) []Event {
	if len(batch) == 0 {
		return batch
	}
	out := append([]Event(nil), batch...)
	var wg sync.WaitGroup
	for _, s := range h.sinks {
		wg.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
			defer cancel()
			if err := s.Consume(ctx, out); err != nil {
				h.logger.Warn("event sink rejected batch", zap.Int("events", len(out)), zap.Error(err))
			}
		})
	}
	wg.Wait()
	return batch[:0]
}
