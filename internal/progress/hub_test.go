package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestHubDeliversFullBatch(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{BufferSize: 8, BatchSize: 2, FlushInterval: time.Minute}, sink)
	defer func() { require.NoError(t, hub.Close(context.Background())) }()

	hub.Emit(fetchedEvent("https://a.example"))
	hub.Emit(fetchedEvent("https://b.example"))
	require.Eventually(t, func() bool {
		batches := sink.Batches()
		return len(batches) == 1 && len(batches[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHubFlushesPartialBatchOnInterval(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{BatchSize: 10, FlushInterval: 20 * time.Millisecond}, sink)
	defer func() { require.NoError(t, hub.Close(context.Background())) }()

	hub.Emit(fetchedEvent("https://a.example"))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHubCloseDrainsAndClosesSinks(t *testing.T) {
	t.Parallel()

	first, second := &recordingSink{}, &recordingSink{}
	hub := NewHub(Config{BatchSize: 100, FlushInterval: time.Minute}, first, nil, second)
	hub.Emit(fetchedEvent("https://a.example"))
	hub.Emit(fetchedEvent("https://b.example"))

	require.NoError(t, hub.Close(context.Background()))
	for _, sink := range []*recordingSink{first, second} {
		batches := sink.Batches()
		require.Len(t, batches, 1)
		require.Len(t, batches[0], 2)
		require.True(t, sink.Closed())
	}
}

func TestHubFullBufferDropsWithoutBlocking(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	var reported atomic.Int64
	hub := &Hub{
		cfg:      Config{OnDrop: func(n int) { reported.Add(int64(n)) }},
		in:       make(chan Event),
		logger:   zap.New(core),
		dropWarn: newDropWarn(),
	}

	start := time.Now()
	hub.Emit(fetchedEvent("https://a.example"))
	hub.Emit(fetchedEvent("https://b.example"))
	require.Less(t, time.Since(start), 50*time.Millisecond)

	require.EqualValues(t, 2, hub.Dropped())
	require.EqualValues(t, 2, reported.Load())
	require.Equal(t, 1, logs.FilterMessage("event buffer full, events dropped").Len())
}

func TestHubSlowSinkDoesNotStarveOthers(t *testing.T) {
	t.Parallel()

	fast := &recordingSink{}
	slow := &recordingSink{consume: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	core, logs := observer.New(zap.WarnLevel)
	hub := NewHub(Config{
		BatchSize:     1,
		FlushInterval: time.Minute,
		SinkTimeout:   30 * time.Millisecond,
		Logger:        zap.New(core),
	}, slow, fast)

	hub.Emit(fetchedEvent("https://a.example"))
	require.Eventually(t, func() bool {
		return len(fast.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Close(context.Background()))
	require.Equal(t, 1, logs.FilterMessage("event sink rejected batch").Len())
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{FlushInterval: time.Minute}, sink)

	hub.Emit(Event{TS: time.Now(), Stage: "BOGUS", Level: LevelInfo, Message: "x"})
	hub.Emit(Event{Stage: StageLog, Level: LevelInfo, Message: "no timestamp"})

	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
}

func TestHubCloseIsIdempotentAndStopsEmit(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(fetchedEvent("https://a.example"))
	require.Empty(t, sink.Batches())
}

func TestHubCloseHonorsContext(t *testing.T) {
	t.Parallel()

	hub := &Hub{quit: make(chan struct{}), done: make(chan struct{}), logger: zap.NewNop()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, hub.Close(ctx), context.Canceled)
}

func TestNilHubIsSafe(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Emit(fetchedEvent("https://a.example"))
	require.Zero(t, hub.Dropped())
	require.NoError(t, hub.Close(context.Background()))
}

type recordingSink struct {
	consume func(context.Context) error

	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func (s *recordingSink) Consume(ctx context.Context, batch []Event) error {
	if s.consume != nil {
		if err := s.consume(ctx); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *recordingSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *recordingSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Event(nil), s.batches...)
}

func fetchedEvent(url string) Event {
	return Event{
		RunID:   uuid.New(),
		TS:      time.Now(),
		Stage:   StageLog,
		Level:   LevelInfo,
		Message: "fetched " + url,
	}
}
