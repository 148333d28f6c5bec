package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
	"github.com/JakeFAU/datasetcrawler/internal/progress"
)

type messageEmitter struct {
	mu   sync.Mutex
	msgs []string
}

func (m *messageEmitter) Emit(evt progress.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, evt.Message)
}

func (m *messageEmitter) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.msgs...)
}

func TestRunProcessesEveryTopicOnce(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen = map[string]int{}
	)
	task := func(_ context.Context, topic string) error {
		mu.Lock()
		defer mu.Unlock()
		seen[topic]++
		return nil
	}
	topics := []string{"a", "b", "c", "d", "e", "f", "g"}
	d := New(3, task, crawler.NewState(), nil)

	summary := d.Run(context.Background(), topics)
	require.Equal(t, Summary{Submitted: 7, Completed: 7}, summary)
	for _, topic := range topics {
		require.Equal(t, 1, seen[topic], topic)
	}
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	var active, peak atomic.Int32
	task := func(context.Context, string) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil
	}
	d := New(2, task, crawler.NewState(), nil)
	d.Run(context.Background(), make([]string, 10))
	require.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunIsolatesErrorsAndPanics(t *testing.T) {
	t.Parallel()

	task := func(_ context.Context, topic string) error {
		switch topic {
		case "boom":
			panic("kaboom")
		case "bad":
			return errors.New("resolver exploded")
		}
		return nil
	}
	emitter := &messageEmitter{}
	rep := progress.NewReporter(zap.NewNop(), emitter, uuid.New())
	d := New(2, task, crawler.NewState(), rep)

	summary := d.Run(context.Background(), []string{"ok1", "boom", "bad", "ok2"})
	require.EqualValues(t, 2, summary.Completed)
	require.EqualValues(t, 2, summary.Failed)

	msgs := emitter.Messages()
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		require.Contains(t, msg, "worker exception")
	}
}

func TestRunStopsSubmittingAfterCancel(t *testing.T) {
	t.Parallel()

	state := crawler.NewState()
	release := make(chan struct{})
	defer close(release)
	var started atomic.Int32
	task := func(context.Context, string) error {
		if started.Add(1) == 1 {
			state.Cancel()
		}
		<-release
		return nil
	}
	d := New(1, task, state, nil)

	done := make(chan Summary, 1)
	go func() { done <- d.Run(context.Background(), []string{"a", "b", "c", "d"}) }()

	select {
	case summary := <-done:
		require.Equal(t, 1, summary.Submitted)
		require.Equal(t, 3, summary.Skipped)
		require.EqualValues(t, 1, started.Load())
	case <-time.After(time.Second):
		t.Fatal("Run did not return promptly after cancellation")
	}
}

func TestRunAlreadyCancelled(t *testing.T) {
	t.Parallel()

	state := crawler.NewState()
	state.Cancel()
	called := false
	d := New(4, func(context.Context, string) error {
		called = true
		return nil
	}, state, nil)

	summary := d.Run(context.Background(), []string{"a", "b"})
	require.False(t, called)
	require.Equal(t, Summary{Skipped: 2}, summary)
}

func TestRunFinishesManyInstantTopicsOneAtATime(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	d := New(1, func(context.Context, string) error {
		calls.Add(1)
		return nil
	}, crawler.NewState(), nil)

	for iter := range 50 {
		done := make(chan Summary, 1)
		go func() { done <- d.Run(context.Background(), make([]string, 2000)) }()
		select {
		case summary := <-done:
			require.Equal(t, 2000, summary.Submitted, "iteration %d", iter)
			require.EqualValues(t, 2000, summary.Completed, "iteration %d", iter)
		case <-time.After(5 * time.Second):
			t.Fatalf("iteration %d: Run did not finish", iter)
		}
	}
	require.EqualValues(t, 50*2000, calls.Load())
}

func TestRunStopWakesBlockedSubmitter(t *testing.T) {
	t.Parallel()

	state := crawler.NewState()
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{}, 1)
	d := New(1, func(context.Context, string) error {
		started <- struct{}{}
		<-release
		return nil
	}, state, nil)

	done := make(chan Summary, 1)
	go func() { done <- d.Run(context.Background(), []string{"a", "b", "c"}) }()
	<-started
	state.Cancel()

	select {
	case summary := <-done:
		require.Equal(t, 1, summary.Submitted)
		require.Equal(t, 2, summary.Skipped)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after stop")
	}
}
