package progress

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingEmitter) Emit(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestReporterMirrorsLogsToEmitter(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	emitter := &recordingEmitter{}
	runID := uuid.New()
	rep := NewReporter(zap.New(core), emitter, runID)
	rep.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	rep.Warn("HTTP 503", zap.String("url", "https://example.com/a"), zap.Int("attempt", 1))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, "HTTP 503", entry.Message)
	require.Equal(t, "https://example.com/a", entry.ContextMap()["url"])

	evts := emitter.Events()
	require.Len(t, evts, 1)
	require.Equal(t, runID, evts[0].RunID)
	require.Equal(t, StageLog, evts[0].Stage)
	require.Equal(t, LevelWarn, evts[0].Level)
	require.Equal(t, "HTTP 503 attempt=1 url=https://example.com/a", evts[0].Message)
	require.Equal(t, "[03:04:05] HTTP 503 attempt=1 url=https://example.com/a", evts[0].String())
	require.NoError(t, evts[0].Validate())
}

func TestReporterErrorFieldRendersMessage(t *testing.T) {
	t.Parallel()

	emitter := &recordingEmitter{}
	rep := NewReporter(zap.NewNop(), emitter, uuid.Nil)
	rep.Error("batch commit failed", zap.Error(errors.New("disk full")))

	evts := emitter.Events()
	require.Len(t, evts, 1)
	require.Equal(t, LevelError, evts[0].Level)
	require.Equal(t, "batch commit failed error=disk full", evts[0].Message)
}

func TestReporterMilestoneLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	emitter := &recordingEmitter{}
	rep := NewReporter(zap.New(core), emitter, uuid.New())

	rep.Milestone(StageRunStart, "run started")
	rep.Milestone(StageRunError, "run failed")

	evts := emitter.Events()
	require.Len(t, evts, 2)
	require.Equal(t, StageRunStart, evts[0].Stage)
	require.Equal(t, LevelInfo, evts[0].Level)
	require.Equal(t, StageRunError, evts[1].Stage)
	require.Equal(t, LevelError, evts[1].Level)
	require.Equal(t, zap.ErrorLevel, logs.All()[1].Level)
}

func TestReporterNamedKeepsEmitter(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	emitter := &recordingEmitter{}
	rep := NewReporter(zap.New(core), emitter, uuid.Nil).Named("writer")
	rep.Info("flushed")

	require.Equal(t, "writer", logs.All()[0].LoggerName)
	require.Len(t, emitter.Events(), 1)
}

func TestNopReporter(t *testing.T) {
	t.Parallel()

	rep := Nop()
	rep.Info("ignored")
	rep.Warn("ignored")
	rep.Error("ignored")
	require.NotNil(t, rep.Logger())
}
