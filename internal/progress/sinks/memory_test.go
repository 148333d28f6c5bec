package sinks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/datasetcrawler/internal/progress"
)

func events(n int) []progress.Event {
	out := make([]progress.Event, n)
	for i := range out {
		out[i] = progress.Event{
			TS:      time.Unix(int64(i), 0).UTC(),
			Stage:   progress.StageLog,
			Level:   progress.LevelInfo,
			Message: fmt.Sprintf("event %d", i),
		}
	}
	return out
}

func TestMemorySinkAssignsSequence(t *testing.T) {
	t.Parallel()

	sink := NewMemorySink(10)
	require.NoError(t, sink.Consume(context.Background(), events(3)))

	got := sink.After(0, 0)
	require.Len(t, got, 3)
	for i, evt := range got {
		require.EqualValues(t, i+1, evt.Seq)
	}
	require.EqualValues(t, 3, sink.LastSeq())
}

func TestMemorySinkAfterAndLimit(t *testing.T) {
	t.Parallel()

	sink := NewMemorySink(10)
	require.NoError(t, sink.Consume(context.Background(), events(5)))

	got := sink.After(2, 2)
	require.Len(t, got, 2)
	require.EqualValues(t, 3, got[0].Seq)
	require.EqualValues(t, 4, got[1].Seq)

	require.Empty(t, sink.After(5, 10))
}

func TestMemorySinkEvictsOldest(t *testing.T) {
	t.Parallel()

	sink := NewMemorySink(3)
	require.NoError(t, sink.Consume(context.Background(), events(5)))

	got := sink.After(0, 0)
	require.Len(t, got, 3)
	require.Equal(t, "event 2", got[0].Message)
	require.Equal(t, "event 4", got[2].Message)
	require.EqualValues(t, 5, got[2].Seq)
}

func TestMemorySinkReadableAfterClose(t *testing.T) {
	t.Parallel()

	sink := NewMemorySink(0)
	require.NoError(t, sink.Consume(context.Background(), events(1)))
	require.NoError(t, sink.Close(context.Background()))
	require.Len(t, sink.After(0, 0), 1)
}
