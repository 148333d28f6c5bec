package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBucketRoundTripAndIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := NewBucket()
	data := []byte("payload")
	require.NoError(t, b.Put(ctx, "runs/b", data))
	require.NoError(t, b.Put(ctx, "runs/a", []byte("x")))
	require.NoError(t, b.Put(ctx, "other", []byte("y")))
	data[0] = 'P'

	got, err := b.Get(ctx, "runs/b")
	require.NoError(t, err)
	require.Equal(t, "payload", string(got))

	names, err := b.List(ctx, "runs/")
	require.NoError(t, err)
	require.Equal(t, []string{"runs/a", "runs/b"}, names)

	_, err = b.Get(ctx, "missing")
	require.Error(t, err)
	require.Error(t, b.Put(ctx, " ", nil))
}
