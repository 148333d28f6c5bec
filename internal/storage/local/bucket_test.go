package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/datasetcrawler/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		b, err := local.New(local.Config{BaseDir: filepath.Join(t.TempDir(), "nested", "dir")})
		require.NoError(t, err)
		assert.NotNil(t, b)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestBucketPutGetList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	require.NoError(t, b.Put(ctx, "shards/b.jsonl", []byte("second\n")))
	require.NoError(t, b.Put(ctx, "shards/a.jsonl", []byte("first\n")))
	require.NoError(t, b.Put(ctx, "notes.txt", []byte("other")))

	got, err := b.Get(ctx, "shards/a.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(got))

	names, err := b.List(ctx, "shards/")
	require.NoError(t, err)
	assert.Equal(t, []string{"shards/a.jsonl", "shards/b.jsonl"}, names)

	all, err := b.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestBucketRejectsTraversal(t *testing.T) {
	b, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	err = b.Put(context.Background(), "../escape.jsonl", []byte("x"))
	require.ErrorContains(t, err, "path traversal")
	_, err = b.Get(context.Background(), "")
	require.Error(t, err)
}
