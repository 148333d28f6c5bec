package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/datasetcrawler/internal/config"
	"github.com/JakeFAU/datasetcrawler/internal/crawler"
	"github.com/JakeFAU/datasetcrawler/internal/progress"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Store.DBPath = filepath.Join(t.TempDir(), "dataset.db")
	return cfg
}

func TestNewWiresServices(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Controller)
	require.NotNil(t, a.Metrics)
	require.NotNil(t, a.History)

	a.Hub.Emit(progress.Event{TS: time.Now(), Stage: progress.StageLog, Level: progress.LevelInfo, Message: "hello"})
	require.Eventually(t, func() bool { return len(a.History.After(0, 0)) == 1 }, 2*time.Second, 10*time.Millisecond)

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestOpenStoreSQLite(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	store, err := a.OpenStore(ctx, "")
	require.NoError(t, err)
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.InsertBatch(ctx, []crawler.DocumentRecord{{SourceTopic: "t", SourceURL: "u", Text: "x"}}))
	require.NoError(t, store.Close())

	override := filepath.Join(t.TempDir(), "other.db")
	store, err = a.OpenStore(ctx, override)
	require.NoError(t, err)
	require.NoError(t, store.Init(ctx))
	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.NoError(t, store.Close())
}

func TestNewFailsOnUnreachableRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Events.RedisAddr = "127.0.0.1:1"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := New(ctx, cfg, nil)
	require.ErrorContains(t, err, "redis")
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	a := &App{Config: config.Config{Store: config.StoreConfig{Driver: "mysql"}}}
	_, err := a.OpenStore(context.Background(), "")
	require.Error(t, err)
}

func TestOpenStorePostgresOverrideIsDSN(t *testing.T) {
	a := &App{Config: config.Config{Store: config.StoreConfig{Driver: config.DriverPostgres}}}

	_, err := a.OpenStore(context.Background(), "")
	require.ErrorContains(t, err, "store.dsn is required")

	_, err = a.OpenStore(context.Background(), "postgres://%zz")
	require.ErrorContains(t, err, "parse postgres dsn")
}

func TestOpenStoreShardDrivers(t *testing.T) {
	ctx := context.Background()
	batch := []crawler.DocumentRecord{{SourceTopic: "t", SourceURL: "u", Text: "hello"}}

	t.Run("jsonl", func(t *testing.T) {
		a := &App{Config: config.Config{Store: config.StoreConfig{
			Driver: config.DriverJSONL,
			DBPath: t.TempDir(),
			Prefix: "shards",
		}}}
		store, err := a.OpenStore(ctx, "")
		require.NoError(t, err)
		require.NoError(t, store.InsertBatch(ctx, batch))
		n, err := store.Count(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
		require.NoError(t, store.Close())
	})

	t.Run("memory is shared across opens", func(t *testing.T) {
		a := &App{Config: config.Config{Store: config.StoreConfig{Driver: config.DriverMemory, Prefix: "shards"}}}
		first, err := a.OpenStore(ctx, "")
		require.NoError(t, err)
		require.NoError(t, first.InsertBatch(ctx, batch))
		require.NoError(t, first.Close())

		second, err := a.OpenStore(ctx, "")
		require.NoError(t, err)
		n, err := second.Count(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		other, err := a.OpenStore(ctx, "elsewhere")
		require.NoError(t, err)
		n, err = other.Count(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})
}

func TestNewFailsOnIncompletePubSub(t *testing.T) {
	cfg := testConfig(t)
	cfg.Events.PubSubProject = "proj"
	_, err := New(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "pubsub")
}
