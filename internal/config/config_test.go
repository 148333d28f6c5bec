package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 220, cfg.Crawler.Concurrency)
	require.False(t, cfg.Crawler.ExpansionEnabled)
	require.Equal(t, "crawler_topicinputs.txt", cfg.Crawler.InputPath)
	require.Equal(t, 6, cfg.Crawler.SearchLimit)
	require.Equal(t, FetchModeHTTP, cfg.Fetch.Mode)
	require.Equal(t, DriverSQLite, cfg.Store.Driver)
	require.Equal(t, "dataset.db", cfg.Store.DBPath)

	settings := cfg.Settings()
	require.Equal(t, 12*time.Second, settings.Fetch.Timeout)
	require.Equal(t, 1, settings.Fetch.Retry.MaxAttempts)
	require.Equal(t, 64, settings.Writer.BatchSize)
	require.Equal(t, time.Second, settings.Writer.FlushInterval)
	require.Equal(t, 500*time.Millisecond, settings.Writer.PollInterval)
	require.Equal(t, 65536, settings.QueueCapacity)
	require.Equal(t, 2*time.Second, settings.EnqueueWait)
	require.Equal(t, 10*time.Second, settings.ShutdownTimeout)
	require.Equal(t, 3, settings.Expansion.Pages)
	require.Equal(t, 8, settings.Expansion.Keywords)
}

func TestLoadWithFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9090
crawler:
  concurrency: 16
  expansion_enabled: true
  input_path: topics.txt
http:
  max_attempts: 2
  backoff_ms: 1000
fetch:
  mode: headless
store:
  driver: postgres
  dsn: postgres://localhost/dataset
logging:
  development: false
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, FetchModeHeadless, cfg.Fetch.Mode)
	require.Equal(t, "debug", cfg.Logging.Level)

	opts := cfg.Options()
	require.Equal(t, 16, opts.Concurrency)
	require.True(t, opts.ExpansionEnabled)
	require.Equal(t, "topics.txt", opts.InputPath)

	retry := cfg.Settings().Fetch.Retry
	require.Equal(t, 2, retry.MaxAttempts)
	require.Equal(t, time.Second, retry.Backoff)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATASETCRAWLER_CRAWLER_CONCURRENCY", "32")
	t.Setenv("DATASETCRAWLER_STORE_DB_PATH", "/tmp/other.db")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 32, cfg.Crawler.Concurrency)
	require.Equal(t, "/tmp/other.db", cfg.Options().DBPath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	cases := map[string]func(*Config){
		"port":        func(c *Config) { c.Server.Port = 0 },
		"concurrency": func(c *Config) { c.Crawler.Concurrency = 0 },
		"fetch mode":  func(c *Config) { c.Fetch.Mode = "carrier-pigeon" },
		"driver":      func(c *Config) { c.Store.Driver = "mysql" },
		"postgres":    func(c *Config) { c.Store.Driver = DriverPostgres },
		"batch":       func(c *Config) { c.Writer.BatchSize = 0 },
		"queue":       func(c *Config) { c.Writer.QueueCapacity = -1 },
		"attempts":    func(c *Config) { c.HTTP.MaxAttempts = 0 },
		"gcs bucket":  func(c *Config) { c.Store.Driver = DriverGCS },
		"pubsub pair": func(c *Config) { c.Events.PubSubProject = "proj" },
		"auto render": func(c *Config) {
			c.Fetch.Mode = FetchModeAuto
			c.Fetch.HeadlessMaxParallel = 0
		},
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		require.Error(t, cfg.Validate(), name)
	}

	auto := base
	auto.Fetch.Mode = FetchModeAuto
	require.NoError(t, auto.Validate())

	shards := base
	shards.Store.Driver = DriverJSONL
	require.NoError(t, shards.Validate())
	shards.Store.Driver = DriverMemory
	require.NoError(t, shards.Validate())
}
