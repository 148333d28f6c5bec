// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/datasetcrawler/internal/controller"
	"github.com/JakeFAU/datasetcrawler/internal/crawler"
	"github.com/JakeFAU/datasetcrawler/internal/expand"
	"github.com/JakeFAU/datasetcrawler/internal/fetcher"
	"github.com/JakeFAU/datasetcrawler/internal/logging"
	"github.com/JakeFAU/datasetcrawler/internal/writer"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "DATASETCRAWLER"

// Fetch modes.
const (
	FetchModeHTTP     = "http"
	FetchModeHeadless = "headless"
	// FetchModeAuto fetches over HTTP and re-renders script shells headlessly.
	FetchModeAuto = "auto"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	// DriverJSONL writes newline-delimited JSON shards to a local directory.
	DriverJSONL = "jsonl"
	// DriverGCS writes the same shards to a Cloud Storage bucket.
	DriverGCS = "gcs"
	// DriverMemory keeps shards in process memory for dry runs.
	DriverMemory = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Search  SearchConfig  `mapstructure:"search"`
	Writer  WriterConfig  `mapstructure:"writer"`
	Store   StoreConfig   `mapstructure:"store"`
	Events  EventsConfig  `mapstructure:"events"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the control API.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs the pipeline.
type CrawlerConfig struct {
	Concurrency       int    `mapstructure:"concurrency"`
	ExpansionEnabled  bool   `mapstructure:"expansion_enabled"`
	InputPath         string `mapstructure:"input_path"`
	SearchLimit       int    `mapstructure:"search_limit"`
	ExpansionPages    int    `mapstructure:"expansion_pages"`
	ExpansionKeywords int    `mapstructure:"expansion_keywords"`
	UserAgent         string `mapstructure:"user_agent"`
}

// HTTPConfig configures the per-request timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxAttempts    int `mapstructure:"max_attempts"`
	BackoffMs      int `mapstructure:"backoff_ms"`
}

// FetchConfig picks the page transport.
type FetchConfig struct {
	Mode                      string `mapstructure:"mode"`
	HeadlessMaxParallel       int    `mapstructure:"headless_max_parallel"`
	HeadlessNavTimeoutSeconds int    `mapstructure:"headless_nav_timeout_seconds"`
	PromoteMinTextBytes       int    `mapstructure:"promote_min_text_bytes"`
}

// SearchConfig configures the search provider.
type SearchConfig struct {
	Endpoint string  `mapstructure:"endpoint"`
	RPS      float64 `mapstructure:"rps"`
	Burst    int     `mapstructure:"burst"`
}

// WriterConfig configures the queue and batch writer.
type WriterConfig struct {
	BatchSize              int `mapstructure:"batch_size"`
	FlushIntervalMs        int `mapstructure:"flush_interval_ms"`
	PollIntervalMs         int `mapstructure:"poll_interval_ms"`
	QueueCapacity          int `mapstructure:"queue_capacity"`
	EnqueueWaitMs          int `mapstructure:"enqueue_wait_ms"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// StoreConfig selects the durable store.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	DBPath   string `mapstructure:"db_path"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// EventsConfig controls the event stream and its sinks.
type EventsConfig struct {
	BufferSize    int    `mapstructure:"buffer_size"`
	History       int    `mapstructure:"history"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisKey      string `mapstructure:"redis_key"`
	RedisMaxLen   int64  `mapstructure:"redis_max_len"`
	PubSubProject string `mapstructure:"pubsub_project"`
	PubSubTopic   string `mapstructure:"pubsub_topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
}

// Logger maps the section onto the logger builder.
func (l LoggingConfig) Logger() logging.Config {
	return logging.Config{Development: l.Development, Level: l.Level, Encoding: l.Encoding}
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.concurrency", controller.DefaultConcurrency)
	v.SetDefault("crawler.expansion_enabled", false)
	v.SetDefault("crawler.input_path", "crawler_topicinputs.txt")
	v.SetDefault("crawler.search_limit", 6)
	v.SetDefault("crawler.expansion_pages", expand.DefaultPages)
	v.SetDefault("crawler.expansion_keywords", expand.DefaultKeywords)
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (DatasetBuilder/3.0-threaded)")
	v.SetDefault("http.timeout_seconds", 12)
	v.SetDefault("http.max_attempts", 1)
	v.SetDefault("http.backoff_ms", 1000)
	v.SetDefault("fetch.mode", FetchModeHTTP)
	v.SetDefault("fetch.headless_max_parallel", 2)
	v.SetDefault("fetch.headless_nav_timeout_seconds", 25)
	v.SetDefault("fetch.promote_min_text_bytes", 2048)
	v.SetDefault("search.endpoint", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.rps", 1.0)
	v.SetDefault("search.burst", 2)
	v.SetDefault("writer.batch_size", writer.DefaultBatchSize)
	v.SetDefault("writer.flush_interval_ms", 1000)
	v.SetDefault("writer.poll_interval_ms", 500)
	v.SetDefault("writer.queue_capacity", 65536)
	v.SetDefault("writer.enqueue_wait_ms", 2000)
	v.SetDefault("writer.shutdown_timeout_seconds", 10)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.db_path", "dataset.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.prefix", "shards")
	v.SetDefault("events.buffer_size", 4096)
	v.SetDefault("events.history", 1000)
	v.SetDefault("events.redis_key", "datasetcrawler:events")
	v.SetDefault("events.redis_max_len", 10000)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch {
	case c.Server.Port <= 0:
		return fmt.Errorf("server.port must be > 0")
	case c.Crawler.Concurrency <= 0:
		return fmt.Errorf("crawler.concurrency must be > 0")
	case c.Crawler.SearchLimit <= 0:
		return fmt.Errorf("crawler.search_limit must be > 0")
	case c.HTTP.TimeoutSeconds <= 0:
		return fmt.Errorf("http.timeout_seconds must be > 0")
	case c.HTTP.MaxAttempts <= 0:
		return fmt.Errorf("http.max_attempts must be > 0")
	case c.HTTP.BackoffMs < 0:
		return fmt.Errorf("http.backoff_ms must be >= 0")
	case c.Fetch.Mode != FetchModeHTTP && c.Fetch.Mode != FetchModeHeadless && c.Fetch.Mode != FetchModeAuto:
		return fmt.Errorf("fetch.mode must be %q, %q or %q", FetchModeHTTP, FetchModeHeadless, FetchModeAuto)
	case c.Fetch.Mode != FetchModeHTTP && c.Fetch.HeadlessMaxParallel <= 0:
		return fmt.Errorf("fetch.headless_max_parallel must be > 0 when rendering")
	case c.Search.RPS <= 0:
		return fmt.Errorf("search.rps must be > 0")
	case c.Writer.BatchSize <= 0:
		return fmt.Errorf("writer.batch_size must be > 0")
	case c.Writer.FlushIntervalMs <= 0 || c.Writer.PollIntervalMs <= 0:
		return fmt.Errorf("writer intervals must be > 0")
	case c.Writer.QueueCapacity <= 0:
		return fmt.Errorf("writer.queue_capacity must be > 0")
	case !validDriver(c.Store.Driver):
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	case (c.Store.Driver == DriverSQLite || c.Store.Driver == DriverJSONL) && c.Store.DBPath == "":
		return fmt.Errorf("store.db_path is required for %s", c.Store.Driver)
	case c.Store.Driver == DriverGCS && c.Store.Bucket == "":
		return fmt.Errorf("store.bucket is required for gcs")
	case (c.Events.PubSubProject == "") != (c.Events.PubSubTopic == ""):
		return fmt.Errorf("events.pubsub_project and events.pubsub_topic must be set together")
	case c.Store.Driver == DriverPostgres && c.Store.DSN == "":
		return fmt.Errorf("store.dsn is required for postgres")
	}
	return nil
}

func validDriver(d string) bool {
	switch d {
	case DriverSQLite, DriverPostgres, DriverJSONL, DriverGCS, DriverMemory:
		return true
	}
	return false
}

// Options maps the crawler section onto per-run controller options.
func (c Config) Options() controller.Options {
	return controller.Options{
		Concurrency:      c.Crawler.Concurrency,
		ExpansionEnabled: c.Crawler.ExpansionEnabled,
		DBPath:           c.Store.DBPath,
		InputPath:        c.Crawler.InputPath,
	}
}

// Settings maps the tuning sections onto controller settings.
func (c Config) Settings() controller.Settings {
	return controller.Settings{
		Fetch: fetcher.Config{
			Timeout: seconds(c.HTTP.TimeoutSeconds),
			Retry: crawler.RetryPolicy{
				MaxAttempts: c.HTTP.MaxAttempts,
				Backoff:     millis(c.HTTP.BackoffMs),
			},
		},
		SearchLimit: c.Crawler.SearchLimit,
		Expansion: expand.Config{
			Pages:    c.Crawler.ExpansionPages,
			Keywords: c.Crawler.ExpansionKeywords,
		},
		Writer: writer.Config{
			BatchSize:     c.Writer.BatchSize,
			FlushInterval: millis(c.Writer.FlushIntervalMs),
			PollInterval:  millis(c.Writer.PollIntervalMs),
		},
		QueueCapacity:   c.Writer.QueueCapacity,
		EnqueueWait:     millis(c.Writer.EnqueueWaitMs),
		ShutdownTimeout: seconds(c.Writer.ShutdownTimeoutSeconds),
	}
}

// RequestTimeout is the bound applied to every page retrieval.
func (c Config) RequestTimeout() time.Duration {
	return seconds(c.HTTP.TimeoutSeconds)
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }
