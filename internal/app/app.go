// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/datasetcrawler/internal/clock/system"
	"github.com/JakeFAU/datasetcrawler/internal/config"
	"github.com/JakeFAU/datasetcrawler/internal/controller"
	"github.com/JakeFAU/datasetcrawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/datasetcrawler/internal/fetcher/colly"
	"github.com/JakeFAU/datasetcrawler/internal/fetcher/headless"
	"github.com/JakeFAU/datasetcrawler/internal/headless/detector"
	"github.com/JakeFAU/datasetcrawler/internal/id/uuid"
	"github.com/JakeFAU/datasetcrawler/internal/metrics"
	"github.com/JakeFAU/datasetcrawler/internal/progress"
	"github.com/JakeFAU/datasetcrawler/internal/progress/sinks"
	"github.com/JakeFAU/datasetcrawler/internal/search/duckduckgo"
	"github.com/JakeFAU/datasetcrawler/internal/storage/blob"
	"github.com/JakeFAU/datasetcrawler/internal/storage/gcs"
	"github.com/JakeFAU/datasetcrawler/internal/storage/local"
	"github.com/JakeFAU/datasetcrawler/internal/storage/memory"
	"github.com/JakeFAU/datasetcrawler/internal/storage/postgres"
	"github.com/JakeFAU/datasetcrawler/internal/storage/sqlite"
)

// App holds the shared, long-lived services. It is built once at startup and
// closed when the command finishes.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Hub        *progress.Hub
	History    *sinks.MemorySink
	Controller *controller.Controller

	memOnce   sync.Once
	memBucket *memory.Bucket
	closers   []func()
}

// New wires every service from cfg. It fails fast if a required backend
// cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	a.History = sinks.NewMemorySink(cfg.Events.History)
	eventSinks := []progress.Sink{a.History}
	if cfg.Events.RedisAddr != "" {
		redisSink, err := sinks.NewRedisSink(ctx, sinks.RedisConfig{
			Addr:   cfg.Events.RedisAddr,
			Key:    cfg.Events.RedisKey,
			MaxLen: cfg.Events.RedisMaxLen,
		})
		if err != nil {
			return nil, fmt.Errorf("init redis event sink: %w", err)
		}
		logger.Info("mirroring events to redis", zap.String("addr", cfg.Events.RedisAddr))
		eventSinks = append(eventSinks, redisSink)
	}
	if cfg.Events.PubSubProject != "" {
		pubsubSink, err := sinks.NewPubSubSink(ctx, sinks.PubSubConfig{
			ProjectID: cfg.Events.PubSubProject,
			TopicID:   cfg.Events.PubSubTopic,
		})
		if err != nil {
			return nil, fmt.Errorf("init pubsub event sink: %w", err)
		}
		logger.Info("publishing events to pubsub", zap.String("topic", cfg.Events.PubSubTopic))
		eventSinks = append(eventSinks, pubsubSink)
	}
	a.Hub = progress.NewHub(progress.Config{
		BufferSize: cfg.Events.BufferSize,
		Logger:     logger.Named("events"),
		OnDrop:     a.Metrics.EventsDropped,
	}, eventSinks...)
	a.closers = append(a.closers, func() {
		if err := a.Hub.Close(context.Background()); err != nil {
			logger.Warn("event hub close failed", zap.Error(err))
		}
	})

	pages, err := a.pageFetcher(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Controller = controller.New(controller.Dependencies{
		OpenStore: a.OpenStore,
		Pages:     pages,
		Search: duckduckgo.New(duckduckgo.Config{
			Endpoint:  cfg.Search.Endpoint,
			UserAgent: cfg.Crawler.UserAgent,
			Timeout:   cfg.RequestTimeout(),
			RPS:       cfg.Search.RPS,
			Burst:     cfg.Search.Burst,
		}),
		IDs:     uuid.New(),
		Clock:   system.New(),
		Metrics: a.Metrics,
		Logger:  logger,
		Emitter: a.Hub,
	}, cfg.Settings())
	return a, nil
}

func (a *App) pageFetcher(cfg config.Config) (crawler.PageFetcher, error) {
	plain := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	})
	if cfg.Fetch.Mode == config.FetchModeHTTP {
		return plain, nil
	}
	hf, err := headless.NewChromedp(headless.Config{
		MaxParallel:       cfg.Fetch.HeadlessMaxParallel,
		UserAgent:         cfg.Crawler.UserAgent,
		NavigationTimeout: secondsOf(cfg.Fetch.HeadlessNavTimeoutSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("init headless fetcher: %w", err)
	}
	a.closers = append(a.closers, hf.Close)
	a.Logger.Info("headless page transport enabled",
		zap.String("mode", cfg.Fetch.Mode),
		zap.Int("max_parallel", cfg.Fetch.HeadlessMaxParallel),
	)
	if cfg.Fetch.Mode == config.FetchModeHeadless {
		return hf, nil
	}
	return detector.NewPromoting(
		plain,
		hf,
		detector.NewHeuristic(cfg.Fetch.PromoteMinTextBytes),
		a.Logger.Named("promote"),
	), nil
}

// OpenStore opens the configured document store. A non-empty dbPath
// overrides the configured location: the SQLite file, the Postgres DSN, the
// JSONL directory or the object prefix for the bucket drivers.
func (a *App) OpenStore(ctx context.Context, dbPath string) (crawler.DocumentStore, error) {
	switch a.Config.Store.Driver {
	case config.DriverPostgres:
		dsn := a.Config.Store.DSN
		if dbPath != "" {
			dsn = dbPath
		}
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      dsn,
			MaxConns: a.Config.Store.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	case config.DriverSQLite, "":
		if dbPath == "" {
			dbPath = a.Config.Store.DBPath
		}
		store, err := sqlite.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case config.DriverJSONL:
		if dbPath == "" {
			dbPath = a.Config.Store.DBPath
		}
		bucket, err := local.New(local.Config{BaseDir: dbPath})
		if err != nil {
			return nil, fmt.Errorf("open jsonl store: %w", err)
		}
		return blob.New(bucket, a.Config.Store.Prefix), nil
	case config.DriverGCS:
		bucket, err := gcs.Open(ctx, gcs.Config{Bucket: a.Config.Store.Bucket})
		if err != nil {
			return nil, fmt.Errorf("open gcs store: %w", err)
		}
		return blob.New(bucket, a.shardPrefix(dbPath)), nil
	case config.DriverMemory:
		a.memOnce.Do(func() { a.memBucket = memory.NewBucket() })
		return blob.New(a.memBucket, a.shardPrefix(dbPath)), nil
	default:
		return nil, errors.New("unknown store driver: " + a.Config.Store.Driver)
	}
}

func (a *App) shardPrefix(override string) string {
	if override != "" {
		return override
	}
	return a.Config.Store.Prefix
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	// Sync fails on some terminals; nothing useful can be done about it.
	_ = a.Logger.Sync()
}

func secondsOf(n int) time.Duration {
	return time.Duration(n) * time.Second
}
