package controller

import (
	"context"
	"time"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
	"github.com/JakeFAU/datasetcrawler/internal/expand"
	"github.com/JakeFAU/datasetcrawler/internal/fetcher"
	"github.com/JakeFAU/datasetcrawler/internal/writer"
)

// MinConcurrency is the floor applied to Options.Concurrency.
const MinConcurrency = 4

// DefaultConcurrency is used when Options.Concurrency is zero.
const DefaultConcurrency = 220

const defaultShutdownTimeout = 10 * time.Second

// Options are the per-run knobs an operator picks when starting a crawl.
type Options struct {
	Concurrency      int    `json:"concurrency"`
	ExpansionEnabled bool   `json:"expansion_enabled"`
	DBPath           string `json:"db_path"`
	InputPath        string `json:"input_path"`
}

func (o Options) normalized() Options {
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Concurrency < MinConcurrency {
		o.Concurrency = MinConcurrency
	}
	return o
}

// StoreOpener opens the durable store for a run. dbPath is the per-run
// override and may be empty.
type StoreOpener func(ctx context.Context, dbPath string) (crawler.DocumentStore, error)

// Settings are the service-level parameters shared by every run.
type Settings struct {
	Fetch           fetcher.Config
	SearchLimit     int
	Expansion       expand.Config
	Writer          writer.Config
	QueueCapacity   int
	EnqueueWait     time.Duration
	ShutdownTimeout time.Duration
}
