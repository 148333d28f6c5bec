// Package worker implements the per-topic crawl: resolve the topic, fetch
// each candidate URL in order, and hand non-empty text to the persistence
// queue.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
	"github.com/JakeFAU/datasetcrawler/internal/metrics"
	"github.com/JakeFAU/datasetcrawler/internal/progress"
	"github.com/JakeFAU/datasetcrawler/internal/queue"
)

// DefaultEnqueueWait bounds how long a worker waits for queue space.
const DefaultEnqueueWait = 2 * time.Second

const dropWarnInterval = time.Second

// Config controls Worker behavior.
type Config struct {
	SearchLimit int
	EnqueueWait time.Duration
}

// Result summarizes one topic.
type Result struct {
	URLs     int
	Fetched  int
	Enqueued int
	Dropped  int
	Failed   int
}

// Worker crawls topics. One Worker is shared by every pool goroutine.
type Worker struct {
	cfg      Config
	resolver crawler.Resolver
	fetcher  crawler.TextFetcher
	queue    *queue.Queue
	state    *crawler.State
	metrics  *metrics.Metrics
	reporter *progress.Reporter
	drops    *dropLimiter
}

// New constructs a Worker. m and rep may be nil.
func New(
	cfg Config,
	resolver crawler.Resolver,
	fetcher crawler.TextFetcher,
	q *queue.Queue,
	state *crawler.State,
	m *metrics.Metrics,
	rep *progress.Reporter,
) *Worker {
	if cfg.EnqueueWait <= 0 {
		cfg.EnqueueWait = DefaultEnqueueWait
	}
	if rep == nil {
		rep = progress.Nop()
	}
	return &Worker{
		cfg:      cfg,
		resolver: resolver,
		fetcher:  fetcher,
		queue:    q,
		state:    state,
		metrics:  m,
		reporter: rep.Named("worker"),
		drops:    newDropLimiter(dropWarnInterval),
	}
}

// Crawl processes one topic. A failing URL never stops the remaining ones.
func (w *Worker) Crawl(ctx context.Context, topic string) Result {
	var res Result
	if w.state.Cancelled() {
		return res
	}
	w.metrics.IncActiveWorkers()
	defer w.metrics.DecActiveWorkers()

	urls := w.resolver.Resolve(ctx, topic, w.cfg.SearchLimit)
	res.URLs = len(urls)
	for _, url := range urls {
		if w.state.Cancelled() {
			break
		}
		text, err := w.fetcher.Fetch(ctx, url)
		if err != nil {
			if !errors.Is(err, crawler.ErrEmptyContent) && !errors.Is(err, crawler.ErrCanceled) {
				res.Failed++
			}
			continue
		}
		res.Fetched++
		if w.enqueue(crawler.DocumentRecord{SourceTopic: topic, SourceURL: url, Text: text}) {
			res.Enqueued++
		} else {
			res.Dropped++
		}
	}
	w.reporter.Logger().Debug("topic done",
		zap.String("topic", topic),
		zap.Int("urls", res.URLs),
		zap.Int("enqueued", res.Enqueued),
		zap.Int("failed", res.Failed))
	return res
}

// enqueue tries a non-blocking push, then a bounded wait, then drops.
func (w *Worker) enqueue(rec crawler.DocumentRecord) bool {
	err := w.queue.TryPush(rec)
	if errors.Is(err, queue.ErrFull) {
		err = w.queue.PushWait(rec, w.cfg.EnqueueWait)
	}
	if err == nil {
		return true
	}

	w.state.AddDocumentsDropped(1)
	cause := "backpressure"
	if errors.Is(err, queue.ErrClosed) {
		cause = "closed"
	}
	w.metrics.DocumentsDropped(cause, 1)
	w.reporter.Warn("document dropped", zap.String("url", rec.SourceURL), zap.String("cause", cause))
	if total := w.drops.note(); total > 0 {
		w.reporter.Warn("persistence queue saturated", zap.Int64("dropped_recently", total))
	}
	return false
}
