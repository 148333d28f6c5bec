// Package writer drains the persistence queue into the document store in
// batched transactions.
package writer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
	"github.com/JakeFAU/datasetcrawler/internal/metrics"
	"github.com/JakeFAU/datasetcrawler/internal/progress"
	"github.com/JakeFAU/datasetcrawler/internal/queue"
)

// Defaults for Config.
const (
	DefaultBatchSize     = 64
	DefaultFlushInterval = time.Second
	DefaultPollInterval  = 500 * time.Millisecond
	defaultRetryPause    = 200 * time.Millisecond
	commitTimeout        = 30 * time.Second
)

// Config controls batching.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	PollInterval  time.Duration
	RetryPause    time.Duration
}

// BatchWriter is the only component that writes to the store.
type BatchWriter struct {
	cfg      Config
	queue    *queue.Queue
	store    crawler.DocumentStore
	state    *crawler.State
	metrics  *metrics.Metrics
	reporter *progress.Reporter
	now      func() time.Time
}

// New wires a BatchWriter. m and rep may be nil.
func New(cfg Config, q *queue.Queue, store crawler.DocumentStore, state *crawler.State, m *metrics.Metrics, rep *progress.Reporter) *BatchWriter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RetryPause <= 0 {
		cfg.RetryPause = defaultRetryPause
	}
	if rep == nil {
		rep = progress.Nop()
	}
	return &BatchWriter{
		cfg:      cfg,
		queue:    q,
		store:    store,
		state:    state,
		metrics:  m,
		reporter: rep.Named("writer"),
		now:      time.Now,
	}
}

// Run consumes the queue until the run is cancelled and the queue is empty,
// then flushes whatever is buffered and returns.
func (w *BatchWriter) Run(ctx context.Context) {
	buffer := make([]crawler.DocumentRecord, 0, w.cfg.BatchSize)
	lastFlush := w.now()

	for {
		if w.state.Cancelled() && w.queue.Len() == 0 {
			break
		}
		if rec, ok := w.queue.Pop(w.cfg.PollInterval); ok {
			buffer = append(buffer, rec)
		}
		w.metrics.SetQueueDepth(w.queue.Len())

		if len(buffer) >= w.cfg.BatchSize ||
			(len(buffer) > 0 && w.now().Sub(lastFlush) > w.cfg.FlushInterval) {
			buffer = w.flush(ctx, buffer)
			lastFlush = w.now()
		}
	}
	w.flush(ctx, buffer)
	w.reporter.Logger().Debug("writer stopped")
}

// flush commits batch, retrying once, and acknowledges every record in it.
func (w *BatchWriter) flush(ctx context.Context, batch []crawler.DocumentRecord) []crawler.DocumentRecord {
	if len(batch) == 0 {
		return batch
	}
	defer func() {
		for range batch {
			w.queue.Done()
		}
	}()

	err := w.commit(ctx, batch)
	if err != nil {
		w.reporter.Warn("batch commit failed, retrying", zap.Int("batch_size", len(batch)), zap.Error(err))
		time.Sleep(w.cfg.RetryPause)
		err = w.commit(ctx, batch)
	}
	if err != nil {
		w.state.AddDocumentsDropped(len(batch))
		w.metrics.DocumentsDropped("commit", len(batch))
		w.reporter.Error("batch dropped",
			zap.Int("batch_size", len(batch)),
			zap.String("first_url", batch[0].SourceURL),
			zap.String("last_url", batch[len(batch)-1].SourceURL),
			zap.Error(err))
		return batch[:0]
	}

	w.state.AddDocumentsSaved(len(batch))
	w.metrics.DocumentsSaved(len(batch))
	w.reporter.Logger().Debug("batch committed", zap.Int("batch_size", len(batch)))
	return batch[:0]
}

func (w *BatchWriter) commit(ctx context.Context, batch []crawler.DocumentRecord) error {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	start := time.Now()
	err := w.store.InsertBatch(commitCtx, batch)
	w.metrics.BatchCommit(err, time.Since(start))
	return err
}
