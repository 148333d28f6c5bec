// Package controller sequences a crawl run: store setup, writer start-up,
// topic loading and expansion, the worker pool, queue drain and shutdown. It
// also exposes the start/stop/status entry points used by the CLI and the
// control API.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/datasetcrawler/internal/clock/system"
	"github.com/JakeFAU/datasetcrawler/internal/crawler"
	"github.com/JakeFAU/datasetcrawler/internal/dispatcher"
	"github.com/JakeFAU/datasetcrawler/internal/expand"
	"github.com/JakeFAU/datasetcrawler/internal/fetcher"
	"github.com/JakeFAU/datasetcrawler/internal/metrics"
	"github.com/JakeFAU/datasetcrawler/internal/progress"
	"github.com/JakeFAU/datasetcrawler/internal/queue"
	"github.com/JakeFAU/datasetcrawler/internal/resolver"
	"github.com/JakeFAU/datasetcrawler/internal/worker"
	"github.com/JakeFAU/datasetcrawler/internal/writer"
)

// ErrAlreadyRunning is returned by Start while a run is in progress.
var ErrAlreadyRunning = errors.New("a crawl is already running")

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (uuid.UUID, error)
}

// Dependencies are the long-lived collaborators shared by every run.
type Dependencies struct {
	OpenStore StoreOpener
	Pages     crawler.PageFetcher
	Search    crawler.SearchProvider
	IDs       IDGenerator
	Clock     crawler.Clock
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Emitter   progress.Emitter
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID            uuid.UUID          `json:"run_id"`
	Topics           int                `json:"topics"`
	PagesFetched     int64              `json:"pages_fetched"`
	FetchFailures    int64              `json:"fetch_failures"`
	DocumentsSaved   int64              `json:"documents_saved"`
	DocumentsDropped int64              `json:"documents_dropped"`
	Pool             dispatcher.Summary `json:"pool"`
	Duration         time.Duration      `json:"duration"`
	Cancelled        bool               `json:"cancelled"`
}

// Snapshot is the externally visible run status.
type Snapshot struct {
	RunID            uuid.UUID `json:"run_id"`
	Running          bool      `json:"running"`
	PagesFetched     int64     `json:"pages_fetched"`
	FetchFailures    int64     `json:"fetch_failures"`
	DocumentsSaved   int64     `json:"documents_saved"`
	DocumentsDropped int64     `json:"documents_dropped"`
	PagesPerSecond   float64   `json:"pages_per_second"`
	StartedAt        time.Time `json:"started_at,omitzero"`
	FinishedAt       time.Time `json:"finished_at,omitzero"`
	LastError        string    `json:"last_error,omitempty"`
}

type run struct {
	id       uuid.UUID
	state    *crawler.State
	started  time.Time
	finished time.Time
	err      error
	summary  Summary
	done     chan struct{}
}

// Controller owns at most one active run at a time.
type Controller struct {
	deps     Dependencies
	settings Settings

	mu        sync.Mutex
	current   *run
	lastPoll  time.Time
	lastPages int64
}

// New constructs a Controller.
func New(deps Dependencies, settings Settings) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Emitter == nil {
		deps.Emitter = progress.Discard
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if settings.ShutdownTimeout <= 0 {
		settings.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Controller{deps: deps, settings: settings}
}

// Run executes one crawl synchronously. Cancelling ctx requests a
// cooperative stop, exactly like Stop.
func (c *Controller) Run(ctx context.Context, opts Options) (Summary, error) {
	r, err := c.begin()
	if err != nil {
		return Summary{}, err
	}
	c.execute(ctx, r, opts)
	return r.summary, r.err
}

// Start launches a run in the background and returns its ID.
func (c *Controller) Start(ctx context.Context, opts Options) (uuid.UUID, error) {
	r, err := c.begin()
	if err != nil {
		return uuid.Nil, err
	}
	go c.execute(context.WithoutCancel(ctx), r, opts)
	return r.id, nil
}

// Stop requests a cooperative stop of the active run. It reports whether a
// run was active.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || !c.current.finished.IsZero() {
		return false
	}
	c.current.state.Cancel()
	return true
}

// Wait blocks until the most recent run finishes and returns its outcome.
func (c *Controller) Wait(ctx context.Context) (Summary, error) {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()
	if r == nil {
		return Summary{}, nil
	}
	select {
	case <-r.done:
		return r.summary, r.err
	case <-ctx.Done():
		return Summary{}, fmt.Errorf("wait for run: %w", ctx.Err())
	}
}

// Status returns the current counters. PagesPerSecond is measured between
// consecutive Status calls.
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.current
	if r == nil {
		return Snapshot{}
	}
	counters := r.state.Snapshot()
	snap := Snapshot{
		RunID:            r.id,
		Running:          r.finished.IsZero(),
		PagesFetched:     counters.PagesFetched,
		FetchFailures:    counters.FetchFailures,
		DocumentsSaved:   counters.DocumentsSaved,
		DocumentsDropped: counters.DocumentsDropped,
		StartedAt:        r.started,
		FinishedAt:       r.finished,
	}
	if r.err != nil {
		snap.LastError = r.err.Error()
	}

	now := c.deps.Clock.Now()
	if !c.lastPoll.IsZero() {
		if elapsed := now.Sub(c.lastPoll).Seconds(); elapsed > 0 {
			snap.PagesPerSecond = float64(counters.PagesFetched-c.lastPages) / elapsed
		}
	}
	c.lastPoll = now
	c.lastPages = counters.PagesFetched
	return snap
}

func (c *Controller) begin() (*run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.finished.IsZero() {
		return nil, ErrAlreadyRunning
	}
	id := uuid.New()
	if c.deps.IDs != nil {
		generated, err := c.deps.IDs.NewID()
		if err != nil {
			return nil, fmt.Errorf("run id: %w", err)
		}
		id = generated
	}
	c.current = &run{
		id:      id,
		state:   crawler.NewState(),
		started: c.deps.Clock.Now(),
		done:    make(chan struct{}),
	}
	c.lastPoll = time.Time{}
	c.lastPages = 0
	return c.current, nil
}

func (c *Controller) execute(ctx context.Context, r *run, opts Options) {
	rep := progress.NewReporter(c.deps.Logger, c.deps.Emitter, r.id).Named("controller")
	stop := context.AfterFunc(ctx, r.state.Cancel)
	defer stop()

	summary, err := c.pipeline(ctx, r, opts.normalized(), rep)

	c.mu.Lock()
	r.finished = c.deps.Clock.Now()
	summary.Duration = r.finished.Sub(r.started)
	r.summary = summary
	r.err = err
	c.mu.Unlock()

	if err != nil {
		rep.Milestone(progress.StageRunError, "run failed", zap.Error(err))
	} else {
		rep.Milestone(progress.StageRunDone, "run finished",
			zap.Int64("pages_fetched", summary.PagesFetched),
			zap.Int64("documents_saved", summary.DocumentsSaved),
			zap.Int64("documents_dropped", summary.DocumentsDropped))
	}
	close(r.done)
}

func (c *Controller) pipeline(ctx context.Context, r *run, opts Options, rep *progress.Reporter) (Summary, error) {
	state := r.state
	summary := Summary{RunID: r.id}
	rep.Milestone(progress.StageRunStart, "run started",
		zap.Int("concurrency", opts.Concurrency),
		zap.Bool("expansion", opts.ExpansionEnabled))

	store, err := c.deps.OpenStore(ctx, opts.DBPath)
	if err != nil {
		return summary, fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			rep.Warn("store close failed", zap.Error(cerr))
		}
	}()
	if err := store.Init(ctx); err != nil {
		return summary, fmt.Errorf("init store: %w", err)
	}

	q := queue.New(c.settings.QueueCapacity)
	w := writer.New(c.settings.Writer, q, store, state, c.deps.Metrics, rep)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		w.Run(ctx)
	}()
	shutdown := func() { c.stopWriter(state, q, writerDone, rep) }

	topics, err := crawler.LoadTopics(opts.InputPath)
	if err != nil {
		shutdown()
		return summary, fmt.Errorf("load topics: %w", err)
	}
	topics = crawler.DedupTopics(topics)
	rep.Info("topics loaded", zap.Int("count", len(topics)))

	fetch := fetcher.New(c.deps.Pages, state, c.settings.Fetch, c.deps.Metrics, rep)
	res := resolver.New(c.deps.Search, state, c.deps.Metrics, rep)

	if opts.ExpansionEnabled {
		expCfg := c.settings.Expansion
		expCfg.Enabled = true
		topics = expandTopics(ctx, expand.New(expCfg, res, fetch, state, rep), topics, state)
		rep.Info("topics after expansion", zap.Int("count", len(topics)))
	}
	summary.Topics = len(topics)

	wk := worker.New(worker.Config{
		SearchLimit: c.settings.SearchLimit,
		EnqueueWait: c.settings.EnqueueWait,
	}, res, fetch, q, state, c.deps.Metrics, rep)
	pool := dispatcher.New(opts.Concurrency, func(ctx context.Context, topic string) error {
		wk.Crawl(ctx, topic)
		return nil
	}, state, rep)
	summary.Pool = pool.Run(ctx, topics)

	if err := waitDrained(ctx, q, state); err != nil {
		rep.Logger().Debug("drain interrupted", zap.Error(err))
	}
	shutdown()

	counters := state.Snapshot()
	summary.PagesFetched = counters.PagesFetched
	summary.FetchFailures = counters.FetchFailures
	summary.DocumentsSaved = counters.DocumentsSaved
	summary.DocumentsDropped = counters.DocumentsDropped
	summary.Cancelled = summary.Pool.Skipped > 0 || ctx.Err() != nil
	return summary, nil
}

// stopWriter cancels the run, waits a bounded time for the writer and closes
// the queue. Records still queued are counted as dropped only when the writer
// has exited; a writer that is still running owns them and accounts for them
// itself through its commit path.
func (c *Controller) stopWriter(state *crawler.State, q *queue.Queue, writerDone <-chan struct{}, rep *progress.Reporter) {
	state.Cancel()
	stopped := true
	select {
	case <-writerDone:
	case <-time.After(c.settings.ShutdownTimeout):
		stopped = false
		rep.Warn("writer did not stop in time", zap.Duration("timeout", c.settings.ShutdownTimeout))
	}
	q.Close()
	if !stopped {
		return
	}
	if stranded := q.Len(); stranded > 0 {
		state.AddDocumentsDropped(stranded)
		c.deps.Metrics.DocumentsDropped("shutdown", stranded)
		rep.Warn("documents left unwritten at shutdown", zap.Int("count", stranded))
	}
}

// expandTopics appends the keywords of every topic to the working set,
// discarding literal URLs and keeping first-seen order.
func expandTopics(ctx context.Context, exp *expand.Expander, topics []string, state *crawler.State) []string {
	out := append([]string(nil), topics...)
	for _, topic := range topics {
		if state.Cancelled() {
			break
		}
		for _, kw := range exp.Expand(ctx, topic) {
			if !crawler.IsURL(kw) {
				out = append(out, kw)
			}
		}
	}
	return crawler.DedupTopics(out)
}

// waitDrained waits for every queued record to be acknowledged, giving up
// early once the run is cancelled since in-flight workers may still push.
func waitDrained(ctx context.Context, q *queue.Queue, state *crawler.State) error {
	drainCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-state.Done():
			cancel()
		case <-drainCtx.Done():
		}
	}()
	if err := q.WaitDrained(drainCtx); err != nil {
		return fmt.Errorf("drain queue: %w", err)
	}
	return nil
}
