// Package dispatcher fans topics out to a fixed-size pool of crawl
// invocations.
package dispatcher

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
	"github.com/JakeFAU/datasetcrawler/internal/progress"
)

// Task processes one topic.
type Task func(ctx context.Context, topic string) error

// Summary reports what happened to the submitted topics. Invocations still
// running when a cancelled Run returns are counted in neither Completed nor
// Failed.
type Summary struct {
	Submitted int
	Completed int64
	Failed    int64
	Skipped   int
}

// Dispatcher runs a Task once per topic with bounded concurrency.
type Dispatcher struct {
	concurrency int
	task        Task
	state       *crawler.State
	reporter    *progress.Reporter
}

// New creates a Dispatcher. rep may be nil.
func New(concurrency int, task Task, state *crawler.State, rep *progress.Reporter) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if rep == nil {
		rep = progress.Nop()
	}
	return &Dispatcher{
		concurrency: concurrency,
		task:        task,
		state:       state,
		reporter:    rep.Named("dispatcher"),
	}
}

// Run submits topics in order and waits for them to finish. Once the run is
// cancelled no further topics are submitted and Run returns without waiting
// for in-flight invocations.
func (d *Dispatcher) Run(ctx context.Context, topics []string) Summary {
	var (
		g         errgroup.Group
		completed atomic.Int64
		failed    atomic.Int64
		summary   Summary
	)
	slots := semaphore.NewWeighted(int64(d.concurrency))

	// A stop must wake a submitter blocked on a slot.
	submitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-d.state.Done():
			cancel()
		case <-submitCtx.Done():
		}
	}()

	for i, topic := range topics {
		if d.state.Cancelled() || slots.Acquire(submitCtx, 1) != nil {
			summary.Skipped = len(topics) - i
			break
		}
		if d.state.Cancelled() {
			slots.Release(1)
			summary.Skipped = len(topics) - i
			break
		}
		fn := d.invoke(ctx, topic, &completed, &failed)
		g.Go(func() error {
			defer slots.Release(1)
			return fn()
		})
		summary.Submitted++
	}

	waited := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-d.state.Done():
		d.reporter.Info("stop requested, not waiting for in-flight topics")
	}

	summary.Completed = completed.Load()
	summary.Failed = failed.Load()
	return summary
}

func (d *Dispatcher) invoke(ctx context.Context, topic string, completed, failed *atomic.Int64) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
			if err != nil {
				failed.Add(1)
				d.reporter.Error("worker exception", zap.String("topic", topic), zap.Error(err))
			} else {
				completed.Add(1)
			}
			// Errors are logged, never propagated, so siblings keep running.
			err = nil
		}()
		return d.task(ctx, topic)
	}
}
