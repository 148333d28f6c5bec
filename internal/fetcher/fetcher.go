// Package fetcher turns a raw page transport into the pipeline's text
// fetcher: it enforces the per-request timeout, classifies failures, strips
// markup, and keeps the shared counters current.
package fetcher

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
	"github.com/JakeFAU/datasetcrawler/internal/extract"
	"github.com/JakeFAU/datasetcrawler/internal/metrics"
	"github.com/JakeFAU/datasetcrawler/internal/progress"
)

// DefaultTimeout bounds a single retrieval.
const DefaultTimeout = 12 * time.Second

// Config controls the per-request timeout and retry behavior.
type Config struct {
	Timeout time.Duration
	Retry   crawler.RetryPolicy
}

// Fetcher implements crawler.TextFetcher on top of a crawler.PageFetcher.
type Fetcher struct {
	pages    crawler.PageFetcher
	state    *crawler.State
	cfg      Config
	metrics  *metrics.Metrics
	reporter *progress.Reporter
}

// New wires a Fetcher. m and rep may be nil.
func New(
	pages crawler.PageFetcher,
	state *crawler.State,
	cfg Config,
	m *metrics.Metrics,
	rep *progress.Reporter,
) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if rep == nil {
		rep = progress.Nop()
	}
	return &Fetcher{
		pages:    pages,
		state:    state,
		cfg:      cfg,
		metrics:  m,
		reporter: rep.Named("fetcher"),
	}
}

// Fetch retrieves url and returns its cleaned text. It returns
// crawler.ErrCanceled without touching the network when the run has already
// been cancelled, and crawler.ErrEmptyContent when the page has no text.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.state.Cancelled() {
		return "", crawler.ErrCanceled
	}

	var text string
	err := f.cfg.Retry.Do(ctx, f.state.Cancelled, func(int) error {
		var attemptErr error
		text, attemptErr = f.attempt(ctx, url)
		return attemptErr
	})
	switch {
	case err == nil:
		f.state.AddPageFetched()
		f.metrics.PageFetched()
		return text, nil
	case errors.Is(err, crawler.ErrEmptyContent):
		f.reporter.Logger().Debug("page produced no text", zap.String("url", url))
		return "", err
	}

	reason := crawler.FailureReason(err)
	f.state.AddFetchFailure()
	f.metrics.FetchFailed(reason)

	var httpErr *crawler.HTTPError
	if errors.As(err, &httpErr) {
		f.reporter.Warn(httpErr.Error())
	} else {
		f.reporter.Warn("fetch error", zap.String("url", url), zap.String("reason", reason), zap.Error(err))
	}
	return "", err
}

// attempt performs one retrieval. The request runs under a context detached
// from the caller's cancellation and bounded by the configured timeout; the
// run-level stop signal is honored between attempts, not mid-request.
func (f *Fetcher) attempt(ctx context.Context, url string) (string, error) {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.Timeout)
	defer cancel()

	page, err := f.pages.FetchPage(reqCtx, url)
	if err != nil {
		return "", &crawler.TransportError{URL: url, Cause: err}
	}
	if page.StatusCode < http.StatusOK || page.StatusCode >= http.StatusMultipleChoices {
		return "", &crawler.HTTPError{URL: url, Status: page.StatusCode}
	}

	text, err := extract.Text(page.Body)
	if err != nil {
		return "", &crawler.ParseError{URL: url, Cause: err}
	}
	if text == "" {
		return "", crawler.ErrEmptyContent
	}
	return text, nil
}
