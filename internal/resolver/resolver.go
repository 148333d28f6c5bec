// Package resolver turns topics into candidate URLs.
package resolver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
	"github.com/JakeFAU/datasetcrawler/internal/metrics"
	"github.com/JakeFAU/datasetcrawler/internal/progress"
)

// DefaultLimit is the number of URLs kept per free-text topic.
const DefaultLimit = 6

const defaultSearchTimeout = 20 * time.Second

// Resolver implements crawler.Resolver. A literal URL resolves to itself;
// anything else is sent to the search provider.
type Resolver struct {
	search   crawler.SearchProvider
	state    *crawler.State
	timeout  time.Duration
	metrics  *metrics.Metrics
	reporter *progress.Reporter
}

// New wires a Resolver. m and rep may be nil.
func New(search crawler.SearchProvider, state *crawler.State, m *metrics.Metrics, rep *progress.Reporter) *Resolver {
	if rep == nil {
		rep = progress.Nop()
	}
	return &Resolver{
		search:   search,
		state:    state,
		timeout:  defaultSearchTimeout,
		metrics:  m,
		reporter: rep.Named("resolver"),
	}
}

// Resolve returns up to limit absolute http(s) URLs for topic in provider
// order. Provider failures are reported and yield an empty result.
func (r *Resolver) Resolve(ctx context.Context, topic string, limit int) []string {
	if crawler.IsURL(topic) {
		return []string{topic}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if r.state.Cancelled() {
		return nil
	}

	searchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	results, err := r.search.Search(searchCtx, topic, limit)
	if err != nil {
		r.metrics.SearchRequest("error")
		r.reporter.Warn("search failed", zap.String("topic", topic), zap.Error(err))
		return nil
	}
	r.metrics.SearchRequest("ok")

	urls := make([]string, 0, limit)
	for _, res := range results {
		if r.state.Cancelled() {
			break
		}
		if !crawler.IsCandidateURL(res.Href) {
			continue
		}
		urls = append(urls, res.Href)
		if len(urls) == limit {
			break
		}
	}
	return urls
}
