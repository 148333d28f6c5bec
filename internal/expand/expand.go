// Package expand derives extra search topics from the text of the pages a
// topic resolves to.
package expand

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
	"github.com/JakeFAU/datasetcrawler/internal/progress"
)

const (
	// DefaultPages is how many resolved URLs are read per topic.
	DefaultPages = 3
	// DefaultKeywords is how many terms are returned per topic.
	DefaultKeywords = 8
)

// Config controls expansion.
type Config struct {
	Enabled  bool
	Pages    int
	Keywords int
}

// Expander implements topic expansion. It never fails: any problem yields an
// empty keyword list.
type Expander struct {
	cfg      Config
	resolver crawler.Resolver
	fetcher  crawler.TextFetcher
	state    *crawler.State
	reporter *progress.Reporter
}

// New wires an Expander. rep may be nil.
func New(cfg Config, resolver crawler.Resolver, fetcher crawler.TextFetcher, state *crawler.State, rep *progress.Reporter) *Expander {
	if cfg.Pages <= 0 {
		cfg.Pages = DefaultPages
	}
	if cfg.Keywords <= 0 {
		cfg.Keywords = DefaultKeywords
	}
	if rep == nil {
		rep = progress.Nop()
	}
	return &Expander{
		cfg:      cfg,
		resolver: resolver,
		fetcher:  fetcher,
		state:    state,
		reporter: rep.Named("expander"),
	}
}

// Expand returns keywords for topic, or nil when expansion is disabled, the
// run is cancelled, or no page produced text.
func (e *Expander) Expand(ctx context.Context, topic string) []string {
	if !e.cfg.Enabled || e.state.Cancelled() {
		return nil
	}

	var docs []string
	for _, url := range e.resolver.Resolve(ctx, topic, e.cfg.Pages) {
		if e.state.Cancelled() {
			break
		}
		text, err := e.fetcher.Fetch(ctx, url)
		if err != nil || text == "" {
			continue
		}
		docs = append(docs, text)
	}
	if len(docs) == 0 {
		return nil
	}

	keywords := Keywords(docs, e.cfg.Keywords)
	if len(keywords) > 0 {
		e.reporter.Info("expanded topic", zap.String("topic", topic), zap.String("keywords", strings.Join(keywords, ",")))
	}
	return keywords
}
