// Package duckduckgo implements crawler.SearchProvider by scraping the
// DuckDuckGo HTML endpoint.
package duckduckgo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
)

// DefaultEndpoint is the JavaScript-free results page.
const DefaultEndpoint = "https://html.duckduckgo.com/html/"

const (
	defaultRPS     = 1.0
	defaultBurst   = 2
	defaultTimeout = 12 * time.Second
	resultSelector = "a.result__a"
)

// Config controls the provider.
type Config struct {
	Endpoint  string
	UserAgent string
	Timeout   time.Duration
	RPS       float64
	Burst     int
}

// Provider issues rate-limited queries. It is safe for concurrent use.
type Provider struct {
	cfg     Config
	base    *colly.Collector
	limiter *rate.Limiter
}

// New builds a Provider, filling defaults for zero fields.
func New(cfg Config) *Provider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RPS <= 0 {
		cfg.RPS = defaultRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	opts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	base := colly.NewCollector(opts...)
	// Clones share this HTTP client; it is configured only here.
	base.SetRequestTimeout(cfg.Timeout)
	return &Provider{
		cfg:     cfg,
		base:    base,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
	}
}

// Search returns up to maxResults hits in the order the engine ranked them.
// Hrefs are returned unfiltered apart from unwrapping redirect links.
func (p *Provider) Search(ctx context.Context, query string, maxResults int) ([]crawler.SearchResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search rate limit: %w", err)
	}

	var (
		results []crawler.SearchResult
		status  int
	)
	c := p.base.Clone()
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	c.OnHTML(resultSelector, func(e *colly.HTMLElement) {
		if maxResults > 0 && len(results) >= maxResults {
			return
		}
		results = append(results, crawler.SearchResult{
			Href:  unwrapRedirect(e.Attr("href")),
			Title: strings.TrimSpace(e.Text),
		})
	})

	endpoint := p.cfg.Endpoint + "?q=" + url.QueryEscape(query)
	done := make(chan error, 1)
	go func() {
		done <- c.Visit(endpoint)
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("search canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", query, err)
		}
	}
	if status != 0 && (status < 200 || status >= 300) {
		return nil, fmt.Errorf("search %q: unexpected status %d", query, status)
	}
	return results, nil
}

// unwrapRedirect resolves DuckDuckGo's "/l/?uddg=<target>" tracking links.
func unwrapRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}
