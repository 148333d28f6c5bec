// Package collyfetcher is the plain HTTP page transport, built on gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
)

// DefaultUserAgent identifies the crawler to remote servers.
const DefaultUserAgent = "Mozilla/5.0 (DatasetBuilder/3.0-threaded)"

const (
	defaultTimeout      = 12 * time.Second
	defaultMaxBodyBytes = 10 << 20
	acceptHeader        = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5"
)

// Config controls the transport.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBodyBytes truncates larger bodies. Defaults to 10 MiB.
	MaxBodyBytes int
}

// Fetcher implements crawler.PageFetcher. Every call visits through its own
// clone of one base collector, and all clones share a pooled transport sized
// for many concurrent hosts.
type Fetcher struct {
	cfg       Config
	base      *colly.Collector
	transport *http.Transport
}

// New returns a Fetcher. Robots rules are not consulted and revisits are
// allowed, since topics frequently resolve to the same pages.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	f := &Fetcher{cfg: cfg, transport: pooledTransport()}
	f.base = colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.UserAgent(cfg.UserAgent),
		colly.MaxBodySize(cfg.MaxBodyBytes),
	)
	// Error statuses come back as pages so the caller can classify them.
	f.base.ParseHTTPErrorResponse = true
	// Clones share the base's HTTP client, so both are set once here and
	// never touched per request.
	f.base.WithTransport(f.transport)
	f.base.SetRequestTimeout(cfg.Timeout)
	return f
}

// FetchPage GETs url. Only transport failures are errors; any HTTP status is
// returned in the page.
func (f *Fetcher) FetchPage(ctx context.Context, url string) (crawler.Page, error) {
	v := &visit{start: time.Now()}
	c := f.collector()
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", acceptHeader)
	})
	c.OnResponse(v.response)
	c.OnError(v.failure)

	done := make(chan error, 1)
	go func() { done <- c.Visit(url) }()

	select {
	case <-ctx.Done():
		return crawler.Page{}, fmt.Errorf("fetch %s: %w", url, ctx.Err())
	case err := <-done:
		if err == nil {
			err = v.err
		}
		if err != nil {
			return crawler.Page{}, fmt.Errorf("fetch %s: %w", url, err)
		}
	}
	if v.page.URL == "" {
		v.page.URL = url
	}
	return v.page, nil
}

func (f *Fetcher) collector() *colly.Collector {
	c := f.base.Clone()
	c.ParseHTTPErrorResponse = true
	c.MaxBodySize = f.cfg.MaxBodyBytes
	return c
}

// visit collects the outcome of one collector run.
type visit struct {
	start time.Time
	page  crawler.Page
	err   error
}

func (v *visit) response(r *colly.Response) {
	v.page = crawler.Page{
		StatusCode: r.StatusCode,
		Body:       append([]byte(nil), r.Body...),
		Duration:   time.Since(v.start),
	}
	if r.Headers != nil {
		v.page.Headers = r.Headers.Clone()
	}
	// Request.URL is the final URL after redirects.
	if r.Request != nil && r.Request.URL != nil {
		v.page.URL = r.Request.URL.String()
	}
}

func (v *visit) failure(_ *colly.Response, err error) {
	v.err = err
}

func pooledTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: defaultTimeout,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          512,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
	}
}
