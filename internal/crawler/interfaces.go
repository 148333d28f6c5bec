package crawler

import (
	"context"
	"time"
)

// PageFetcher performs one transport-level retrieval of a URL.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (Page, error)
}

// TextFetcher retrieves a URL and returns its cleaned plain text.
type TextFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// SearchProvider issues a free-text query against an external search engine.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// Resolver turns a topic into candidate URLs.
type Resolver interface {
	Resolve(ctx context.Context, topic string, limit int) []string
}

// DocumentStore is the durable store. Only the batch writer calls
// InsertBatch; ScanText and Count are read-only.
type DocumentStore interface {
	Init(ctx context.Context) error
	InsertBatch(ctx context.Context, records []DocumentRecord) error
	ScanText(ctx context.Context, fn func(text string) error) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
