package crawler

import (
	"net/http"
	"time"
)

// DocumentRecord is the persisted unit produced by a successful fetch.
// ScrapedAt is assigned by the store at write time.
type DocumentRecord struct {
	SourceTopic string `json:"source_topic"`
	SourceURL   string `json:"source_url"`
	Text        string `json:"text_content"`
}

// Page is the raw result of a transport-level retrieval.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Headless   bool
}

// SearchResult is a single hit returned by a search provider. Href may be
// empty or malformed; callers filter it.
type SearchResult struct {
	Href  string `json:"href"`
	Title string `json:"title,omitempty"`
}

// Counters is a point-in-time copy of the pipeline counters.
type Counters struct {
	PagesFetched     int64 `json:"pages_fetched"`
	FetchFailures    int64 `json:"fetch_failures"`
	DocumentsSaved   int64 `json:"documents_saved"`
	DocumentsDropped int64 `json:"documents_dropped"`
}
