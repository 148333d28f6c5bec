// Package crawler defines the core types shared across the crawl pipeline:
// topics, document records, the fetch failure taxonomy, the per-run pipeline
// state (counters plus the cancellation token), and the interfaces each
// stage is built against.
package crawler
