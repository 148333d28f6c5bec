// Package progress provides the caller-facing event stream of a crawl run.
// Components report human-readable, timestamped events through an Emitter;
// the Hub batches them on a background goroutine and fans them out to
// pluggable sinks such as an in-memory history for status pollers or a Redis
// list consumed by an external control panel.
package progress
