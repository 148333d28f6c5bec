// Package sinks implements concrete progress consumers: a bounded in-memory
// history that status pollers page through, a capped Redis list that an
// external control panel can tail, and a Pub/Sub topic for fan-out to other
// services. Each sink satisfies progress.Sink.
package sinks
