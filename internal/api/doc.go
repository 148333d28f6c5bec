// Package api hosts the HTTP control surface for the crawler service.
// Notable routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the live counters of the current or last run.
//   - GET /v1/events for the retained progress feed.
//   - POST /v1/runs and /v1/runs/stop to start and cooperatively stop a run.
package api
