// Package metrics exposes Prometheus collectors for the crawl pipeline and the
// control API. A nil *Metrics is valid and records nothing, so components can
// be built without a registry in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "datasetcrawler"

// Metrics holds every collector the service exports.
type Metrics struct {
	pagesFetched      prometheus.Counter
	fetchFailures     *prometheus.CounterVec
	documentsSaved    prometheus.Counter
	documentsDropped  *prometheus.CounterVec
	batchCommits      *prometheus.CounterVec
	batchCommitTime   prometheus.Histogram
	queueDepth        prometheus.Gauge
	activeWorkers     prometheus.Gauge
	searchRequests    *prometheus.CounterVec
	eventsDropped     prometheus.Counter
	httpRequestsTotal *prometheus.CounterVec
	httpRequestTime   *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. When reg is nil a private registry is
// used. If reg is also a prometheus.Gatherer, Handler serves it.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	m := &Metrics{
		pagesFetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Pages fetched and reduced to non-empty text.",
		}),
		fetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Failed page fetches, labeled by failure reason.",
		}, []string{"reason"}),
		documentsSaved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_saved_total",
			Help:      "Documents committed to the store.",
		}),
		documentsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_dropped_total",
			Help:      "Documents lost before commit, labeled by cause.",
		}, []string{"cause"}),
		batchCommits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_commits_total",
			Help:      "Batch commit attempts, labeled by result.",
		}, []string{"result"}),
		batchCommitTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_commit_seconds",
			Help:      "Latency of batch commits.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Records waiting in the persistence queue.",
		}),
		activeWorkers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Crawl workers currently processing a topic.",
		}),
		searchRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search provider requests, labeled by result.",
		}, []string{"result"}),
		eventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Run events lost to a full event buffer.",
		}),
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Control API requests, labeled by method and code.",
		}, []string{"method", "code"}),
		httpRequestTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Control API request latencies, labeled by method and route.",
			Buckets:   []float64{0.005, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"method", "route"}),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Handler returns an http.Handler exposing the registry backing m.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// PageFetched counts a successful fetch.
func (m *Metrics) PageFetched() {
	if m == nil {
		return
	}
	m.pagesFetched.Inc()
}

// FetchFailed counts a failed fetch under reason.
func (m *Metrics) FetchFailed(reason string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(reason).Inc()
}

// DocumentsSaved counts n committed rows.
func (m *Metrics) DocumentsSaved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.documentsSaved.Add(float64(n))
}

// DocumentsDropped counts n lost records under cause.
func (m *Metrics) DocumentsDropped(cause string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.documentsDropped.WithLabelValues(cause).Add(float64(n))
}

// BatchCommit records one commit attempt.
func (m *Metrics) BatchCommit(err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.batchCommits.WithLabelValues(result).Inc()
	m.batchCommitTime.Observe(took.Seconds())
}

// SetQueueDepth publishes the current queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// IncActiveWorkers increments the active workers gauge.
func (m *Metrics) IncActiveWorkers() {
	if m == nil {
		return
	}
	m.activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func (m *Metrics) DecActiveWorkers() {
	if m == nil {
		return
	}
	m.activeWorkers.Dec()
}

// SearchRequest counts one provider call under result.
func (m *Metrics) SearchRequest(result string) {
	if m == nil {
		return
	}
	m.searchRequests.WithLabelValues(result).Inc()
}

// EventsDropped counts events the hub could not buffer.
func (m *Metrics) EventsDropped(n int) {
	if m == nil {
		return
	}
	m.eventsDropped.Add(float64(n))
}

// ObserveHTTPRequest records one control API request.
func (m *Metrics) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpRequestTime.WithLabelValues(method, route).Observe(duration.Seconds())
}
