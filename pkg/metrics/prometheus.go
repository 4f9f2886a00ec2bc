// Package metrics provides Prometheus metrics for the profboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus collectors for the service.
type Manager struct {
	namespace string
	registry  prometheus.Registerer

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Search metrics
	searchRequests    prometheus.Counter
	searchEmpty       prometheus.Counter
	searchResultCount prometheus.Histogram

	// Ledger metrics
	ratingWrites prometheus.Counter
	karmaWrites  prometheus.Counter
	ledgerErrors prometheus.Counter

	// Catalog snapshot metrics
	snapshotRefreshes       prometheus.Counter
	snapshotRefreshDuration prometheus.Histogram
	snapshotEntries         prometheus.Gauge
	snapshotLastUnix        prometheus.Gauge

	// Store metrics
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "profboard",
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by endpoint, method and status code.",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request duration in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"endpoint", "method"})

	m.searchRequests = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "search_requests_total",
		Help:      "Total search requests served.",
	})

	m.searchEmpty = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "search_empty_total",
		Help:      "Search requests that produced no results.",
	})

	m.searchResultCount = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "search_result_count",
		Help:      "Number of results returned per search.",
		Buckets:   []float64{0, 1, 2, 5, 10, 15, 20},
	})

	m.ratingWrites = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "ledger_rating_writes_total",
		Help:      "Teacher rating upserts accepted by the ledger.",
	})

	m.karmaWrites = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "ledger_karma_writes_total",
		Help:      "Comment karma upserts accepted by the ledger.",
	})

	m.ledgerErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "ledger_errors_total",
		Help:      "Ledger writes rejected or failed.",
	})

	m.snapshotRefreshes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "catalog_snapshot_refreshes_total",
		Help:      "Catalog snapshot rebuilds.",
	})

	m.snapshotRefreshDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "catalog_snapshot_refresh_duration_ms",
		Help:      "Catalog snapshot rebuild duration in milliseconds.",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
	})

	m.snapshotEntries = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "catalog_snapshot_entries",
		Help:      "Entries in the current catalog snapshot.",
	})

	m.snapshotLastUnix = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "catalog_snapshot_last_unix",
		Help:      "Unix time of the last successful snapshot refresh.",
	})

	m.storeQueryLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "store_query_duration_ms",
		Help:      "Storage query duration in milliseconds by operation.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"op"})

	m.storeErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "store_errors_total",
		Help:      "Storage errors by operation.",
	}, []string{"op"})
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// RecordHTTPRequestDuration records the latency of a served HTTP request.
func RecordHTTPRequestDuration(endpoint, method string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(durationMs)
}

// RecordSearch records a search request and its result count.
func RecordSearch(results int) {
	globalManager.searchRequests.Inc()
	globalManager.searchResultCount.Observe(float64(results))
	if results == 0 {
		globalManager.searchEmpty.Inc()
	}
}

// RecordRatingWrite records an accepted teacher rating upsert.
func RecordRatingWrite() {
	globalManager.ratingWrites.Inc()
}

// RecordKarmaWrite records an accepted comment karma upsert.
func RecordKarmaWrite() {
	globalManager.karmaWrites.Inc()
}

// RecordLedgerError records a rejected or failed ledger write.
func RecordLedgerError() {
	globalManager.ledgerErrors.Inc()
}

// RecordSnapshotRefresh records a catalog snapshot rebuild.
func RecordSnapshotRefresh(entries int, durationMs float64, atUnix int64) {
	globalManager.snapshotRefreshes.Inc()
	globalManager.snapshotRefreshDuration.Observe(durationMs)
	globalManager.snapshotEntries.Set(float64(entries))
	globalManager.snapshotLastUnix.Set(float64(atUnix))
}

// RecordStoreQuery records the latency of a storage operation.
func RecordStoreQuery(op string, durationMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(op).Observe(durationMs)
}

// RecordStoreError records a storage failure for an operation.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// GetRegistry exposes the custom registry for the /metrics endpoint.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
