package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide Prometheus metric container.
type Metrics struct {
	// Contraction metrics
	NodesContractedTotal   prometheus.Counter
	ShortcutsInsertedTotal prometheus.Counter
	ContractionQueueSize   prometheus.Gauge
	ContractionDuration    *prometheus.HistogramVec

	// Route query metrics
	QueryTotal    *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec

	// Loaded graph metrics
	GraphNodesTotal *prometheus.HistogramVec
	GraphEdgesTotal *prometheus.HistogramVec

	// System metrics
	MemoryUsage *prometheus.GaugeVec
	Goroutines  prometheus.Gauge

	// Service info
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics builds and registers the metric set under namespace/subsystem.
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		// Contraction metrics
		NodesContractedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "nodes_contracted_total",
				Help:      "Total number of nodes contracted by the preprocessor",
			},
		),

		ShortcutsInsertedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "shortcuts_inserted_total",
				Help:      "Total number of shortcut edges inserted during contraction",
			},
		),

		ContractionQueueSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "contraction_queue_size",
				Help:      "Current size of the node priority queue",
			},
		),

		ContractionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "contraction_duration_seconds",
				Help:      "Duration of a full hierarchy build",
				Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"weighting"},
		),

		// Route query metrics
		QueryTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "query_total",
				Help:      "Total number of shortest-path queries",
			},
			[]string{"status"},
		),

		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "query_duration_seconds",
				Help:      "Duration of CH bidirectional queries",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .5, 1},
			},
			[]string{"weighting"},
		),

		GraphNodesTotal: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "graph_nodes_total",
				Help:      "Number of nodes in loaded graphs",
				Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000, 100000},
			},
			[]string{"source"},
		),

		GraphEdgesTotal: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "graph_edges_total",
				Help:      "Number of edges in loaded graphs",
				Buckets:   []float64{20, 100, 500, 1000, 5000, 10000, 50000, 100000, 200000},
			},
			[]string{"source"},
		),

		// System metrics
		MemoryUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "memory_usage_bytes",
				Help:      "Current memory usage",
			},
			[]string{"type"},
		),

		Goroutines: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "goroutines",
				Help:      "Current number of goroutines",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the process-wide Metrics, lazily initializing it with the
// default namespace if InitMetrics hasn't been called yet.
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("chrouter", "")
	}
	return defaultMetrics
}

// RecordContraction records the outcome of a single hierarchy build.
func (m *Metrics) RecordContraction(weighting string, duration time.Duration, nodesContracted, shortcutsInserted int) {
	m.NodesContractedTotal.Add(float64(nodesContracted))
	m.ShortcutsInsertedTotal.Add(float64(shortcutsInserted))
	m.ContractionDuration.WithLabelValues(weighting).Observe(duration.Seconds())
}

// RecordQuery records the outcome of a single route query.
func (m *Metrics) RecordQuery(weighting string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "no_path"
	}

	m.QueryTotal.WithLabelValues(status).Inc()
	m.QueryDuration.WithLabelValues(weighting).Observe(duration.Seconds())
}

// RecordGraphSize records the size of a newly loaded graph.
func (m *Metrics) RecordGraphSize(source string, nodes, edges int) {
	m.GraphNodesTotal.WithLabelValues(source).Observe(float64(nodes))
	m.GraphEdgesTotal.WithLabelValues(source).Observe(float64(edges))
}

// SetServiceInfo publishes build/environment info as a constant gauge.
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler returns the HTTP handler that serves /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer runs an HTTP server exposing /metrics and /health.
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, write failure isn't actionable
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
