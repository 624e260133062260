// Package metrics exposes prometheus collectors for HTTP traffic and for
// BoQ imports and bid comparisons.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/tenderdesk/internal/core"
)

// Metrics holds every collector, registered on its own registry. It
// implements core.Observer.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Import metrics
	importsTotal   *prometheus.CounterVec
	importRows     *prometheus.HistogramVec
	importDuration *prometheus.HistogramVec

	// Comparison metrics
	comparisonsTotal *prometheus.CounterVec
	matrixFaults     *prometheus.CounterVec
}

var _ core.Observer = (*Metrics)(nil)

// New creates the collectors. prefix is prepended to every metric name,
// e.g. "tenderdesk".
func New(prefix string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	name := func(s string) string {
		if prefix == "" {
			return s
		}
		return prefix + "_" + s
	}

	return &Metrics{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: name("http_requests_total"),
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name("http_request_duration_seconds"),
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		importsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: name("boq_imports_total"),
				Help: "Total number of import attempts by file kind and result",
			},
			[]string{"kind", "result"},
		),
		importRows: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name("boq_import_rows"),
				Help:    "Data rows per import attempt",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"kind"},
		),
		importDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name("boq_import_duration_seconds"),
				Help:    "Duration of import attempts in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		comparisonsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: name("bid_comparisons_total"),
				Help: "Total number of comparison matrices built by result",
			},
			[]string{"result"},
		),
		matrixFaults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: name("matrix_faults_total"),
				Help: "Consistency faults found in stored bid data",
			},
			[]string{"kind"},
		),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ImportFinished records one import attempt.
func (m *Metrics) ImportFinished(kind core.ImportKind, status core.ImportStatus, rows int, elapsed time.Duration) {
	m.importsTotal.WithLabelValues(string(kind), string(status)).Inc()
	m.importRows.WithLabelValues(string(kind)).Observe(float64(rows))
	m.importDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ComparisonBuilt records one comparison matrix.
func (m *Metrics) ComparisonBuilt(status core.MatrixStatus) {
	m.comparisonsTotal.WithLabelValues(string(status)).Inc()
}

// MatrixFault records one consistency fault.
func (m *Metrics) MatrixFault(kind core.FaultKind) {
	m.matrixFaults.WithLabelValues(string(kind)).Inc()
}

// Middleware records request counts and durations. The path label is the
// chi route pattern, so ids in URLs do not create new series.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
