// Package metrics provides Prometheus metrics collection for kvorm.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/artpar/kvorm/model"
)

// Collector holds all Prometheus metrics for kvorm. It implements
// model.Observer so a registry of models can report straight into it.
type Collector struct {
	// Model operation metrics
	OpsTotal           *prometheus.CounterVec
	OpDuration         *prometheus.HistogramVec
	DocumentsScanned   *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Auth metrics
	AuthFailures *prometheus.CounterVec

	// Store metrics
	StoreErrors *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

var _ model.Observer = (*Collector)(nil)

// New creates a metrics collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a metrics collector on a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		// Model operation metrics
		OpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kvorm",
				Name:      "ops_total",
				Help:      "Total number of model operations",
			},
			[]string{"collection", "op", "outcome"},
		),
		OpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kvorm",
				Name:      "op_duration_seconds",
				Help:      "Model operation duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"collection", "op"},
		),
		DocumentsScanned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kvorm",
				Name:      "documents_scanned_total",
				Help:      "Total documents loaded during collection scans",
			},
			[]string{"collection"},
		),
		ValidationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kvorm",
				Name:      "validation_failures_total",
				Help:      "Total schema validation failures",
			},
			[]string{"collection", "field"},
		),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kvorm",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kvorm",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "kvorm",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),

		// Auth metrics
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kvorm",
				Name:      "auth_failures_total",
				Help:      "Total number of authentication failures",
			},
			[]string{"reason"},
		),

		// Store metrics
		StoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kvorm",
				Name:      "store_errors_total",
				Help:      "Total number of document store errors",
			},
			[]string{"backend"},
		),

		// Config metrics
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "kvorm",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "kvorm",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "kvorm",
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// Op records one completed model operation.
func (c *Collector) Op(collection, op string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.OpsTotal.WithLabelValues(collection, op, outcome).Inc()
	c.OpDuration.WithLabelValues(collection, op).Observe(d.Seconds())
}

// Scan records the number of documents loaded by one collection scan.
func (c *Collector) Scan(collection string, docs int) {
	c.DocumentsScanned.WithLabelValues(collection).Add(float64(docs))
}

// ValidationFailure records a rejected document by failing field.
func (c *Collector) ValidationFailure(collection, field string) {
	c.ValidationFailures.WithLabelValues(collection, field).Inc()
}

// NormalizePath reduces label cardinality for request paths. Routed handlers
// pass chi's route pattern here, which is already bounded; raw paths get
// capped so an unroutable URL cannot mint unbounded series.
func NormalizePath(path string) string {
	if len(path) > 50 {
		return path[:50] + "..."
	}
	return path
}
