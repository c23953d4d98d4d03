// Package metrics holds the Prometheus collectors of the watches API.
package metrics

import (
	"net/http"
	"time"

	"github.com/liamcoop/watches/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "watches"

// Metrics records validation and store activity. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	validationsTotal *prometheus.CounterVec   // by mode and result
	invalidReasons   prometheus.Counter
	storeOpsTotal    *prometheus.CounterVec   // by op and outcome
	storeOpDuration  *prometheus.HistogramVec // by op
}

// New creates the collectors and registers them on a fresh registry
// together with the Go runtime and process collectors.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		validationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "runs_total",
			Help:      "Total number of watch validations",
		}, []string{"mode", "result"}), // mode: create, update; result: valid, invalid

		invalidReasons: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "invalid_reasons_total",
			Help:      "Total number of reasons reported by failed validations",
		}),

		storeOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of document store operations",
		}, []string{"op", "outcome"}),

		storeOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Document store operation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"op"}),
	}

	toRegister := []prometheus.Collector{
		m.validationsTotal,
		m.invalidReasons,
		m.storeOpsTotal,
		m.storeOpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		logCounter("errors_total", "Total number of error log events", &logger.TotalErrors),
		logCounter("warnings_total", "Total number of warning log events", &logger.TotalWarnings),
		logCounter("http_5xx_total", "Total number of 5xx responses", &logger.Total5xxErrors),
		logCounter("http_4xx_total", "Total number of 4xx responses", &logger.Total4xxErrors),
		logCounter("http_400_total", "Total number of 400 responses", &logger.Total400Errors),
		logCounter("http_404_total", "Total number of 404 responses", &logger.Total404Errors),
	}
	for _, c := range toRegister {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

type int64Loader interface {
	Load() int64
}

func logCounter(name, help string, v int64Loader) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "log",
		Name:      name,
		Help:      help,
	}, func() float64 {
		return float64(v.Load())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveValidation records one validation verdict.
func (m *Metrics) ObserveValidation(isNew, valid bool, reasons int) {
	if m == nil {
		return
	}

	mode := "update"
	if isNew {
		mode = "create"
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.validationsTotal.WithLabelValues(mode, result).Inc()
	m.invalidReasons.Add(float64(reasons))
}

// ObserveStoreOperation records one store round trip.
func (m *Metrics) ObserveStoreOperation(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.storeOpsTotal.WithLabelValues(op, outcome).Inc()
	m.storeOpDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}
