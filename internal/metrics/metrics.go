// Package metrics exposes Prometheus counters for documentation runs.
//
// Collectors live on a private registry so that a run can be exported as a
// node-exporter textfile without dragging in the process-wide default
// collectors. Every method is safe on a nil *Metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/docsplice/internal/generator"
)

const namespace = "docsplice"

// Metrics holds the collectors of one process
type Metrics struct {
	registry *prometheus.Registry

	filesProcessed      *prometheus.CounterVec
	functionsDocumented prometheus.Counter
	functionsReviewed   prometheus.Counter
	functionsSkipped    prometheus.Counter
	generatorRequests   *prometheus.CounterVec
	generatorLatency    *prometheus.HistogramVec
	runDuration         prometheus.Histogram
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Labels: status (SUCCESS, FAILURE, SKIPPED)
		filesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Files processed by status",
		}, []string{"status"}),

		functionsDocumented: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "functions_documented_total",
			Help:      "Functions rewritten with generated documentation",
		}),

		functionsReviewed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "functions_reviewed_total",
			Help:      "Functions appended to the review log",
		}),

		functionsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "functions_skipped_total",
			Help:      "Changed functions skipped because they were already reviewed or could not be located",
		}),

		// Labels: kind (summary, inline, review), outcome (ok, cached, error)
		generatorRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generator",
			Name:      "requests_total",
			Help:      "Generator requests by kind and outcome",
		}, []string{"kind", "outcome"}),

		generatorLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generator",
			Name:      "request_seconds",
			Help:      "Generator request latency including retries",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),

		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_seconds",
			Help:      "Wall time of documentation runs",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

// Registry returns the registry holding every collector
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// FileProcessed counts one finished file
func (m *Metrics) FileProcessed(status string) {
	if m == nil {
		return
	}
	m.filesProcessed.WithLabelValues(status).Inc()
}

// FunctionDocumented counts one rewritten function
func (m *Metrics) FunctionDocumented() {
	if m == nil {
		return
	}
	m.functionsDocumented.Inc()
}

// FunctionReviewed counts one review log entry
func (m *Metrics) FunctionReviewed() {
	if m == nil {
		return
	}
	m.functionsReviewed.Inc()
}

// FunctionSkipped counts one skipped function
func (m *Metrics) FunctionSkipped() {
	if m == nil {
		return
	}
	m.functionsSkipped.Inc()
}

// ObserveGenerator records one generator call. It has the shape of
// generator.Observer so it can be handed to the client directly.
func (m *Metrics) ObserveGenerator(kind generator.Kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generatorRequests.WithLabelValues(string(kind), outcome).Inc()
	if outcome != "cached" {
		m.generatorLatency.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
	}
}

// RunFinished records the duration of a run
func (m *Metrics) RunFinished(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(elapsed.Seconds())
}

// WriteTextfile writes the registry in the text exposition format,
// atomically, for the node exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

var _ generator.Observer = (*Metrics)(nil).ObserveGenerator
