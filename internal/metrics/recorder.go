// Package metrics records DAO operation counts and latencies in Prometheus form.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Recorder tracks per-operation results and durations. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

// NewRecorder creates a recorder backed by its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tkdb",
			Subsystem: "dao",
			Name:      "operations_total",
			Help:      "DAO operations by operation name and result.",
		}, []string{"operation", "result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tkdb",
			Subsystem: "dao",
			Name:      "operation_duration_seconds",
			Help:      "DAO operation latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"operation"}),
	}

	reg.MustRegister(r.operations, r.durations)
	return r
}

// Observe records one finished operation.
func (r *Recorder) Observe(operation string, started time.Time, err error) {
	if r == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	r.operations.WithLabelValues(operation, result).Inc()
	r.durations.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// Registry exposes the underlying registry as a Gatherer.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WriteTextFile writes the current metrics in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func (r *Recorder) WriteTextFile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
