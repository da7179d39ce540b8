package placer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "asyncedit"

// Metrics holds the prometheus collectors of a Placer.
type Metrics struct {
	// Submitted counts entries queued, by kind.
	Submitted *prometheus.CounterVec
	// Completed counts entries taken off the queue, by kind and outcome
	// (ok, error, cancelled, dropped).
	Completed *prometheus.CounterVec
	// Changed counts cells changed by completed entries, by kind.
	Changed *prometheus.CounterVec
	// Queued is the number of entries waiting for a worker.
	Queued prometheus.Gauge
	// Running is the number of entries being run.
	Running prometheus.Gauge
	// Duration measures the time entries spend running, by kind.
	Duration *prometheus.HistogramVec
	// ReadWait measures the time callers spend blocked on queued reads.
	ReadWait prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "submitted_total",
			Help:      "Entries submitted to the mutation queue.",
		}, []string{"kind"}),
		Completed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "completed_total",
			Help:      "Entries taken off the mutation queue.",
		}, []string{"kind", "outcome"}),
		Changed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "cells_changed_total",
			Help:      "Cells changed by queued entries.",
		}, []string{"kind"}),
		Queued: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "queued",
			Help:      "Entries waiting for a worker.",
		}),
		Running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "running",
			Help:      "Entries being run by a worker.",
		}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "run_duration_seconds",
			Help:      "Time entries spend running.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"kind"}),
		ReadWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "read",
			Name:      "wait_seconds",
			Help:      "Time callers spend blocked on queued reads.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
}

// ObserveReadWait records the time a caller was blocked on a queued read.
func (m *Metrics) ObserveReadWait(d time.Duration) {
	if m == nil {
		return
	}
	m.ReadWait.Observe(d.Seconds())
}
