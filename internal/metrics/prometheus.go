package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus exports store operations as Prometheus collectors.
type Prometheus struct {
	// Operations counts store operations.
	// Labels: resource, op, outcome
	Operations *prometheus.CounterVec
	// Duration tracks store operation latency in seconds.
	// Labels: resource, op
	Duration *prometheus.HistogramVec
}

// NewPrometheus registers the store collectors with reg. A nil reg uses the
// default registerer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Prometheus{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "projecttracker",
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total number of record store operations by outcome",
			},
			[]string{"resource", "op", "outcome"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "projecttracker",
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Duration of record store operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"resource", "op"},
		),
	}
}

// Observe implements Recorder.
func (p *Prometheus) Observe(_ context.Context, resource, op string, err error, d time.Duration) {
	p.Operations.WithLabelValues(resource, op, Outcome(err)).Inc()
	p.Duration.WithLabelValues(resource, op).Observe(d.Seconds())
}
