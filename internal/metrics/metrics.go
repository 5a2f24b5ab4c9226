// Package metrics instruments storage operations with Prometheus collectors.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/meterbill/internal/models"
)

// Collectors holds the store collectors. Register them once per registry.
type Collectors struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewCollectors creates the collectors and registers them with reg.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meterbill",
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total number of store operations by outcome.",
			},
			[]string{"backend", "op", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "meterbill",
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Duration of store operations.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
			},
			[]string{"backend", "op"},
		),
	}

	for _, collector := range []prometheus.Collector{c.operations, c.duration} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collectors) observe(backend, op string, start time.Time, err error) {
	c.operations.WithLabelValues(backend, op, outcome(err)).Inc()
	c.duration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrValidation):
		return "rejected"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	}
	return "error"
}
