// Package metrics provides Prometheus metrics for curate.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the review engine collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// DrawsTotal counts next-article requests by outcome.
	DrawsTotal *prometheus.CounterVec
	// SubmissionsTotal counts reactions, classifications and notes by outcome.
	SubmissionsTotal *prometheus.CounterVec
	// OperationDuration measures engine operation latency.
	OperationDuration *prometheus.HistogramVec
	// ExposuresPrunedTotal counts exposure rows removed by retention.
	ExposuresPrunedTotal prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DrawsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "curate",
				Name:      "draws_total",
				Help:      "Total number of next-article draws",
			},
			[]string{"mode", "outcome"},
		),
		SubmissionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "curate",
				Name:      "submissions_total",
				Help:      "Total number of review submissions",
			},
			[]string{"kind", "outcome"},
		),
		OperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "curate",
				Name:      "operation_duration_seconds",
				Help:      "Duration of review engine operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ExposuresPrunedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "curate",
				Name:      "exposures_pruned_total",
				Help:      "Total number of exposure log rows removed by retention",
			},
		),
	}
}

// RecordDraw records a draw outcome ("served", "exhausted", "idle", "error").
func (m *Metrics) RecordDraw(mode, outcome string) {
	if m == nil {
		return
	}
	m.DrawsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordSubmission records a submission outcome.
func (m *Metrics) RecordSubmission(kind, outcome string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveSince records the time elapsed since start for operation.
func (m *Metrics) ObserveSince(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// AddPruned adds n to the pruned exposure counter.
func (m *Metrics) AddPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ExposuresPrunedTotal.Add(float64(n))
}
