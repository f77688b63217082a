package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks payout attempts.
type Metrics struct {
	Attempts *prometheus.CounterVec
	Skipped  prometheus.Counter
	Replayed prometheus.Counter
}

// New registers the metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scholar_payout_attempts_total",
			Help: "Transfer attempts by instrument and outcome",
		}, []string{"instrument", "outcome"}),
		Skipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "scholar_payout_skipped_total",
			Help: "Payouts skipped for an invalid recipient",
		}),
		Replayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "scholar_payout_replayed_total",
			Help: "Payouts answered from an earlier settlement",
		}),
	}
}

// ObserveAttempt counts one instrument attempt.
func (m *Metrics) ObserveAttempt(instrument string, ok bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.Attempts.WithLabelValues(instrument, outcome).Inc()
}

// IncrementSkipped counts a skipped payout.
func (m *Metrics) IncrementSkipped() {
	if m == nil {
		return
	}
	m.Skipped.Inc()
}

// IncrementReplayed counts an idempotent replay.
func (m *Metrics) IncrementReplayed() {
	if m == nil {
		return
	}
	m.Replayed.Inc()
}
