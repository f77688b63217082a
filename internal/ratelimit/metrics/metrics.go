package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions      *prometheus.CounterVec
	StoreFailures  prometheus.Counter
	DegradedChecks prometheus.Counter
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scholar_ratelimit_decisions_total",
			Help: "Ingress rate limit decisions by outcome",
		}, []string{"outcome"}),
		StoreFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "scholar_ratelimit_store_failures_total",
			Help: "Counter store errors",
		}),
		DegradedChecks: factory.NewCounter(prometheus.CounterOpts{
			Name: "scholar_ratelimit_degraded_checks_total",
			Help: "Checks served by the in-process fallback",
		}),
	}
}

func (m *Metrics) ObserveDecision(allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}
	m.Decisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementStoreFailures() {
	if m == nil {
		return
	}
	m.StoreFailures.Inc()
}

func (m *Metrics) IncrementDegraded() {
	if m == nil {
		return
	}
	m.DegradedChecks.Inc()
}
