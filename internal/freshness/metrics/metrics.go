package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks freshness checks.
type Metrics struct {
	Checks    *prometheus.CounterVec
	CacheHits prometheus.Counter
}

// New registers the metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Checks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scholar_freshness_checks_total",
			Help: "Freshness checks by mode (live, fallback, degraded) and verdict",
		}, []string{"mode", "verdict"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "scholar_freshness_cache_hits_total",
			Help: "Freshness checks answered from cache",
		}),
	}
}

// ObserveCheck counts one check.
func (m *Metrics) ObserveCheck(mode string, original bool) {
	if m == nil {
		return
	}
	verdict := "prior_art"
	if original {
		verdict = "original"
	}
	m.Checks.WithLabelValues(mode, verdict).Inc()
}

// IncrementCacheHits counts a cached answer.
func (m *Metrics) IncrementCacheHits() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}
