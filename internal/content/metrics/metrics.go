package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks content provider outcomes.
type Metrics struct {
	FetchAttempts    *prometheus.CounterVec
	FetchDuration    *prometheus.HistogramVec
	MetadataFailures prometheus.Counter
	BreakerOpened    *prometheus.CounterVec
}

// New registers the metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scholar_content_fetch_attempts_total",
			Help: "Content fetches per provider and outcome (success, failure)",
		}, []string{"provider", "outcome"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scholar_content_fetch_duration_seconds",
			Help:    "Time spent per provider including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		MetadataFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "scholar_content_metadata_failures_total",
			Help: "Metadata lookups that degraded to an empty map",
		}),
		BreakerOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scholar_content_breaker_opened_total",
			Help: "Times a provider circuit opened",
		}, []string{"provider"}),
	}
}

// ObserveFetch records one provider's outcome.
func (m *Metrics) ObserveFetch(provider string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.FetchAttempts.WithLabelValues(provider, outcome).Inc()
	m.FetchDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// IncrementMetadataFailures counts a degraded metadata lookup.
func (m *Metrics) IncrementMetadataFailures() {
	if m == nil {
		return
	}
	m.MetadataFailures.Inc()
}

// IncrementBreakerOpened counts a provider circuit opening.
func (m *Metrics) IncrementBreakerOpened(provider string) {
	if m == nil {
		return
	}
	m.BreakerOpened.WithLabelValues(provider).Inc()
}
