package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks pipeline progress and feed delivery.
type Metrics struct {
	Accepted      prometheus.Counter
	InFlight      prometheus.Gauge
	StageDuration *prometheus.HistogramVec
	Outcomes      *prometheus.CounterVec
	Subscribers   prometheus.Gauge
	Dropped       prometheus.Counter
	SinkFailures  prometheus.Counter
}

// New registers the metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Accepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "scholar_submissions_accepted_total",
			Help: "Submissions accepted into the pipeline",
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scholar_submissions_in_flight",
			Help: "Pipelines currently running",
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scholar_submission_stage_duration_seconds",
			Help:    "Time spent per pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scholar_submission_outcomes_total",
			Help: "Final submission statuses",
		}, []string{"status"}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scholar_feed_subscribers",
			Help: "Connected feed subscribers",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "scholar_feed_dropped_events_total",
			Help: "Events dropped from full subscriber buffers",
		}),
		SinkFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "scholar_feed_sink_failures_total",
			Help: "Events an external sink failed to accept",
		}),
	}
}

// IncrementAccepted counts an accepted submission and marks it in flight.
func (m *Metrics) IncrementAccepted() {
	if m == nil {
		return
	}
	m.Accepted.Inc()
	m.InFlight.Inc()
}

// ObserveOutcome records a finished pipeline.
func (m *Metrics) ObserveOutcome(status string) {
	if m == nil {
		return
	}
	m.InFlight.Dec()
	m.Outcomes.WithLabelValues(status).Inc()
}

// ObserveStage records a stage duration.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// SubscriberAdded marks a subscriber as connected.
func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.Subscribers.Inc()
}

// SubscriberRemoved marks a subscriber as gone.
func (m *Metrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.Subscribers.Dec()
}

// IncrementDropped counts a dropped feed event.
func (m *Metrics) IncrementDropped() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}

// IncrementSinkFailures counts a failed sink delivery.
func (m *Metrics) IncrementSinkFailures() {
	if m == nil {
		return
	}
	m.SinkFailures.Inc()
}
