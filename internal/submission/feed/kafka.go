package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"scholar/internal/submission"
	"scholar/internal/submission/metrics"
)

// producer is satisfied by *kgo.Client.
type producer interface {
	TryProduce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// KafkaSink produces every event keyed by submission id, so a consumer sees
// one submission's transitions in order.
type KafkaSink struct {
	producer producer
	topic    string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewKafkaSink builds a sink for topic.
func NewKafkaSink(p producer, topic string, logger *slog.Logger, m *metrics.Metrics) *KafkaSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaSink{producer: p, topic: topic, logger: logger, metrics: m}
}

// Deliver produces asynchronously and never blocks the pipeline. When the
// client buffer is full the event is dropped and counted as a failure.
func (k *KafkaSink) Deliver(ctx context.Context, event submission.Event) {
	value, err := json.Marshal(event.Record)
	if err != nil {
		k.metrics.IncrementSinkFailures()
		k.logger.ErrorContext(ctx, "encode feed event", "submission_id", event.Record.ID, "error", err)
		return
	}
	rec := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.Record.ID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event", Value: []byte(event.Type)},
		},
	}
	// The pipeline context may end before the broker acks.
	k.producer.TryProduce(context.WithoutCancel(ctx), rec, func(r *kgo.Record, err error) {
		if err == nil {
			return
		}
		k.metrics.IncrementSinkFailures()
		if errors.Is(err, kgo.ErrMaxBuffered) {
			k.logger.Warn("feed event dropped, producer buffer full",
				"submission_id", string(r.Key),
				"topic", r.Topic,
			)
			return
		}
		k.logger.Warn("feed event not produced",
			"submission_id", string(r.Key),
			"topic", r.Topic,
			"error", err,
		)
	})
}
