//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"scholar/internal/platform/config"
	"scholar/internal/platform/kafka"
	"scholar/internal/submission"
	"scholar/internal/submission/feed"
	"scholar/internal/submission/metrics"
	"scholar/pkg/testutil/containers"
)

type KafkaSuite struct {
	suite.Suite
	broker *containers.KafkaContainer
	logger *slog.Logger
}

func TestKafkaSuite(t *testing.T) {
	suite.Run(t, new(KafkaSuite))
}

func (s *KafkaSuite) SetupSuite() {
	s.broker = containers.NewKafkaContainer(s.T())
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *KafkaSuite) cfg(topic string) config.KafkaConfig {
	return config.KafkaConfig{
		Brokers:           []string{s.broker.Broker},
		Topic:             topic,
		Partitions:        1,
		ReplicationFactor: 1,
	}
}

func (s *KafkaSuite) TestNewWithoutBrokersIsDisabled() {
	client, err := kafka.New(context.Background(), config.KafkaConfig{}, s.logger)
	s.NoError(err)
	s.Nil(client)
}

func (s *KafkaSuite) TestEnsureTopicIsRepeatable() {
	ctx := context.Background()
	cfg := s.cfg("scholar.repeatable")
	client, err := kafka.New(ctx, cfg, s.logger)
	s.Require().NoError(err)
	defer client.Close()

	s.NoError(kafka.EnsureTopic(ctx, client, cfg))
}

func (s *KafkaSuite) TestSinkProducesKeyedTransitions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cfg := s.cfg("scholar.submissions.it")

	producer, err := kafka.New(ctx, cfg, s.logger)
	s.Require().NoError(err)
	defer producer.Close()

	sink := feed.NewKafkaSink(producer, cfg.Topic, s.logger, metrics.NewWithRegistry(prometheus.NewRegistry()))
	rec := submission.Record{ID: "sub-1", Status: submission.StatusScanning, Version: 1}
	sink.Deliver(ctx, submission.Event{Type: submission.EventStatus, Record: rec})
	rec.Status = submission.StatusVerified
	rec.Version = 2
	sink.Deliver(ctx, submission.Event{Type: submission.EventVerified, Record: rec})
	s.Require().NoError(producer.Flush(ctx))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker.Broker),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var got []*kgo.Record
	for len(got) < 2 {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err())
		fetches.EachRecord(func(r *kgo.Record) { got = append(got, r) })
	}

	s.Equal("sub-1", string(got[0].Key))
	s.Equal(submission.EventStatus, string(got[0].Headers[0].Value))
	s.Equal(submission.EventVerified, string(got[1].Headers[0].Value))

	var decoded submission.Record
	s.Require().NoError(json.Unmarshal(got[1].Value, &decoded))
	s.Equal(submission.StatusVerified, decoded.Status)
	s.Equal(uint64(2), decoded.Version)
}
