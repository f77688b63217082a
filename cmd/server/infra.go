package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twmb/franz-go/pkg/kgo"

	"scholar/internal/fingerprint"
	fpstore "scholar/internal/fingerprint/store"
	"scholar/internal/platform/config"
	"scholar/internal/platform/kafka"
	"scholar/internal/platform/postgres"
	"scholar/internal/platform/redis"
)

// infra holds the optional external connections. Each field is nil when its
// backend is not configured.
type infra struct {
	redis *redis.Client
	db    *sql.DB
	pool  *pgxpool.Pool
	kafka *kgo.Client
}

func openInfra(ctx context.Context, cfg *config.Config, log *slog.Logger) (*infra, error) {
	deps := &infra{}
	var err error

	deps.redis, err = redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if cfg.Fingerprint.Store == config.StorePostgres {
		if deps.db, err = postgres.OpenDB(ctx, cfg.Postgres); err != nil {
			deps.Close()
			return nil, err
		}
	}
	if cfg.Postgres.JournalRecords {
		if deps.pool, err = postgres.NewPool(ctx, cfg.Postgres); err != nil {
			deps.Close()
			return nil, err
		}
	}
	if deps.kafka, err = kafka.New(ctx, cfg.Kafka, log); err != nil {
		deps.Close()
		return nil, err
	}
	return deps, nil
}

func (d *infra) Close() {
	if d.kafka != nil {
		d.kafka.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}

func buildFingerprintStore(ctx context.Context, cfg *config.Config, deps *infra) (fingerprint.Store, error) {
	switch cfg.Fingerprint.Store {
	case config.StoreRedis:
		if deps.redis == nil {
			return nil, fmt.Errorf("redis fingerprint store needs REDIS_URL")
		}
		return fpstore.NewRedisStore(deps.redis.Client, cfg.Fingerprint.RedisKey), nil
	case config.StorePostgres:
		return fpstore.NewPostgresStore(ctx, deps.db)
	case config.StoreS3:
		client, err := fpstore.NewS3Client(ctx, fpstore.S3Config{
			Region:       cfg.AWS.Region,
			Endpoint:     cfg.AWS.Endpoint,
			UsePathStyle: cfg.AWS.UsePathStyle,
			Bucket:       cfg.Fingerprint.S3Bucket,
			Key:          cfg.Fingerprint.S3Key,
		})
		if err != nil {
			return nil, err
		}
		return fpstore.NewS3Store(client, cfg.Fingerprint.S3Bucket, cfg.Fingerprint.S3Key), nil
	default:
		return fpstore.NewFileStore(cfg.Fingerprint.Path), nil
	}
}
