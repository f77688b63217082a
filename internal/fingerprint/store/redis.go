package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the funded set in a Redis SET.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore returns a store writing to key.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Load returns all members of the set.
func (s *RedisStore) Load(ctx context.Context) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load fingerprints from redis: %w", err)
	}
	return members, nil
}

// Persist adds hash to the set. SADD is idempotent.
func (s *RedisStore) Persist(ctx context.Context, hash string, _ []string) error {
	if err := s.client.SAdd(ctx, s.key, hash).Err(); err != nil {
		return fmt.Errorf("persist fingerprint to redis: %w", err)
	}
	return nil
}
