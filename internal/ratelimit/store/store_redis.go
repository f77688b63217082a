package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"scholar/internal/ratelimit/models"
)

// fixedWindow increments the counter and starts its expiry on first use.
// Returns the count and the remaining window in milliseconds.
var fixedWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore shares fixed-window counters across replicas.
type RedisStore struct {
	client redis.Scripter
	now    func() time.Time
}

// NewRedisStore builds a store on client.
func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Allow counts a request against key.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, win time.Duration) (*models.Result, error) {
	vals, err := fixedWindow.Run(ctx, s.client, []string{key}, win.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit counter: %w", err)
	}
	if len(vals) != 2 {
		return nil, fmt.Errorf("rate limit counter: unexpected reply %v", vals)
	}
	resetAt := s.now().Add(time.Duration(vals[1]) * time.Millisecond)
	return result(int(vals[0]), limit, resetAt), nil
}
