package window

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"classlog/internal/ratelimit/models"
)

// allowScript runs the fixed-window admission atomically on the server.
// KEYS[1] window key, ARGV[1] limit, ARGV[2] window in milliseconds.
// Returns {allowed, count, ttl_ms}.
var allowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local current = redis.call('GET', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if not current or ttl < 0 then
  redis.call('SET', KEYS[1], 1, 'PX', window)
  return {1, 1, window}
end
current = tonumber(current)
if current >= limit then
  return {0, current, ttl}
end
current = redis.call('INCR', KEYS[1])
return {1, current, ttl}
`)

// RedisStore shares fixed windows across replicas.
type RedisStore struct {
	client redis.Scripter
	now    func() time.Time
}

// NewRedisStore wraps a redis client.
func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Allow has the same contract as InMemoryStore.Allow.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := s.now()
	if limit <= 0 {
		return denied(limit, now.Add(window), now), nil
	}

	res, err := allowScript.Run(ctx, s.client, []string{key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis fixed window: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("redis fixed window: unexpected reply length %d", len(res))
	}

	resetAt := now.Add(time.Duration(res[2]) * time.Millisecond)
	if res[0] == 0 {
		return denied(limit, resetAt, now), nil
	}
	return allowed(limit, &models.Window{Key: key, Count: int(res[1]), ResetAt: resetAt}), nil
}

// Reset clears the window for a key.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	client, ok := s.client.(redis.Cmdable)
	if !ok {
		return fmt.Errorf("redis client does not support DEL")
	}
	return client.Del(ctx, key).Err()
}
