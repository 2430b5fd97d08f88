package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"filing-backend/internal/shared/telemetry"
)

const (
	defaultLockKey = "filing:run-lock"
	defaultLockTTL = 15 * time.Minute
)

// Only the holder's token may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLock is a Locker shared by every worker pointed at the same Redis.
// The key expires after ttl so a crashed holder cannot wedge the pipeline.
type RedisLock struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// NewRedisLock builds a RedisLock. Empty key and non-positive ttl fall back
// to defaults.
func NewRedisLock(client redis.Cmdable, key string, ttl time.Duration) *RedisLock {
	if key == "" {
		key = defaultLockKey
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// TryLock implements Locker.
func (l *RedisLock) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			telemetry.Warn("filing.lock.release_failed", map[string]any{
				"key":   l.key,
				"error": err.Error(),
			})
		}
	}
	return release, true, nil
}

var _ Locker = (*RedisLock)(nil)
