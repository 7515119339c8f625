// Package lock provides short-lived mutual exclusion keyed by string, backed
// by redis when configured.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var ErrNotAcquired = errors.New("lock_not_acquired")

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type Locker interface {
	// TryLock returns the holder token when key was acquired.
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	// Release deletes key only while token still holds it.
	Release(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// NoopLocker always grants the lock. Used when redis is not configured; the
// invoice version check still serializes writers.
type NoopLocker struct{}

func (NoopLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	return "noop", true, nil
}

func (NoopLocker) Release(ctx context.Context, key, token string) error { return nil }

// Acquire polls TryLock until key is held or wait elapses.
func Acquire(ctx context.Context, l Locker, key string, ttl, wait time.Duration) (func(context.Context) error, error) {
	deadline := time.Now().Add(wait)
	backoff := 10 * time.Millisecond
	for {
		token, ok, err := l.TryLock(ctx, key, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return func(ctx context.Context) error { return l.Release(ctx, key, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}
