package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client), mr
}

func TestRedisLockerExclusive(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLocker(t)

	token, ok, err := l.TryLock(ctx, "invoice-lock:1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "invoice-lock:1", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// A stale token must not release someone else's lock.
	require.NoError(t, l.Release(ctx, "invoice-lock:1", "other"))
	assert.True(t, mr.Exists("invoice-lock:1"))

	require.NoError(t, l.Release(ctx, "invoice-lock:1", token))
	assert.False(t, mr.Exists("invoice-lock:1"))
}

func TestRedisLockerExpires(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLocker(t)

	_, ok, err := l.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = l.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryLockValidation(t *testing.T) {
	l, _ := newRedisLocker(t)

	_, _, err := l.TryLock(context.Background(), "", time.Second)
	assert.Error(t, err)
	_, _, err = l.TryLock(context.Background(), "k", 0)
	assert.Error(t, err)
}

func TestAcquireTimesOut(t *testing.T) {
	ctx := context.Background()
	l, _ := newRedisLocker(t)

	release, err := Acquire(ctx, l, "k", time.Minute, 0)
	require.NoError(t, err)

	_, err = Acquire(ctx, l, "k", time.Minute, 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, release(ctx))
	release, err = Acquire(ctx, l, "k", time.Minute, 0)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestNoopLocker(t *testing.T) {
	release, err := Acquire(context.Background(), NoopLocker{}, "k", time.Second, 0)
	require.NoError(t, err)
	assert.NoError(t, release(context.Background()))
}
