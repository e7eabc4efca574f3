package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Lock tests need a live server, e.g. CLOVER_TEST_REDIS_ADDR=localhost:6379
func newTestLocker(t *testing.T) *Locker {
	t.Helper()
	addr := os.Getenv("CLOVER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CLOVER_TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	client := NewClientFromRedis(rdb, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	require.NoError(t, client.Ping(context.Background()))
	t.Cleanup(func() { _ = client.Close() })

	return NewLocker(client, "clover-test:"+uuid.NewString()+":")
}

func TestAcquireIsExclusive(t *testing.T) {
	l := newTestLocker(t)
	ctx := context.Background()

	lock, err := l.Acquire(ctx, "lead-1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "lead-1", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, lock.Release(ctx))
	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)

	again, err := l.Acquire(ctx, "lead-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestAcquireAllReleasesPartialLocks(t *testing.T) {
	l := newTestLocker(t)
	ctx := context.Background()

	held, err := l.Acquire(ctx, "lead-b", time.Minute)
	require.NoError(t, err)

	_, err = l.AcquireAll(ctx, []string{"lead-c", "lead-b", "lead-a"}, time.Minute)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	// lead-a was taken before lead-b failed and must be free again
	a, err := l.Acquire(ctx, "lead-a", time.Minute)
	require.NoError(t, err)
	require.NoError(t, a.Release(ctx))
	require.NoError(t, held.Release(ctx))

	release, err := l.AcquireAll(ctx, []string{"lead-a", "lead-b"}, time.Minute)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}
