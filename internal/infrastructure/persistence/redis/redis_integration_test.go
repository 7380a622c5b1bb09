//go:build integration

package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	redisrepo "github.com/nutriscan/tracker/internal/infrastructure/persistence/redis"
	"github.com/nutriscan/tracker/internal/ports/outbound"
	"github.com/nutriscan/tracker/test/testutils"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newClient(t *testing.T) goredis.UniversalClient {
	client := goredis.NewUniversalClient(&goredis.UniversalOptions{Addrs: []string{testutils.SetupTestRedis(t)}})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCacheRepository(t *testing.T) {
	ctx := context.Background()
	cache := redisrepo.NewCacheRepository(newClient(t), "test:", zaptest.NewLogger(t))

	_, err := cache.Get(ctx, "absent")
	assert.ErrorIs(t, err, outbound.ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "k", []byte("value"), time.Minute))
	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	ok, err := cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, cache.Delete(ctx, "k"))
	ok, err = cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLocker(t *testing.T) {
	client := newClient(t)
	locker := redisrepo.NewLocker(client, "test:", 5*time.Second, zaptest.NewLogger(t))
	userID := uuid.New()

	t.Run("MutualExclusion", func(t *testing.T) {
		var inside, overlaps int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := locker.Lock(context.Background(), userID)
				require.NoError(t, err)
				if atomic.AddInt32(&inside, 1) > 1 {
					atomic.AddInt32(&overlaps, 1)
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				unlock()
			}()
		}
		wg.Wait()
		assert.Zero(t, overlaps)
	})

	t.Run("TimeoutWhileHeld", func(t *testing.T) {
		unlock, err := locker.Lock(context.Background(), userID)
		require.NoError(t, err)
		defer unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(ctx, userID)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("StaleUnlockDoesNotReleaseNewOwner", func(t *testing.T) {
		short := redisrepo.NewLocker(client, "test:", 50*time.Millisecond, zaptest.NewLogger(t))
		other := uuid.New()

		staleUnlock, err := short.Lock(context.Background(), other)
		require.NoError(t, err)
		time.Sleep(100 * time.Millisecond)

		unlock, err := short.Lock(context.Background(), other)
		require.NoError(t, err)
		staleUnlock()

		exists, err := client.Exists(context.Background(), "test:lock:user:"+other.String()).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists)
		unlock()
	})
}
