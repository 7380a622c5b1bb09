package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nutriscan/tracker/internal/ports/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRepository(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheRepository()
	defer cache.Close()

	now := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	_, err := cache.Get(ctx, "missing")
	assert.ErrorIs(t, err, outbound.ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	ok, err := cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, err = cache.Get(ctx, "k")
	assert.ErrorIs(t, err, outbound.ErrCacheMiss)

	cache.evictExpired()
	assert.Empty(t, cache.data)

	require.NoError(t, cache.Set(ctx, "d", []byte("x"), 0))
	require.NoError(t, cache.Delete(ctx, "d"))
	ok, _ = cache.Exists(ctx, "d")
	assert.False(t, ok)
}

func TestLocker_MutualExclusion(t *testing.T) {
	locker := NewLocker()
	userID := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), userID)
			require.NoError(t, err)
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, locker.size())
}

func TestLocker_ContextCancel(t *testing.T) {
	locker := NewLocker()
	userID := uuid.New()

	unlock, err := locker.Lock(context.Background(), userID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, userID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// other users are independent
	other, err := locker.Lock(context.Background(), uuid.New())
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	assert.Equal(t, 0, locker.size())
}
