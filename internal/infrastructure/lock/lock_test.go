package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/ports"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, "", zerolog.Nop()), mr
}

// lockerContract runs the behaviour every RunLocker must have
func lockerContract(t *testing.T, locker ports.RunLocker) {
	ctx := context.Background()

	held, err := locker.TryLock(ctx, "s1:products:pull", time.Minute)
	require.NoError(t, err)

	_, err = locker.TryLock(ctx, "s1:products:pull", time.Minute)
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	// Other tuples are independent
	other, err := locker.TryLock(ctx, "s1:products:push", time.Minute)
	require.NoError(t, err)
	other.Release()

	held.Release()
	held.Release() // Idempotent

	again, err := locker.TryLock(ctx, "s1:products:pull", time.Minute)
	require.NoError(t, err)
	again.Release()
}

func TestMemoryLocker(t *testing.T) {
	lockerContract(t, NewMemoryLocker())
}

func TestRedisLocker(t *testing.T) {
	locker, _ := newRedisLocker(t)
	lockerContract(t, locker)
}

func TestMemoryLocker_ExpiredLeaseIsNotReleasedByOldHolder(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }

	stale, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	fresh, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	stale.Release()
	_, err = locker.TryLock(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
	fresh.Release()
}

func TestRedisLocker_ExpiredLeaseIsNotReleasedByOldHolder(t *testing.T) {
	ctx := context.Background()
	locker, mr := newRedisLocker(t)

	stale, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	stale.Release()
	assert.True(t, mr.Exists(defaultKeyPrefix+"k"))
	fresh.Release()
	assert.False(t, mr.Exists(defaultKeyPrefix+"k"))
}

func TestRedisLocker_ReleaseAfterCancel(t *testing.T) {
	locker, mr := newRedisLocker(t)
	ctx, cancel := context.WithCancel(context.Background())

	held, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	cancel()
	held.Release()
	assert.False(t, mr.Exists(defaultKeyPrefix+"k"))
}

func TestMemoryLocker_ConcurrentTryLock(t *testing.T) {
	locker := NewMemoryLocker()
	var acquired atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := locker.TryLock(context.Background(), "k", time.Minute); err == nil {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), acquired.Load())
}

func TestMemoryLocker_ExtendKeepsLeaseAlive(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }

	held, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	now = now.Add(50 * time.Second)
	require.NoError(t, held.Extend(ctx))
	now = now.Add(50 * time.Second)
	_, err = locker.TryLock(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	held.Release()
	assert.ErrorIs(t, held.Extend(ctx), domain.ErrLeaseLost)
}

func TestMemoryLocker_ExtendAfterTakeover(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }

	stale, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	fresh, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, stale.Extend(ctx), domain.ErrLeaseLost)
	assert.NoError(t, fresh.Extend(ctx))
	fresh.Release()
}

func TestRedisLocker_Extend(t *testing.T) {
	ctx := context.Background()
	locker, mr := newRedisLocker(t)

	held, err := locker.TryLock(ctx, "k", 10*time.Second)
	require.NoError(t, err)

	mr.FastForward(8 * time.Second)
	require.NoError(t, held.Extend(ctx))
	assert.Equal(t, 10*time.Second, mr.TTL(defaultKeyPrefix+"k"))

	mr.FastForward(11 * time.Second)
	fresh, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, held.Extend(ctx), domain.ErrLeaseLost)
	fresh.Release()
}
