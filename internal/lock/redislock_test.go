package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/seijin4ka/CostNavigator-sub000/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, Prefix: "lock:", RetryBackoff: 5 * time.Millisecond}, mr
}

func TestWithLockSerialisesCallers(t *testing.T) {
	locker, _ := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var (
		mu    sync.Mutex
		order []string
	)
	firstIn := make(chan struct{})
	releaseFirst := make(chan struct{})
	done := make(chan error, 2)

	go func() {
		done <- locker.WithLock(ctx, "bootstrap", time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstIn)
			<-releaseFirst
			return nil
		})
	}()
	<-firstIn

	go func() {
		done <- locker.WithLock(ctx, "bootstrap", time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()

	close(releaseFirst)
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestWithLockReleasesOnError(t *testing.T) {
	locker, mr := newLocker(t)
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "seed", time.Second, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("lock:seed"))
}

func TestWithLockHonoursContext(t *testing.T) {
	locker, mr := newLocker(t)
	require.NoError(t, mr.Set("lock:busy", "someone-else"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := locker.WithLock(ctx, "busy", time.Second, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithLockRequiresClient(t *testing.T) {
	err := lock.Locker{}.WithLock(context.Background(), "x", time.Second, func(context.Context) error { return nil })
	require.ErrorIs(t, err, lock.ErrNotConfigured)
}

func TestOnceRunsSingleTime(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()
	calls := 0
	fn := func(context.Context) error { calls++; return nil }

	ran, err := locker.Once(ctx, "notify:est-1", time.Second, time.Hour, fn)
	require.NoError(t, err)
	require.True(t, ran)

	ran, err = locker.Once(ctx, "notify:est-1", time.Second, time.Hour, fn)
	require.NoError(t, err)
	require.False(t, ran)
	require.Equal(t, 1, calls)
	require.True(t, mr.Exists("lock:done:notify:est-1"))
	require.False(t, mr.Exists("lock:notify:est-1"))
}

func TestOnceRetriesAfterFailure(t *testing.T) {
	locker, _ := newLocker(t)
	ctx := context.Background()
	boom := errors.New("relay down")

	ran, err := locker.Once(ctx, "notify:est-2", time.Second, time.Hour, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, ran)

	ran, err = locker.Once(ctx, "notify:est-2", time.Second, time.Hour, func(context.Context) error { return nil })
	require.NoError(t, err)
	require.True(t, ran)
}

func TestLockerWithoutClient(t *testing.T) {
	_, err := lock.Locker{}.Once(context.Background(), "k", time.Second, time.Hour, func(context.Context) error { return nil })
	require.ErrorIs(t, err, lock.ErrNotConfigured)
}
