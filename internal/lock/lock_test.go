package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/illusia-ry-organization/illusia-ry/internal/lock"
)

func client(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestWithLockSerializesCriticalSections(t *testing.T) {
	locker := lock.Locker{Client: client(t), RetryBackoff: 5 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var mu sync.Mutex
	var order []string
	firstEntered := make(chan struct{})
	releaseFirst := make(chan struct{})
	done := make(chan struct{})

	go func() {
		err := locker.WithLock(ctx, "booking:lock:u1", time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstEntered)
			<-releaseFirst
			return nil
		})
		require.NoError(t, err)
	}()

	<-firstEntered
	go func() {
		err := locker.WithLock(ctx, "booking:lock:u1", time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	require.Equal(t, []string{"first"}, order)
	mu.Unlock()

	close(releaseFirst)
	<-done
	mu.Lock()
	require.Equal(t, []string{"first", "second"}, order)
	mu.Unlock()
}

func TestWithLockGivesUpWhenContextExpires(t *testing.T) {
	locker := lock.Locker{Client: client(t), RetryBackoff: 5 * time.Millisecond}

	blocker := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = locker.WithLock(context.Background(), "busy", time.Minute, func(context.Context) error {
			close(entered)
			<-blocker
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := locker.WithLock(ctx, "busy", time.Minute, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(blocker)
}

func TestWithLockRequiresClient(t *testing.T) {
	err := lock.Locker{}.WithLock(context.Background(), "k", time.Second, func(context.Context) error { return nil })
	require.ErrorIs(t, err, lock.ErrNotConfigured)
}
