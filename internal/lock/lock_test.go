package lock

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLocker(t *testing.T, l Locker) {
	t.Helper()
	ctx := context.Background()

	t.Run("try lock excludes", func(t *testing.T) {
		unlock, ok, err := l.TryLock(ctx, "sync:alice")
		require.NoError(t, err)
		require.True(t, ok)

		_, ok, err = l.TryLock(ctx, "sync:alice")
		require.NoError(t, err)
		assert.False(t, ok)

		other, ok, err := l.TryLock(ctx, "sync:bob")
		require.NoError(t, err)
		assert.True(t, ok)
		other()

		unlock()
		unlock()

		again, ok, err := l.TryLock(ctx, "sync:alice")
		require.NoError(t, err)
		assert.True(t, ok)
		again()
	})

	t.Run("lock honours context", func(t *testing.T) {
		unlock, err := l.Lock(ctx, "channels:alice")
		require.NoError(t, err)
		defer unlock()

		waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = l.Lock(waitCtx, "channels:alice")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("lock serializes", func(t *testing.T) {
		var inside, maxInside atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := l.Lock(ctx, "channels:carol")
				if !assert.NoError(t, err) {
					return
				}
				n := inside.Add(1)
				if n > maxInside.Load() {
					maxInside.Store(n)
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxInside.Load())
	})
}

func TestMemory(t *testing.T) {
	testLocker(t, NewMemory())
}

func TestRedis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	l, err := NewRedis(context.Background(), url, time.Minute, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	l.prefix = "summer:test:" + t.Name() + ":"
	defer l.Close()

	testLocker(t, l)
}
