package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostSemaphore_LimitPerHost(t *testing.T) {
	pool := NewHostSemaphorePool(2, testLogger())
	ctx := context.Background()

	require.NoError(t, pool.Acquire(ctx, "api.indexnow.org"))
	require.NoError(t, pool.Acquire(ctx, "api.indexnow.org"))

	timeout, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.Error(t, pool.Acquire(timeout, "api.indexnow.org"), "third permit should block")

	// A different host is unaffected
	require.NoError(t, pool.Acquire(ctx, "www.bing.com"))
	assert.Equal(t, 2, pool.Len())

	pool.Release("api.indexnow.org")
	require.NoError(t, pool.Acquire(ctx, "api.indexnow.org"))

	pool.Release("api.indexnow.org")
	pool.Release("api.indexnow.org")
	pool.Release("www.bing.com")
}

func TestHostSemaphore_DoSerializes(t *testing.T) {
	pool := NewHostSemaphorePool(1, testLogger())
	var inFlight, maxSeen atomic.Int32
	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.Do(context.Background(), "googleapis.com", func() error {
				n := inFlight.Add(1)
				for {
					m := maxSeen.Load()
					if n <= m || maxSeen.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestHostSemaphore_DoReturnsCallbackError(t *testing.T) {
	pool := NewHostSemaphorePool(1, testLogger())
	sentinel := errors.New("boom")
	assert.ErrorIs(t, pool.Do(context.Background(), "h", func() error { return sentinel }), sentinel)

	// Permit was released
	require.NoError(t, pool.Acquire(context.Background(), "h"))
	pool.Release("h")
}

func TestHostSemaphore_EvictIdle(t *testing.T) {
	pool := NewHostSemaphorePool(1, testLogger())
	ctx := context.Background()

	require.NoError(t, pool.Acquire(ctx, "held"))
	for _, host := range []string{"a", "b"} {
		require.NoError(t, pool.Acquire(ctx, host))
		pool.Release(host)
	}
	require.Equal(t, 3, pool.Len())

	time.Sleep(5 * time.Millisecond)
	pool.evictIdle(time.Millisecond)
	assert.Equal(t, 1, pool.Len(), "held host must survive eviction")

	pool.Release("held")
}

func TestHostSemaphore_AcquireRollbackOnCancel(t *testing.T) {
	pool := NewHostSemaphorePool(1, testLogger())
	require.NoError(t, pool.Acquire(context.Background(), "h"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, pool.Acquire(ctx, "h"))

	pool.Release("h")
	time.Sleep(5 * time.Millisecond)
	pool.evictIdle(time.Millisecond)
	assert.Equal(t, 0, pool.Len())
}

func TestHostSemaphore_RunEvictionStopsOnCancel(t *testing.T) {
	pool := NewHostSemaphorePool(1, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		pool.RunEviction(ctx, time.Minute)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunEviction did not respect context cancellation")
	}
}
