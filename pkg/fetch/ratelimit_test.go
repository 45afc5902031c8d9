package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDelay(t *testing.T) {
	t.Run("first request is immediate", func(t *testing.T) {
		rl := NewRateLimiter(100*time.Millisecond, testLogger())
		start := time.Now()
		assert.NoError(t, rl.ApplyDelay(context.Background(), "fresh-host.com", 5*time.Second))
		assert.Less(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("sleeps for the remaining delay", func(t *testing.T) {
		rl := NewRateLimiter(100*time.Millisecond, testLogger())
		rl.UpdateLastRequestTime("www.bing.com")

		start := time.Now()
		assert.NoError(t, rl.ApplyDelay(context.Background(), "www.bing.com", 100*time.Millisecond))
		elapsed := time.Since(start)
		assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
		assert.Less(t, elapsed, 300*time.Millisecond)
	})

	t.Run("falls back to default delay", func(t *testing.T) {
		rl := NewRateLimiter(80*time.Millisecond, testLogger())
		rl.UpdateLastRequestTime("h")
		start := time.Now()
		assert.NoError(t, rl.ApplyDelay(context.Background(), "h", 0))
		assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	})

	t.Run("cancelled context returns early", func(t *testing.T) {
		rl := NewRateLimiter(100*time.Millisecond, testLogger())
		rl.UpdateLastRequestTime("example.com")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		err := rl.ApplyDelay(ctx, "example.com", 5*time.Second)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), 100*time.Millisecond)
	})
}

func TestApplyDelayKeepsMinimumGap(t *testing.T) {
	const minDelay = 30 * time.Millisecond
	rl := NewRateLimiter(minDelay, testLogger())
	ctx := context.Background()

	last := time.Now()
	rl.UpdateLastRequestTime("www.google.com")
	for range 10 {
		require.NoError(t, rl.ApplyDelay(ctx, "www.google.com", minDelay))
		now := time.Now()
		assert.GreaterOrEqual(t, now.Sub(last), minDelay)
		last = time.Now()
		rl.UpdateLastRequestTime("www.google.com")
	}
}
