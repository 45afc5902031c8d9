package fetch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimiter paces requests per host
type RateLimiter struct {
	hostLastRequest   map[string]time.Time
	hostLastRequestMu sync.Mutex
	defaultDelay      time.Duration // Used when a caller passes a non-positive delay
	log               *logrus.Entry
}

// NewRateLimiter creates a RateLimiter
func NewRateLimiter(defaultDelay time.Duration, log *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		hostLastRequest: make(map[string]time.Time),
		defaultDelay:    defaultDelay,
		log:             log,
	}
}

// ApplyDelay blocks until minDelay has passed since the last request to host, plus up to 20% jitter.
// The jitter only lengthens the wait, so minDelay is a floor.
// Returns ctx.Err() if the context ends first.
func (rl *RateLimiter) ApplyDelay(ctx context.Context, host string, minDelay time.Duration) error {
	if minDelay <= 0 {
		minDelay = rl.defaultDelay
	}
	if minDelay <= 0 {
		return ctx.Err()
	}

	rl.hostLastRequestMu.Lock()
	lastReqTime, exists := rl.hostLastRequest[host]
	rl.hostLastRequestMu.Unlock()
	if !exists {
		return ctx.Err()
	}

	elapsed := time.Since(lastReqTime)
	if elapsed >= minDelay {
		return ctx.Err()
	}
	sleep := minDelay - elapsed
	if jitterRange := int64(sleep) / 5; jitterRange > 0 {
		sleep += time.Duration(rand.Int63n(jitterRange))
	}

	rl.log.WithFields(logrus.Fields{
		"host": host, "sleep": sleep, "required_delay": minDelay, "elapsed": elapsed,
	}).Debug("Rate limit applying sleep")

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateLastRequestTime records now as the last request time for host.
// Call it after the request attempt.
func (rl *RateLimiter) UpdateLastRequestTime(host string) {
	rl.hostLastRequestMu.Lock()
	rl.hostLastRequest[host] = time.Now()
	rl.hostLastRequestMu.Unlock()
}
