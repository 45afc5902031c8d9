package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

type hostEntry struct {
	sem         *semaphore.Weighted
	activeCount int64     // held + waiting permits
	lastRelease time.Time // zero if never released
}

// HostSemaphorePool caps concurrent requests per engine host. Channels that share a
// host (Search Console and the Indexing API both live on googleapis.com) share one pool,
// so the cap holds across channels.
type HostSemaphorePool struct {
	entries map[string]*hostEntry
	mu      sync.Mutex
	limit   int64
	log     *logrus.Entry
}

// NewHostSemaphorePool creates a pool with the given per-host limit
func NewHostSemaphorePool(maxPerHost int, log *logrus.Entry) *HostSemaphorePool {
	limit := int64(maxPerHost)
	if limit <= 0 {
		limit = 1
		log.Warnf("max_requests_per_host invalid or zero, defaulting to %d", limit)
	}
	return &HostSemaphorePool{
		entries: make(map[string]*hostEntry),
		limit:   limit,
		log:     log,
	}
}

// Acquire takes one permit for host, blocking until one is free or ctx ends
func (p *HostSemaphorePool) Acquire(ctx context.Context, host string) error {
	p.mu.Lock()
	entry, exists := p.entries[host]
	if !exists {
		entry = &hostEntry{sem: semaphore.NewWeighted(p.limit)}
		p.entries[host] = entry
	}
	entry.activeCount++
	p.mu.Unlock()

	if err := entry.sem.Acquire(ctx, 1); err != nil {
		p.mu.Lock()
		entry.activeCount--
		p.mu.Unlock()
		return err
	}
	return nil
}

// Release returns one permit for host
func (p *HostSemaphorePool) Release(host string) {
	p.mu.Lock()
	entry, exists := p.entries[host]
	if !exists {
		p.mu.Unlock()
		p.log.Errorf("hostsemaphore: Release called for unknown host: %s", host)
		return
	}
	entry.activeCount--
	entry.lastRelease = time.Now()
	p.mu.Unlock()

	entry.sem.Release(1)
}

// Do runs fn while holding a permit for host
func (p *HostSemaphorePool) Do(ctx context.Context, host string, fn func() error) error {
	if err := p.Acquire(ctx, host); err != nil {
		return err
	}
	defer p.Release(host)
	return fn()
}

// RunEviction drops idle hosts every interval until ctx ends. Used by long-running watch mode.
func (p *HostSemaphorePool) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.evictIdle(interval)
		case <-ctx.Done():
			p.log.Debugf("Stopping host semaphore eviction: %v", ctx.Err())
			return
		}
	}
}

func (p *HostSemaphorePool) evictIdle(maxIdle time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	evicted := 0
	for host, entry := range p.entries {
		if entry.activeCount == 0 && !entry.lastRelease.IsZero() && now.Sub(entry.lastRelease) >= maxIdle {
			delete(p.entries, host)
			evicted++
		}
	}
	if evicted > 0 {
		p.log.Debugf("Evicted %d idle host semaphores, %d remain", evicted, len(p.entries))
	}
}

// Len returns the number of tracked hosts
func (p *HostSemaphorePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
