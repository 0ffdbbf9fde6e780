package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type cooldownEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryCooldown is a per-key token bucket holding one token that refills
// every interval. It only throttles within a single process.
type MemoryCooldown struct {
	mutex    sync.Mutex
	interval time.Duration
	clock    Clock
	entries  map[string]*cooldownEntry
}

func NewMemoryCooldown(interval time.Duration, clock Clock) *MemoryCooldown {
	if clock == nil {
		clock = RealClock{}
	}
	return &MemoryCooldown{
		interval: interval,
		clock:    clock,
		entries:  make(map[string]*cooldownEntry),
	}
}

func (c *MemoryCooldown) Reserve(ctx context.Context, key string) (bool, error) {
	if c.interval <= 0 {
		return true, nil
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.clock.Now()
	entry, ok := c.entries[key]
	if !ok {
		c.cleanup(now)
		entry = &cooldownEntry{limiter: rate.NewLimiter(rate.Every(c.interval), 1)}
		c.entries[key] = entry
	}
	entry.lastSeen = now

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() || reservation.DelayFrom(now) > 0 {
		reservation.CancelAt(now)
		return false, nil
	}
	return true, nil
}

// Release forgets key; the next Reserve for it succeeds immediately.
func (c *MemoryCooldown) Release(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCooldown) cleanup(now time.Time) {
	cutoff := now.Add(-2 * c.interval)
	for key, entry := range c.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(c.entries, key)
		}
	}
}
