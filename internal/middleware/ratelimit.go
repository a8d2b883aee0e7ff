package middleware

import (
	"context"
	"sync"
	"time"
)

const (
	maxEntries      = 10000
	cleanupInterval = time.Minute
)

type rateLimitEntry struct {
	timestamps []time.Time
	window     time.Duration
	lastAccess time.Time
}

// MemoryLimiter is an in-process sliding-window limiter for a single
// replica. It satisfies Limiter like the Redis-backed one.
type MemoryLimiter struct {
	mu          sync.Mutex
	store       map[string]*rateLimitEntry
	lastCleanup time.Time
	now         func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		store:       make(map[string]*rateLimitEntry),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

func (rl *MemoryLimiter) cleanup(now time.Time) {
	if now.Sub(rl.lastCleanup) < cleanupInterval {
		return
	}
	rl.lastCleanup = now

	for key, entry := range rl.store {
		if now.Sub(entry.lastAccess) > entry.window {
			delete(rl.store, key)
		}
	}

	if len(rl.store) > maxEntries {
		drop := len(rl.store) / 5
		for key := range rl.store {
			if drop == 0 {
				break
			}
			delete(rl.store, key)
			drop--
		}
	}
}

func (rl *MemoryLimiter) CheckLimit(_ context.Context, key string, limit int, window time.Duration) (allowed bool, resetAt time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.cleanup(now)

	entry, exists := rl.store[key]
	if !exists {
		entry = &rateLimitEntry{}
		rl.store[key] = entry
	}
	entry.window = window
	entry.lastAccess = now

	windowStart := now.Add(-window)
	filtered := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			filtered = append(filtered, ts)
		}
	}
	entry.timestamps = filtered

	if len(entry.timestamps) >= limit {
		return false, entry.timestamps[0].Add(window)
	}

	entry.timestamps = append(entry.timestamps, now)
	return true, now.Add(window)
}
