package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/gatehouse-auth/gatehouse/core"
)

// MemoryLimiter is a fixed-window limiter for single-process deployments.
type MemoryLimiter struct {
	config Config

	mu      sync.Mutex
	windows map[string]*window

	// lastSweep bounds how often expired windows are collected.
	lastSweep time.Time
}

type window struct {
	start time.Time
	count int
}

var _ core.RateLimiter = (*MemoryLimiter)(nil)

func NewMemory(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		config:    cfg.withDefaults(),
		windows:   make(map[string]*window),
		lastSweep: time.Now(),
	}
}

// Allow records a hit for key and returns core.ErrRateLimited once the
// window budget is spent.
func (l *MemoryLimiter) Allow(_ context.Context, key string) error {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.config.Window {
		l.windows[key] = &window{start: now, count: 1}
		return nil
	}

	w.count++
	if w.count > l.config.Max {
		return core.ErrRateLimited
	}
	return nil
}

// Reset clears the window for key.
func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	return nil
}

// sweep drops expired windows at most once per window duration.
// Caller holds the lock.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.config.Window {
		return
	}
	for k, w := range l.windows {
		if now.Sub(w.start) >= l.config.Window {
			delete(l.windows, k)
		}
	}
	l.lastSweep = now
}
