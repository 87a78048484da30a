// Package ratelimit provides fixed-window rate limiting for authentication
// endpoints. Two backends are included: an in-process limiter for single
// instances and a Redis limiter for deployments with more than one node.
package ratelimit

import (
	"errors"
	"time"
)

// Config holds the window budget. A key may be used Max times per Window;
// the window starts on the first hit.
type Config struct {
	Window time.Duration
	Max    int
}

func DefaultConfig() Config {
	return Config{
		Window: time.Minute,
		Max:    10,
	}
}

// ErrBackendUnavailable indicates the limiter backend is unreachable.
// Callers decide whether to fail open or closed.
var ErrBackendUnavailable = errors.New("rate limit backend unavailable")

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Max <= 0 {
		c.Max = 10
	}
	return c
}
