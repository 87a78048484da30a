package core

import "context"

// RateLimiter guards authentication endpoints. Allow records a hit for the
// key and returns ErrRateLimited once the key's budget for the current
// window is spent. Reset clears the key (after a successful sign-in).
type RateLimiter interface {
	Allow(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}
