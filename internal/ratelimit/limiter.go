package ratelimit

import "context"

// RateLimiter caps outbound send throughput per sending account.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Wait(ctx context.Context, key string) error
}

// Noop is the single-process default; pacing then comes entirely from
// the dispatch strategy's own delays.
type Noop struct{}

func (Noop) Allow(ctx context.Context, key string) (bool, error) { return true, nil }

func (Noop) Wait(ctx context.Context, key string) error { return nil }
