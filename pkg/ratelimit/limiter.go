package ratelimit

import "context"

// Limiter is the interface for admission decisions.
// Implementations share bucket state through the external key/value store.
type Limiter interface {
	// Allow checks whether a request keyed by key may proceed under the
	// given plan, consuming tokensRequired tokens if so.
	// Returns true if admitted, false if rate limited.
	Allow(ctx context.Context, key string, plan Plan, tokensRequired int) (bool, error)
}
