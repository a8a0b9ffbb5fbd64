package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/apexgw/gateway/pkg/clock"
	"github.com/apexgw/gateway/pkg/kv"
	"github.com/apexgw/gateway/pkg/ratelimit"
)

// BucketTTL is how long an inactive bucket survives in the store. It is
// refreshed on every admission decision.
const BucketTTL = time.Hour

// bucket is the persisted rate-limit state for one client key.
type bucket struct {
	Tokens     float64 `json:"tokens"`
	LastRefill float64 `json:"last_refill"` // seconds since epoch
}

// TokenBucket is the baseline limiter: read bucket, refill, consume, write
// back. The get/set cycle is deliberately not atomic; concurrent admissions
// on the same key are last-writer-wins and the possible anomalies (lost
// decrement, stale refill) only under-count in the limiter's favor.
type TokenBucket struct {
	store *kv.Store
	clock clock.Clock
}

// NewTokenBucket creates a limiter over the shared store.
func NewTokenBucket(store *kv.Store, clk clock.Clock) *TokenBucket {
	return &TokenBucket{store: store, clock: clk}
}

// Allow performs one admission decision for key under plan.
//
// Replenishment is floor(elapsed * rate): tokens accrue as whole units and
// the fractional remainder is discarded because last_refill always advances
// to now. Clients cannot bank partial tokens by polling.
func (tb *TokenBucket) Allow(ctx context.Context, key string, plan ratelimit.Plan, tokensRequired int) (bool, error) {
	now := tb.clock.Now()
	capacity := float64(plan.Capacity)

	raw, err := tb.store.Get(ctx, key)
	if err != nil {
		return false, err
	}

	b := bucket{Tokens: capacity, LastRefill: now}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return false, fmt.Errorf("ratelimit: decode bucket %s: %w", key, err)
		}
	}

	elapsed := now - b.LastRefill
	if elapsed < 0 {
		// Clock regression: never refill backwards.
		elapsed = 0
	}
	b.Tokens = math.Min(capacity, b.Tokens+math.Floor(elapsed*plan.RefillRate))
	b.LastRefill = now

	allowed := false
	if tokensRequired <= 0 {
		allowed = true
	} else if b.Tokens >= float64(tokensRequired) {
		b.Tokens -= float64(tokensRequired)
		allowed = true
	}

	data, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("ratelimit: encode bucket %s: %w", key, err)
	}
	if err := tb.store.Set(ctx, key, string(data), BucketTTL); err != nil {
		return false, err
	}

	recordPlanDecision(ctx, tb.store, plan.Name, allowed)
	return allowed, nil
}

// recordPlanDecision bumps metrics:plan:<plan>:allowed|blocked. The counter
// is atomic and never lost; a failed metric write must not fail an admission
// whose bucket already persisted, so errors are logged and swallowed.
func recordPlanDecision(ctx context.Context, store *kv.Store, plan string, allowed bool) {
	outcome := "blocked"
	if allowed {
		outcome = "allowed"
	}
	key := fmt.Sprintf("metrics:plan:%s:%s", plan, outcome)
	if _, err := store.Incr(ctx, key); err != nil {
		log.Printf("ratelimit: incr %s: %v", key, err)
	}
}

// Ensure TokenBucket implements Limiter.
var _ ratelimit.Limiter = (*TokenBucket)(nil)
