package balancer

import (
	"context"
	"errors"
	"fmt"

	"github.com/apexgw/gateway/pkg/kv"
)

// ErrUnknownService is returned when a service has no registered instances.
var ErrUnknownService = errors.New("unknown service")

// RoundRobin selects backend instances by a per-service monotonic counter
// kept in the shared store, so every gateway process participating in the
// pool advances the same sequence.
type RoundRobin struct {
	store    *kv.Store
	services map[string][]string
}

// New creates a selector over the static service registry.
func New(store *kv.Store, services map[string][]string) *RoundRobin {
	return &RoundRobin{store: store, services: services}
}

// Pick returns the next instance index and URL for the service.
//
// The counter is pre-incremented, so the very first pick lands on index
// 1 mod n rather than 0. The sequence still visits every instance with
// equal frequency; callers must not compensate for the offset.
func (rr *RoundRobin) Pick(ctx context.Context, service string) (int, string, error) {
	urls, ok := rr.services[service]
	if !ok || len(urls) == 0 {
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownService, service)
	}

	n, err := rr.store.Incr(ctx, "lb:"+service+":counter")
	if err != nil {
		return 0, "", err
	}

	idx := int(n % int64(len(urls)))
	return idx, urls[idx], nil
}
