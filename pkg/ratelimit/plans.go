package ratelimit

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownPlan is returned by Registry.Lookup for unrecognized plan names.
var ErrUnknownPlan = errors.New("unknown plan")

// Plan is an immutable admission policy: a bucket capacity and the rate at
// which tokens accrue.
type Plan struct {
	Name       string
	Capacity   int     // maximum tokens a bucket can hold
	RefillRate float64 // tokens per second
}

// Registry maps plan names to plans. It is built once at startup and never
// mutated afterwards; lookups fail loudly on unknown names.
type Registry struct {
	plans map[string]Plan
}

// NewRegistry builds a registry from the given plans.
func NewRegistry(plans ...Plan) *Registry {
	m := make(map[string]Plan, len(plans))
	for _, p := range plans {
		m[p.Name] = p
	}
	return &Registry{plans: m}
}

// DefaultRegistry returns the built-in basic and premium plans.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Plan{Name: "basic", Capacity: 5, RefillRate: 1},
		Plan{Name: "premium", Capacity: 20, RefillRate: 5},
	)
}

// Lookup resolves a plan by name.
func (r *Registry) Lookup(name string) (Plan, error) {
	p, ok := r.plans[name]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, name)
	}
	return p, nil
}

// Names returns the registered plan names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.plans))
	for name := range r.plans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClassifyClientID maps a surrogate client id (one that is not the
// authenticated principal, typically minted by the traffic simulator) to a
// plan name by prefix. Ids starting with "premium_" get the premium plan,
// everything else gets basic.
func ClassifyClientID(clientID string) string {
	if strings.HasPrefix(clientID, "premium_") {
		return "premium"
	}
	return "basic"
}
