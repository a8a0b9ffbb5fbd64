package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/apexgw/gateway/internal/metrics"
	"github.com/apexgw/gateway/pkg/balancer"
	"github.com/apexgw/gateway/pkg/clock"
	"github.com/apexgw/gateway/pkg/kv"
	"github.com/apexgw/gateway/pkg/ratelimit"
)

// UserPlanTTL is the refresh TTL on user:<name>:plan assignments.
const UserPlanTTL = 24 * time.Hour

// Pipeline orchestrates a proxied request: classify plan, admit, select a
// backend, forward, record. All state lives in the shared store; the
// pipeline itself holds no locks across its I/O waits.
type Pipeline struct {
	store    *kv.Store
	clock    clock.Clock
	limiter  ratelimit.Limiter
	plans    *ratelimit.Registry
	balancer *balancer.RoundRobin
	recorder *metrics.Recorder
	backend  *BackendClient
	services map[string][]string
}

// NewPipeline wires the pipeline from its collaborators.
func NewPipeline(
	store *kv.Store,
	clk clock.Clock,
	limiter ratelimit.Limiter,
	plans *ratelimit.Registry,
	bal *balancer.RoundRobin,
	recorder *metrics.Recorder,
	backend *BackendClient,
	services map[string][]string,
) *Pipeline {
	return &Pipeline{
		store:    store,
		clock:    clk,
		limiter:  limiter,
		plans:    plans,
		balancer: bal,
		recorder: recorder,
		backend:  backend,
		services: services,
	}
}

// Proxy handles one inbound request for a service class on behalf of the
// authenticated principal. clientHeader is the optional X-Client-ID
// override; when empty, the principal itself is the rate-limit subject.
//
// The side-effect ordering is contractual: plan metrics move on every
// admission, the 429 status counter moves only on denial, the instance
// counter moves as soon as a backend is picked, and service/status/latency
// counters move once the backend call resolves. Tokens consumed by the
// admission are never refunded, even when the backend fails; refunds would
// let a failing backend amplify a client's effective rate.
func (p *Pipeline) Proxy(ctx context.Context, service, clientHeader, principal string) (int, json.RawMessage, error) {
	if _, ok := p.services[service]; !ok {
		return 0, nil, fmt.Errorf("%w: %q", ErrInvalidService, service)
	}

	clientID := clientHeader
	if clientID == "" {
		clientID = principal
	}

	planName, err := p.resolvePlan(ctx, clientID, principal)
	if err != nil {
		return 0, nil, err
	}
	plan, err := p.plans.Lookup(planName)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %q", ErrInvalidPlan, planName)
	}

	allowed, err := p.limiter.Allow(ctx, clientID+":bucket", plan, 1)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: admit: %v", ErrStoreUnavailable, err)
	}
	if !allowed {
		p.recorder.Status(ctx, http.StatusTooManyRequests)
		return 0, nil, ErrRateLimited
	}

	idx, target, err := p.balancer.Pick(ctx, service)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: pick %s: %v", ErrStoreUnavailable, service, err)
	}
	p.recorder.Instance(ctx, service, idx)

	start := p.clock.Now()
	status, body, err := p.backend.Get(ctx, target+"/data")
	latency := p.clock.Now() - start

	if err != nil {
		if ctx.Err() != nil {
			// Cancelled in flight: keep the metrics recorded so far, skip
			// the status and latency samples for the unfinished call.
			return 0, nil, ctx.Err()
		}
		p.recorder.Service(ctx, service)
		p.recorder.Status(ctx, http.StatusInternalServerError)
		p.recorder.Latency(ctx, service, latency)
		return 0, nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	p.recorder.Service(ctx, service)
	p.recorder.Status(ctx, status)
	p.recorder.Latency(ctx, service, latency)

	return status, body, nil
}

// resolvePlan maps the rate-limit subject to a plan name. The authenticated
// principal uses its stored assignment (default basic); a surrogate client
// id is classified by prefix without touching the store.
func (p *Pipeline) resolvePlan(ctx context.Context, clientID, principal string) (string, error) {
	if clientID != principal {
		return ratelimit.ClassifyClientID(clientID), nil
	}

	plan, err := p.store.Get(ctx, "user:"+principal+":plan")
	if err != nil {
		return "", fmt.Errorf("%w: plan lookup: %v", ErrStoreUnavailable, err)
	}
	if plan == "" {
		plan = "basic"
	}
	return plan, nil
}
