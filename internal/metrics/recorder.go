package metrics

import (
	"context"
	"fmt"
	"log"

	"github.com/apexgw/gateway/pkg/kv"
)

// Recorder increments the gateway's decision counters. All writes are
// atomic store increments and best-effort: a failed metric write is logged
// and swallowed, never failing a request that was already admitted and
// served.
type Recorder struct {
	store *kv.Store
}

// NewRecorder creates a recorder over the shared store.
func NewRecorder(store *kv.Store) *Recorder {
	return &Recorder{store: store}
}

// Status counts a response status code.
func (r *Recorder) Status(ctx context.Context, code int) {
	r.incr(ctx, fmt.Sprintf("metrics:status:%d", code))
}

// Service counts a proxied request per service class.
func (r *Recorder) Service(ctx context.Context, service string) {
	r.incr(ctx, "metrics:service:"+service)
}

// Instance counts a backend selection.
func (r *Recorder) Instance(ctx context.Context, service string, idx int) {
	r.incr(ctx, fmt.Sprintf("metrics:instance:%s-%d", service, idx))
}

// Latency records one latency sample (seconds) for a service.
func (r *Recorder) Latency(ctx context.Context, service string, seconds float64) {
	r.incr(ctx, "metrics:latency:count:"+service)
	if _, err := r.store.IncrFloat(ctx, "metrics:latency:sum:"+service, seconds); err != nil {
		log.Printf("metrics: incrbyfloat metrics:latency:sum:%s: %v", service, err)
	}
}

func (r *Recorder) incr(ctx context.Context, key string) {
	if _, err := r.store.Incr(ctx, key); err != nil {
		log.Printf("metrics: incr %s: %v", key, err)
	}
}
