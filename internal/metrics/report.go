package metrics

import (
	"context"
	"fmt"
	"strconv"

	"github.com/apexgw/gateway/pkg/kv"
)

// statusCodes are the response codes the gateway tracks.
var statusCodes = []int{200, 400, 429, 500}

// PlanCounts holds the admission counters for one plan.
type PlanCounts struct {
	Allowed int64 `json:"allowed"`
	Blocked int64 `json:"blocked"`
}

// Report is the aggregated metrics view served by GET /metrics.
type Report struct {
	Plans     map[string]PlanCounts `json:"plans"`
	Services  map[string]int64      `json:"services"`
	Status    map[string]int64      `json:"status"`
	Latency   map[string]float64    `json:"latency"` // average seconds, 0 when no samples
	Instances map[string]int64      `json:"instances"`
}

// Reporter reads and resets the counter key space. It is constructed with
// the plan names and service registry known at startup, which bound the set
// of keys it touches.
type Reporter struct {
	store    *kv.Store
	plans    []string
	services map[string][]string
}

// NewReporter creates a reporter for the given plans and services.
func NewReporter(store *kv.Store, plans []string, services map[string][]string) *Reporter {
	return &Reporter{store: store, plans: plans, services: services}
}

// Snapshot aggregates every counter into a Report.
func (rp *Reporter) Snapshot(ctx context.Context) (*Report, error) {
	report := &Report{
		Plans:     make(map[string]PlanCounts, len(rp.plans)),
		Services:  make(map[string]int64, len(rp.services)),
		Status:    make(map[string]int64, len(statusCodes)),
		Latency:   make(map[string]float64, len(rp.services)),
		Instances: make(map[string]int64),
	}

	for _, plan := range rp.plans {
		allowed, err := rp.getInt(ctx, fmt.Sprintf("metrics:plan:%s:allowed", plan))
		if err != nil {
			return nil, err
		}
		blocked, err := rp.getInt(ctx, fmt.Sprintf("metrics:plan:%s:blocked", plan))
		if err != nil {
			return nil, err
		}
		report.Plans[plan] = PlanCounts{Allowed: allowed, Blocked: blocked}
	}

	for svc := range rp.services {
		count, err := rp.getInt(ctx, "metrics:service:"+svc)
		if err != nil {
			return nil, err
		}
		report.Services[svc] = count
	}

	for _, code := range statusCodes {
		count, err := rp.getInt(ctx, fmt.Sprintf("metrics:status:%d", code))
		if err != nil {
			return nil, err
		}
		report.Status[strconv.Itoa(code)] = count
	}

	for svc := range rp.services {
		count, err := rp.getFloat(ctx, "metrics:latency:count:"+svc)
		if err != nil {
			return nil, err
		}
		sum, err := rp.getFloat(ctx, "metrics:latency:sum:"+svc)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			report.Latency[svc] = sum / count
		} else {
			report.Latency[svc] = 0.0
		}
	}

	for svc, urls := range rp.services {
		for idx := range urls {
			label := fmt.Sprintf("%s-%d", svc, idx)
			count, err := rp.getInt(ctx, "metrics:instance:"+label)
			if err != nil {
				return nil, err
			}
			report.Instances[label] = count
		}
	}

	return report, nil
}

// Clear resets every known counter to zero. Running it twice in a row
// leaves identical state.
func (rp *Reporter) Clear(ctx context.Context) error {
	for _, plan := range rp.plans {
		if err := rp.store.Set(ctx, fmt.Sprintf("metrics:plan:%s:allowed", plan), "0", 0); err != nil {
			return err
		}
		if err := rp.store.Set(ctx, fmt.Sprintf("metrics:plan:%s:blocked", plan), "0", 0); err != nil {
			return err
		}
	}
	for svc := range rp.services {
		if err := rp.store.Set(ctx, "metrics:service:"+svc, "0", 0); err != nil {
			return err
		}
		if err := rp.store.Set(ctx, "metrics:latency:count:"+svc, "0", 0); err != nil {
			return err
		}
		if err := rp.store.Set(ctx, "metrics:latency:sum:"+svc, "0", 0); err != nil {
			return err
		}
	}
	for _, code := range statusCodes {
		if err := rp.store.Set(ctx, fmt.Sprintf("metrics:status:%d", code), "0", 0); err != nil {
			return err
		}
	}
	for svc, urls := range rp.services {
		for idx := range urls {
			if err := rp.store.Set(ctx, fmt.Sprintf("metrics:instance:%s-%d", svc, idx), "0", 0); err != nil {
				return err
			}
		}
	}
	return nil
}

func (rp *Reporter) getInt(ctx context.Context, key string) (int64, error) {
	raw, err := rp.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("metrics: counter %s holds %q: %w", key, raw, err)
	}
	return n, nil
}

func (rp *Reporter) getFloat(ctx context.Context, key string) (float64, error) {
	raw, err := rp.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("metrics: counter %s holds %q: %w", key, raw, err)
	}
	return f, nil
}
