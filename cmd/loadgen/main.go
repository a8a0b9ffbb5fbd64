package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// loadgen drives a traffic simulation against a running gateway and prints
// the resulting metrics report.
func main() {
	base := flag.String("gateway", "http://localhost:8000", "gateway base URL")
	total := flag.Int("requests", 100, "total requests to simulate")
	pctHeavy := flag.Float64("pct-heavy", 0.3, "fraction of requests going to the heavy service")
	basicUsers := flag.Int("basic-users", 5, "number of basic surrogate users")
	premiumUsers := flag.Int("premium-users", 2, "number of premium surrogate users")
	mode := flag.String("mode", "burst", "burst or over_time")
	duration := flag.Int("duration", 10, "duration in seconds (over_time mode)")
	wait := flag.Duration("wait", 5*time.Second, "how long to wait before reading metrics")
	flag.Parse()

	client := &http.Client{Timeout: 30 * time.Second}

	// A throwaway account is enough; the simulator uses surrogate ids.
	username := fmt.Sprintf("loadgen_%d", time.Now().Unix())
	register := fmt.Sprintf("%s/register?username=%s&password=%s",
		*base, url.QueryEscape(username), "loadgen")
	resp, err := client.Post(register, "", nil)
	if err != nil {
		fmt.Printf("Register failed: %v\n", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		fmt.Printf("Register returned %d\n", resp.StatusCode)
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"total_requests":    *total,
		"pct_heavy":         *pctHeavy,
		"num_basic_users":   *basicUsers,
		"num_premium_users": *premiumUsers,
		"mode":              *mode,
		"duration_seconds":  *duration,
	})
	resp, err = client.Post(*base+"/simulate-traffic", "application/json", bytes.NewReader(payload))
	if err != nil {
		fmt.Printf("Simulate failed: %v\n", err)
		return
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Simulate returned %d: %s\n", resp.StatusCode, string(body))
		return
	}
	fmt.Printf("Queued: %s\n", string(body))

	fmt.Printf("Waiting %v for the run to complete...\n", *wait)
	time.Sleep(*wait)

	resp, err = client.Get(*base + "/metrics")
	if err != nil {
		fmt.Printf("Metrics read failed: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var report struct {
		Plans map[string]struct {
			Allowed int64 `json:"allowed"`
			Blocked int64 `json:"blocked"`
		} `json:"plans"`
		Services  map[string]int64   `json:"services"`
		Status    map[string]int64   `json:"status"`
		Latency   map[string]float64 `json:"latency"`
		Instances map[string]int64   `json:"instances"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		fmt.Printf("Decode metrics failed: %v\n", err)
		return
	}

	fmt.Println("\n=== Metrics ===")
	for plan, counts := range report.Plans {
		fmt.Printf("Plan %-8s allowed=%-6d blocked=%d\n", plan, counts.Allowed, counts.Blocked)
	}
	for svc, n := range report.Services {
		fmt.Printf("Service %-6s requests=%-6d avg latency=%.3fs\n", svc, n, report.Latency[svc])
	}
	for code, n := range report.Status {
		fmt.Printf("Status %s: %d\n", code, n)
	}
	for inst, n := range report.Instances {
		fmt.Printf("Instance %s: %d\n", inst, n)
	}
}
