package handlers

import (
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apexgw/gateway/internal/auth"
)

// TrafficConfig describes one synthetic load run.
type TrafficConfig struct {
	TotalRequests   int     `json:"total_requests" binding:"required,gte=1"`
	PctHeavy        float64 `json:"pct_heavy" binding:"gte=0,lte=1"`
	NumBasicUsers   int     `json:"num_basic_users" binding:"gte=0"`
	NumPremiumUsers int     `json:"num_premium_users" binding:"gte=0"`
	Mode            string  `json:"mode" binding:"required,oneof=burst over_time"`
	DurationSeconds int     `json:"duration_seconds" binding:"gte=0"`
}

// simRequest is one planned synthetic request.
type simRequest struct {
	service  string
	clientID string
}

// Simulator replays synthetic traffic against the gateway's own proxy
// endpoint. Runs are queued and processed sequentially by a single
// background worker so overlapping simulations don't skew each other's
// metrics.
type Simulator struct {
	jobs    chan TrafficConfig
	baseURL string
	issuer  *auth.TokenIssuer
	client  *http.Client
	wg      sync.WaitGroup
	mu      sync.Mutex
	pending int
}

// NewSimulator creates a simulator targeting baseURL (the gateway itself).
func NewSimulator(baseURL string, issuer *auth.TokenIssuer, bufferSize int) *Simulator {
	if bufferSize <= 0 {
		bufferSize = 16
	}

	s := &Simulator{
		jobs:    make(chan TrafficConfig, bufferSize),
		baseURL: baseURL,
		issuer:  issuer,
		client:  &http.Client{Timeout: 30 * time.Second},
	}

	s.wg.Add(1)
	go s.worker()

	return s
}

// Enqueue schedules a run for background execution.
func (s *Simulator) Enqueue(cfg TrafficConfig) {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()

	s.jobs <- cfg
	log.Printf("[SIM] Enqueued %d requests (%s mode, pending runs: %d)",
		cfg.TotalRequests, cfg.Mode, s.Pending())
}

// Pending returns the number of queued or in-flight runs.
func (s *Simulator) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Close drains the queue and stops the worker.
func (s *Simulator) Close() {
	close(s.jobs)
	s.wg.Wait()
}

func (s *Simulator) worker() {
	defer s.wg.Done()

	for cfg := range s.jobs {
		s.run(cfg)

		s.mu.Lock()
		s.pending--
		s.mu.Unlock()
	}
}

// run executes one traffic plan.
func (s *Simulator) run(cfg TrafficConfig) {
	token, err := s.issuer.Issue("simulator")
	if err != nil {
		log.Printf("[SIM] Issue simulator token: %v", err)
		return
	}

	workload := buildWorkload(cfg)

	start := time.Now()
	switch cfg.Mode {
	case "burst":
		var wg sync.WaitGroup
		wg.Add(len(workload))
		for _, req := range workload {
			go func(req simRequest) {
				defer wg.Done()
				s.fire(token, req)
			}(req)
		}
		wg.Wait()
	default: // over_time
		interval := time.Duration(cfg.DurationSeconds) * time.Second / time.Duration(max(len(workload), 1))
		for _, req := range workload {
			s.fire(token, req)
			time.Sleep(interval)
		}
	}

	log.Printf("[SIM] Completed %d requests in %v (%s mode)",
		len(workload), time.Since(start), cfg.Mode)
}

// fire issues one synthetic request, impersonating the surrogate client id.
func (s *Simulator) fire(token string, req simRequest) {
	httpReq, err := http.NewRequest(http.MethodGet, s.baseURL+"/request/"+req.service, nil)
	if err != nil {
		log.Printf("[SIM] Build request: %v", err)
		return
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("X-Client-ID", req.clientID)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		log.Printf("[SIM] %s as %s: %v", req.service, req.clientID, err)
		return
	}
	resp.Body.Close()
}

// buildWorkload expands a traffic plan into a shuffled request list. Heavy
// requests are laid out first, then light; within each stretch the premium
// pool serves the share of indices proportional to its size, the basic pool
// the rest.
func buildWorkload(cfg TrafficConfig) []simRequest {
	heavyCount := int(float64(cfg.TotalRequests) * cfg.PctHeavy)
	lightCount := cfg.TotalRequests - heavyCount

	basic := make([]string, cfg.NumBasicUsers)
	for i := range basic {
		basic[i] = fmt.Sprintf("basic_user_%d", i)
	}
	premium := make([]string, cfg.NumPremiumUsers)
	for i := range premium {
		premium[i] = fmt.Sprintf("premium_user_%d", i)
	}

	totalUsers := cfg.NumBasicUsers + cfg.NumPremiumUsers
	premiumShare := 0
	if totalUsers > 0 {
		premiumShare = int(float64(cfg.TotalRequests) * float64(cfg.NumPremiumUsers) / float64(totalUsers))
	}

	workload := make([]simRequest, 0, cfg.TotalRequests)
	for i := 0; i < heavyCount; i++ {
		workload = append(workload, simRequest{"heavy", pickUser(i, premiumShare, premium, basic)})
	}
	for i := 0; i < lightCount; i++ {
		idx := heavyCount + i
		workload = append(workload, simRequest{"light", pickUser(idx, premiumShare, premium, basic)})
	}

	rand.Shuffle(len(workload), func(i, j int) {
		workload[i], workload[j] = workload[j], workload[i]
	})

	return workload
}

// pickUser assigns a surrogate client id for the workload index, falling
// back to whichever pool is non-empty.
func pickUser(idx, premiumShare int, premium, basic []string) string {
	if idx < premiumShare && len(premium) > 0 {
		return premium[idx%len(premium)]
	}
	if len(basic) > 0 {
		return basic[idx%len(basic)]
	}
	return premium[idx%len(premium)]
}

// SimulateTraffic validates a traffic plan and queues it for background
// execution.
func (h *Handler) SimulateTraffic(c *gin.Context) {
	var cfg TrafficConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if cfg.Mode == "over_time" && cfg.DurationSeconds <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration_seconds must be > 0 for over_time"})
		return
	}
	if cfg.NumBasicUsers+cfg.NumPremiumUsers == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one user pool must be non-empty"})
		return
	}

	h.simulator.Enqueue(cfg)

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Simulating %d requests (%s)", cfg.TotalRequests, cfg.Mode),
	})
}
