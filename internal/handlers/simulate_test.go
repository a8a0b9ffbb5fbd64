package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func countBy(workload []simRequest, pred func(simRequest) bool) int {
	n := 0
	for _, req := range workload {
		if pred(req) {
			n++
		}
	}
	return n
}

func TestBuildWorkload_ServiceSplit(t *testing.T) {
	workload := buildWorkload(TrafficConfig{
		TotalRequests:   100,
		PctHeavy:        0.3,
		NumBasicUsers:   5,
		NumPremiumUsers: 5,
		Mode:            "burst",
	})

	assert.Len(t, workload, 100)
	heavy := countBy(workload, func(r simRequest) bool { return r.service == "heavy" })
	assert.Equal(t, 30, heavy)
}

func TestBuildWorkload_UserPools(t *testing.T) {
	workload := buildWorkload(TrafficConfig{
		TotalRequests:   40,
		PctHeavy:        0.5,
		NumBasicUsers:   2,
		NumPremiumUsers: 2,
		Mode:            "burst",
	})

	premium := countBy(workload, func(r simRequest) bool {
		return strings.HasPrefix(r.clientID, "premium_user_")
	})
	basic := countBy(workload, func(r simRequest) bool {
		return strings.HasPrefix(r.clientID, "basic_user_")
	})

	assert.Equal(t, 40, premium+basic)
	// Equal pool sizes: premium serves half the workload.
	assert.Equal(t, 20, premium)
}

func TestBuildWorkload_OnlyBasicPool(t *testing.T) {
	workload := buildWorkload(TrafficConfig{
		TotalRequests:   10,
		PctHeavy:        0,
		NumBasicUsers:   3,
		NumPremiumUsers: 0,
		Mode:            "burst",
	})

	for _, req := range workload {
		assert.True(t, strings.HasPrefix(req.clientID, "basic_user_"), "got %s", req.clientID)
	}
}

func TestBuildWorkload_OnlyPremiumPool(t *testing.T) {
	workload := buildWorkload(TrafficConfig{
		TotalRequests:   10,
		PctHeavy:        1,
		NumBasicUsers:   0,
		NumPremiumUsers: 2,
		Mode:            "burst",
	})

	assert.Len(t, workload, 10)
	for _, req := range workload {
		assert.Equal(t, "heavy", req.service)
		assert.True(t, strings.HasPrefix(req.clientID, "premium_user_"), "got %s", req.clientID)
	}
}
