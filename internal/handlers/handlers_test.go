package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexgw/gateway/internal/auth"
	"github.com/apexgw/gateway/internal/gateway"
	"github.com/apexgw/gateway/internal/metrics"
	"github.com/apexgw/gateway/pkg/balancer"
	"github.com/apexgw/gateway/pkg/clock"
	"github.com/apexgw/gateway/pkg/kv"
	"github.com/apexgw/gateway/pkg/ratelimit"
	ratelimitredis "github.com/apexgw/gateway/pkg/ratelimit/redis"
)

type testServer struct {
	router *gin.Engine
	store  *kv.Store
	issuer *auth.TokenIssuer
	clk    *clock.Fake
}

// newTestServer wires the full HTTP surface over miniredis and the given
// backend instances.
func newTestServer(t *testing.T, services map[string][]string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err, "Failed to start miniredis")
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	store := kv.New(client)
	t.Cleanup(func() { store.Close() })

	clk := clock.NewFake(1_700_000_000)
	registry := ratelimit.DefaultRegistry()
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)

	pipeline := gateway.NewPipeline(
		store,
		clk,
		ratelimitredis.NewTokenBucket(store, clk),
		registry,
		balancer.New(store, services),
		metrics.NewRecorder(store),
		gateway.NewBackendClient(2*time.Second),
		services,
	)
	reporter := metrics.NewReporter(store, registry.Names(), services)

	simulator := NewSimulator("http://localhost:0", issuer, 1)
	t.Cleanup(simulator.Close)

	h := New(store, issuer, pipeline, reporter, registry, simulator)
	router := gin.New()
	h.Routes(router)

	return &testServer{router: router, store: store, issuer: issuer, clk: clk}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) bearer(t *testing.T, principal string) map[string]string {
	t.Helper()
	token, err := ts.issuer.Issue(principal)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func newStubBackend(t *testing.T, payload string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRegister_CreatesAccountWithBasicPlan(t *testing.T) {
	ts := newTestServer(t, map[string][]string{})

	w := ts.do(t, "POST", "/register?username=alice&password=pw", "", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	plan, err := ts.store.Get(context.Background(), "user:alice:plan")
	require.NoError(t, err)
	assert.Equal(t, "basic", plan)

	hash, err := ts.store.Get(context.Background(), "user:alice:password")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("pw", hash))
}

func TestRegister_DuplicateUser(t *testing.T) {
	ts := newTestServer(t, map[string][]string{})

	ts.do(t, "POST", "/register?username=alice&password=pw", "", nil)
	w := ts.do(t, "POST", "/register?username=alice&password=other", "", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "User already exists")
}

func TestLogin_IssuesUsableToken(t *testing.T) {
	ts := newTestServer(t, map[string][]string{})

	ts.do(t, "POST", "/register?username=alice&password=pw", "", nil)
	w := ts.do(t, "POST", "/login?username=alice&password=pw", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bearer", resp.TokenType)

	principal, err := ts.issuer.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", principal)
}

func TestLogin_WrongPassword(t *testing.T) {
	ts := newTestServer(t, map[string][]string{})

	ts.do(t, "POST", "/register?username=alice&password=pw", "", nil)
	w := ts.do(t, "POST", "/login?username=alice&password=nope", "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials")
}

func TestProxyRequest_RequiresAuth(t *testing.T) {
	ts := newTestServer(t, map[string][]string{"light": {"http://localhost:0"}})

	w := ts.do(t, "GET", "/request/light", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProxyRequest_EndToEnd(t *testing.T) {
	backend := newStubBackend(t, `{"service":"light","message":"Quick response"}`)
	ts := newTestServer(t, map[string][]string{"light": {backend}})
	headers := ts.bearer(t, "simulator")
	headers["X-Client-ID"] = "basic_user_0"

	for i := 0; i < 5; i++ {
		w := ts.do(t, "GET", "/request/light", "", headers)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.JSONEq(t, `{"service":"light","message":"Quick response"}`, w.Body.String())
	}

	w := ts.do(t, "GET", "/request/light", "", headers)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Too many requests")
}

func TestProxyRequest_UnknownService(t *testing.T) {
	ts := newTestServer(t, map[string][]string{"light": {"http://localhost:0"}})

	w := ts.do(t, "GET", "/request/medium", "", ts.bearer(t, "alice"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid service")
}

func TestUpdatePlan_Valid(t *testing.T) {
	ts := newTestServer(t, map[string][]string{})

	w := ts.do(t, "PUT", "/user/plan/premium", "", ts.bearer(t, "alice"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Plan updated to premium")

	plan, err := ts.store.Get(context.Background(), "user:alice:plan")
	require.NoError(t, err)
	assert.Equal(t, "premium", plan)
}

func TestUpdatePlan_Unknown(t *testing.T) {
	ts := newTestServer(t, map[string][]string{})

	w := ts.do(t, "PUT", "/user/plan/gold", "", ts.bearer(t, "alice"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid plan")
}

func TestMetrics_ReportShape(t *testing.T) {
	backend := newStubBackend(t, `{"ok":true}`)
	services := map[string][]string{"light": {backend}, "heavy": {backend}}
	ts := newTestServer(t, services)
	headers := ts.bearer(t, "simulator")
	headers["X-Client-ID"] = "basic_user_0"

	ts.do(t, "GET", "/request/light", "", headers)

	w := ts.do(t, "GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report metrics.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))

	assert.Equal(t, int64(1), report.Plans["basic"].Allowed)
	assert.Equal(t, int64(1), report.Services["light"])
	assert.Equal(t, int64(1), report.Status["200"])
	assert.Contains(t, report.Instances, "light-0")
	assert.Contains(t, report.Latency, "heavy")
	assert.Equal(t, 0.0, report.Latency["heavy"])
}

func TestMetricsClear_ResetsReport(t *testing.T) {
	backend := newStubBackend(t, `{"ok":true}`)
	ts := newTestServer(t, map[string][]string{"light": {backend}})
	headers := ts.bearer(t, "simulator")
	headers["X-Client-ID"] = "basic_user_0"

	ts.do(t, "GET", "/request/light", "", headers)

	w := ts.do(t, "POST", "/metrics/clear", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Metrics cleared")

	w = ts.do(t, "GET", "/metrics", "", nil)
	var report metrics.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, int64(0), report.Plans["basic"].Allowed)
	assert.Equal(t, int64(0), report.Services["light"])
}

func TestSimulateTraffic_Validation(t *testing.T) {
	ts := newTestServer(t, map[string][]string{})

	cases := []struct {
		name string
		body string
	}{
		{"missing total", `{"pct_heavy":0.5,"num_basic_users":1,"num_premium_users":0,"mode":"burst"}`},
		{"bad mode", `{"total_requests":10,"pct_heavy":0.5,"num_basic_users":1,"num_premium_users":0,"mode":"trickle"}`},
		{"pct out of range", `{"total_requests":10,"pct_heavy":1.5,"num_basic_users":1,"num_premium_users":0,"mode":"burst"}`},
		{"over_time without duration", `{"total_requests":10,"pct_heavy":0.5,"num_basic_users":1,"num_premium_users":0,"mode":"over_time"}`},
		{"no users", `{"total_requests":10,"pct_heavy":0.5,"num_basic_users":0,"num_premium_users":0,"mode":"burst"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.do(t, "POST", "/simulate-traffic", tc.body, map[string]string{"Content-Type": "application/json"})
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSimulateTraffic_Accepted(t *testing.T) {
	ts := newTestServer(t, map[string][]string{})

	body := `{"total_requests":4,"pct_heavy":0.5,"num_basic_users":2,"num_premium_users":1,"mode":"burst"}`
	w := ts.do(t, "POST", "/simulate-traffic", body, map[string]string{"Content-Type": "application/json"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Simulating 4 requests (burst)")
}

func TestDashboard_Served(t *testing.T) {
	ts := newTestServer(t, map[string][]string{})

	w := ts.do(t, "GET", "/dashboard", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
}
