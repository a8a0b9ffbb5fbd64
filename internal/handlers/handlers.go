package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/apexgw/gateway/internal/auth"
	"github.com/apexgw/gateway/internal/gateway"
	"github.com/apexgw/gateway/internal/metrics"
	"github.com/apexgw/gateway/internal/middleware"
	"github.com/apexgw/gateway/pkg/kv"
	"github.com/apexgw/gateway/pkg/ratelimit"
)

// CredentialTTL is the refresh TTL on stored account records.
const CredentialTTL = gateway.UserPlanTTL

// Handler carries the process-wide collaborators behind the HTTP surface.
type Handler struct {
	store     *kv.Store
	issuer    *auth.TokenIssuer
	pipeline  *gateway.Pipeline
	reporter  *metrics.Reporter
	plans     *ratelimit.Registry
	simulator *Simulator
}

// New creates the handler set.
func New(store *kv.Store, issuer *auth.TokenIssuer, pipeline *gateway.Pipeline, reporter *metrics.Reporter, plans *ratelimit.Registry, simulator *Simulator) *Handler {
	return &Handler{
		store:     store,
		issuer:    issuer,
		pipeline:  pipeline,
		reporter:  reporter,
		plans:     plans,
		simulator: simulator,
	}
}

// Routes registers the HTTP surface on the router.
func (h *Handler) Routes(r *gin.Engine) {
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.GET("/metrics", h.GetMetrics)
	r.POST("/metrics/clear", h.ClearMetrics)
	r.POST("/simulate-traffic", h.SimulateTraffic)
	r.GET("/dashboard", h.Dashboard)

	authed := r.Group("/", middleware.BearerAuth(h.issuer))
	authed.GET("/request/:service", h.ProxyRequest)
	authed.PUT("/user/plan/:plan", h.UpdatePlan)
}

// Register creates an account with the basic plan.
func (h *Handler) Register(c *gin.Context) {
	username := c.Query("username")
	password := c.Query("password")
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}
	ctx := c.Request.Context()

	pwKey := "user:" + username + ":password"
	exists, err := h.store.Exists(ctx, pwKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Service unavailable"})
		return
	}
	if exists {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User already exists"})
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Service unavailable"})
		return
	}
	if err := h.store.Set(ctx, pwKey, hash, CredentialTTL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Service unavailable"})
		return
	}
	if err := h.store.Set(ctx, "user:"+username+":plan", "basic", CredentialTTL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Service unavailable"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User registered"})
}

// Login verifies credentials and mints a bearer token.
func (h *Handler) Login(c *gin.Context) {
	username := c.Query("username")
	password := c.Query("password")

	stored, err := h.store.Get(c.Request.Context(), "user:"+username+":password")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Service unavailable"})
		return
	}
	if stored == "" || !auth.CheckPassword(password, stored) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.issuer.Issue(username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Service unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// ProxyRequest runs the admission and dispatch pipeline for one request.
func (h *Handler) ProxyRequest(c *gin.Context) {
	service := c.Param("service")
	principal := middleware.Principal(c)
	clientHeader := c.GetHeader("X-Client-ID")

	status, body, err := h.pipeline.Proxy(c.Request.Context(), service, clientHeader, principal)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrInvalidService):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid service"})
		case errors.Is(err, gateway.ErrInvalidPlan):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan"})
		case errors.Is(err, gateway.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
		case errors.Is(err, gateway.ErrBackendUnavailable):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Backend unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Service unavailable"})
		}
		return
	}

	c.Data(status, "application/json", body)
}

// UpdatePlan switches the caller's plan assignment.
func (h *Handler) UpdatePlan(c *gin.Context) {
	plan := c.Param("plan")
	principal := middleware.Principal(c)

	if _, err := h.plans.Lookup(plan); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan"})
		return
	}

	if err := h.store.Set(c.Request.Context(), "user:"+principal+":plan", plan, gateway.UserPlanTTL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Service unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Plan updated to " + plan})
}

// GetMetrics serves the aggregated counter report.
func (h *Handler) GetMetrics(c *gin.Context) {
	report, err := h.reporter.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Service unavailable"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// ClearMetrics resets every counter to zero.
func (h *Handler) ClearMetrics(c *gin.Context) {
	if err := h.reporter.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Service unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Metrics cleared"})
}
