package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexgw/gateway/internal/auth"
)

func setupRouter(issuer *auth.TokenIssuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BearerAuth(issuer))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"principal": Principal(c)})
	})
	return r
}

func TestBearerAuth_ValidToken(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	r := setupRouter(issuer)

	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")
}

func TestBearerAuth_MissingHeader(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	r := setupRouter(issuer)

	req, _ := http.NewRequest("GET", "/whoami", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerAuth_ExpiredToken(t *testing.T) {
	expired := auth.NewTokenIssuer("test-secret", -time.Minute)
	live := auth.NewTokenIssuer("test-secret", time.Hour)
	r := setupRouter(live)

	token, err := expired.Issue("alice")
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Token expired")
}

func TestBearerAuth_BadSignature(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	forger := auth.NewTokenIssuer("other-secret", time.Hour)
	r := setupRouter(issuer)

	token, err := forger.Issue("mallory")
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid token")
}
