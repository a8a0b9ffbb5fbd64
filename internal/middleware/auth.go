package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/apexgw/gateway/internal/auth"
)

// principalKey is the gin context key carrying the authenticated principal.
const principalKey = "principal"

// BearerAuth verifies the Authorization bearer token and stores the
// authenticated principal on the context. Requests without a valid token
// are aborted with 401.
func BearerAuth(issuer *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		principal, err := issuer.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, auth.ErrTokenExpired) {
				msg = "Token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// Principal returns the authenticated principal set by BearerAuth, or ""
// for unauthenticated requests.
func Principal(c *gin.Context) string {
	return c.GetString(principalKey)
}
