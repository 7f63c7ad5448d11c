package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"xrayqc/api/internal/config"
	"xrayqc/api/internal/security"
)

const claimsKey = "access_claims"

// Auth validates the bearer token and places the typed claim set on the
// context. It does not consult approval state; unapproved users can reach
// the status endpoint and learn they are pending.
func Auth(cfg *config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Access token required"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := security.ParseAccessToken(tokenStr, cfg.Security.JWTSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}

		c.Set(claimsKey, *claims)
		c.Next()
	}
}

// CurrentClaims returns the claim set placed by Auth.
func CurrentClaims(c *gin.Context) (security.AccessClaims, bool) {
	val, exists := c.Get(claimsKey)
	if !exists {
		return security.AccessClaims{}, false
	}
	claims, ok := val.(security.AccessClaims)
	return claims, ok
}
