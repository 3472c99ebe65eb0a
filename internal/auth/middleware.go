package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextClaimsKey is the gin context key under which RequireAuth stores the
// authenticated user's claims.
const ContextClaimsKey = "auth_claims"

// RequireAuth returns middleware that protects routes with bearer token
// authentication. It extracts the Authorization header, validates the JWT,
// and stores the claims in the request context; failures abort the request
// with 401 Unauthorized.
func (s *Service) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "bearer token required",
			})
			return
		}

		claims, err := s.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

// ClaimsFromContext retrieves the authenticated user's claims placed in the
// context by RequireAuth. Returns nil when the request was not
// authenticated.
func ClaimsFromContext(c *gin.Context) *Claims {
	value, exists := c.Get(ContextClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*Claims)
	if !ok {
		return nil
	}
	return claims
}
