package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	tokenHeader = "Authorization"
	tokenPrefix = "Bearer "

	// userIDKey is the gin context key carrying the authenticated user id.
	userIDKey = "auth_user_id"
)

// Middleware returns a gin handler that validates the bearer token and
// injects the authenticated user id into the request context. Core
// calls always receive an explicit, request-scoped identity.
func Middleware(signer *Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(tokenHeader)
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		if !strings.HasPrefix(header, tokenPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		claims, err := signer.ValidateToken(strings.TrimPrefix(header, tokenPrefix))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid subject in token"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// MustGetUserID returns the authenticated user id. It panics if called
// on a route that is not behind Middleware.
func MustGetUserID(c *gin.Context) uuid.UUID {
	v, ok := c.Get(userIDKey)
	if !ok {
		panic("auth: user id not in context; route missing auth middleware")
	}
	return v.(uuid.UUID)
}
