package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/marketplace-admin-chat/pkg/response"
)

const (
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// RequireAPIKey rejects requests whose bearer token does not equal key.
// An empty key disables the check; the control API then relies on
// listening on loopback only.
func RequireAPIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			response.Unauthorized(c, "MISSING_AUTH", "missing authorization header")
			c.Abort()
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.Unauthorized(c, "INVALID_AUTH", "invalid authorization format")
			c.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, BearerPrefix)
		if subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
			response.Unauthorized(c, "INVALID_AUTH", "invalid api key")
			c.Abort()
			return
		}

		c.Next()
	}
}
