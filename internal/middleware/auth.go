package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/auth"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/models"
)

// userKey is where Auth stores the verified identity in the gin context.
const userKey = "user"

// Auth verifies the bearer token when one is present and stores the
// identity in the context. A missing token is not an error here; routes
// that need an identity stack RequireUser on top. An invalid token is
// terminal for the request.
func Auth(logger *zap.Logger, verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		user, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			logger.Warn("token verification failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// RequireUser rejects requests that carry no verified identity.
func RequireUser(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			logger.Warn("unauthenticated request", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects authenticated users outside the admin group.
func RequireAdmin(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}
		if !user.IsAdmin() {
			logger.Warn("admin access denied", zap.String("userId", user.UserID))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Admin privileges required"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the identity stored by Auth, or nil.
func CurrentUser(c *gin.Context) *models.UserInfo {
	v, exists := c.Get(userKey)
	if !exists {
		return nil
	}
	user, ok := v.(*models.UserInfo)
	if !ok {
		return nil
	}
	return user
}

// extractToken pulls the bearer token from the Authorization header, falling
// back to the session cookie some hosting setups use.
func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie("__session"); err == nil {
		return cookie
	}
	return ""
}
