package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"stockpot/internal/auth"
	"stockpot/internal/errcode"
)

const (
	UserIDKey   = "userID"
	UsernameKey = "username"
)

// AbortUnauthenticated ends the request with the bearer login challenge.
func AbortUnauthenticated(c *gin.Context) {
	c.Header("WWW-Authenticate", `Bearer realm="stockpot"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": "authentication required",
		"code":  errcode.Unauthenticated,
	})
}

// AuthMiddleware validates the access token and stores the user id and name in the context.
func AuthMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			AbortUnauthenticated(c)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			AbortUnauthenticated(c)
			return
		}

		claims, err := authService.Verify(parts[1], auth.TokenTypeAccess)
		if err != nil {
			AbortUnauthenticated(c)
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Next()
	}
}
