package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDHeader 由前置网关在认证后注入的员工 ID
	UserIDHeader = "X-User-ID"
	userIDKey    = "user_id"
)

// RequireUser 要求请求携带已认证的员工 ID
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			Error(c, http.StatusUnauthorized, "unauthorized", "missing "+UserIDHeader+" header")
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// currentUser 当前请求的员工 ID
func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}
