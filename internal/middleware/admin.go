package middleware

import (
	"net/http"

	"memberhub/internal/domain"

	"github.com/gin-gonic/gin"
)

// StaffRequired admits moderators, admins and superadmins.
func StaffRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !domain.IsStaff(GetRole(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff access required", "code": "FORBIDDEN"})
			return
		}
		c.Next()
	}
}
