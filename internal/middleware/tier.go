package middleware

import (
	"context"
	"log"
	"net/http"

	"memberhub/internal/domain"

	"github.com/gin-gonic/gin"
)

type AccessChecker interface {
	HasAccess(ctx context.Context, accountID uint, required domain.Tier) (bool, error)
}

// RequireTier admits accounts whose resolved tier is at least required. Use after AuthRequired.
func RequireTier(checker AccessChecker, required domain.Tier) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := GetAccountID(c)
		if accountID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "UNAUTHORIZED"})
			return
		}
		ok, err := checker.HasAccess(c.Request.Context(), accountID, required)
		if err != nil {
			log.Printf("[middleware] tier check for %d: %v", accountID, err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "could not resolve access", "code": "STORAGE_UNAVAILABLE"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "requires " + required.String() + " access", "code": "FORBIDDEN"})
			return
		}
		c.Next()
	}
}
