package middleware

import (
	"net/http"
	"strings"

	"memberhub/config"
	"memberhub/internal/auth"

	"github.com/gin-gonic/gin"
)

func bearerClaims(cfg *config.JWTConfig, header string) (*auth.Claims, string) {
	if header == "" {
		return nil, "missing authorization header"
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, "invalid authorization format"
	}
	claims, err := auth.ParseAccessToken(cfg, parts[1])
	if err != nil {
		return nil, "invalid or expired token"
	}
	return claims, ""
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set("account_id", claims.AccountID)
	c.Set("email", claims.Email)
	c.Set("role", claims.Role)
	c.Set("claims", claims)
}

// AuthRequired validates the JWT and sets account_id, email and role in context.
func AuthRequired(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, msg := bearerClaims(cfg, c.GetHeader("Authorization"))
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": "UNAUTHORIZED"})
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth sets the account when a valid token is present and lets anonymous requests through.
func OptionalAuth(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, _ := bearerClaims(cfg, c.GetHeader("Authorization")); claims != nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}

// RequireRole checks that the authenticated account has one of the allowed roles.
func RequireRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := GetRole(c)
		if r == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "UNAUTHORIZED"})
			return
		}
		for _, a := range allowed {
			if r == a {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "code": "FORBIDDEN"})
	}
}

// GetAccountID returns the authenticated account ID, or 0 for anonymous requests.
func GetAccountID(c *gin.Context) uint {
	v, _ := c.Get("account_id")
	if v == nil {
		return 0
	}
	return v.(uint)
}

func GetRole(c *gin.Context) string {
	return c.GetString("role")
}
