package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-agent/pkg/errors"
	"github.com/noah-isme/sma-attendance-agent/pkg/response"
)

// ContextClaimsKey is the gin context key storing token claims.
const ContextClaimsKey = "agentClaims"

// TokenValidator validates local API bearer tokens.
type TokenValidator interface {
	Enabled() bool
	ValidateToken(token string) (*models.AgentClaims, error)
}

// JWT protects routes by requiring a valid access token. When no API key is
// configured the guard is a no-op and the API relies on loopback binding.
func JWT(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth == nil || !auth.Enabled() {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}
