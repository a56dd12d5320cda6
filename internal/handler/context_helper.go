package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-agent/internal/middleware"
	"github.com/noah-isme/sma-attendance-agent/internal/models"
)

func claimsFromContext(c *gin.Context) *models.AgentClaims {
	value, exists := c.Get(middleware.ContextClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.AgentClaims)
	if !ok {
		return nil
	}
	return claims
}
