package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/oculohealth/rota-api/internal/middleware"
	"github.com/oculohealth/rota-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// staffIDFromContext returns the roster member id linked to the caller, or
// empty when the account has none.
func staffIDFromContext(c *gin.Context) string {
	claims := claimsFromContext(c)
	if claims == nil {
		return ""
	}
	return claims.StaffID
}
