package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/university-portal-api/internal/middleware"
	"github.com/noah-isme/university-portal-api/internal/models"
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

// isStaff reports whether the caller holds an administrative role.
func isStaff(claims *models.JWTClaims) bool {
	switch claims.Role {
	case models.RoleAdmin, models.RoleRegistrar, models.RoleFaculty, models.RoleFinance:
		return true
	}
	return false
}
