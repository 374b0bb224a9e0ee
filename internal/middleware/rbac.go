package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/hcsd/permit-clearance-api/internal/authz"
	"github.com/hcsd/permit-clearance-api/internal/models"
	appErrors "github.com/hcsd/permit-clearance-api/pkg/errors"
	"github.com/hcsd/permit-clearance-api/pkg/response"
)

// RequireCapability gates a route on one of the workflow capabilities. The
// services re-check the capability per action; this cuts obviously
// unauthorized requests off at the router.
func RequireCapability(gate *authz.Gate, cap authz.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		role, ok := authz.ResolveRole(string(claims.Role))
		if !ok || !gate.Allows(role, cap) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireRoles gates a route on an explicit role list, superadmin always
// passing.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if claims.Role == models.RoleSuperAdmin {
			c.Next()
			return
		}
		role, ok := authz.ResolveRole(string(claims.Role))
		if !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		if _, ok := allowed[role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}
