package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sia-krs-api/internal/models"
	appErrors "github.com/noah-isme/sia-krs-api/pkg/errors"
	"github.com/noah-isme/sia-krs-api/pkg/response"
)

// RequireRoles only lets principals holding one of roles through.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := principal(c)
		if !ok {
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireStudent admits only student principals bound to a student record.
func RequireStudent() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := principal(c)
		if !ok {
			return
		}
		if claims.Role != models.RoleStudent {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		if claims.StudentID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "token is not bound to a student"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func principal(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		response.Error(c, appErrors.ErrUnauthorized)
		c.Abort()
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok || claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		c.Abort()
		return nil, false
	}
	return claims, true
}
