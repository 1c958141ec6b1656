package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sia-krs-api/internal/middleware"
	"github.com/noah-isme/sia-krs-api/internal/models"
	appErrors "github.com/noah-isme/sia-krs-api/pkg/errors"
	"github.com/noah-isme/sia-krs-api/pkg/response"
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

// studentFromContext writes the error response itself when the principal is not a bound student.
func studentFromContext(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	if claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "token is not bound to a student"))
		return "", false
	}
	return claims.StudentID, true
}

func actorFromContext(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return claims.UserID, true
}
