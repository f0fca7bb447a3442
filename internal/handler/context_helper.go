package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edupagos/colegio-api/internal/middleware"
	"github.com/edupagos/colegio-api/internal/models"
	"github.com/edupagos/colegio-api/internal/service"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
	"github.com/edupagos/colegio-api/pkg/response"
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

// authorizeStudentScope guards student-scoped reads. Parents only pass for
// students they are linked to; staff always pass. Writes an error response
// and returns false when access is denied.
func authorizeStudentScope(c *gin.Context, guardians *service.GuardianService, studentID string) bool {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return false
	}
	allowed, err := guardians.CanAccessStudent(c.Request.Context(), claims.UserID, claims.Role, studentID)
	if err != nil {
		response.Error(c, err)
		return false
	}
	if !allowed {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "student is not linked to this account"))
		return false
	}
	return true
}

func boolQuery(c *gin.Context, name string) *bool {
	switch strings.ToLower(c.Query(name)) {
	case "true":
		val := true
		return &val
	case "false":
		val := false
		return &val
	}
	return nil
}

func pageQuery(c *gin.Context) (page, size int) {
	if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		page = p
	}
	if s, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		size = s
	}
	return page, size
}
