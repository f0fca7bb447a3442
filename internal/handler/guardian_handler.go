package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edupagos/colegio-api/internal/service"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
	"github.com/edupagos/colegio-api/pkg/response"
)

// GuardianHandler wires guardian links to HTTP routes.
type GuardianHandler struct {
	guardians *service.GuardianService
}

// NewGuardianHandler constructs a GuardianHandler.
func NewGuardianHandler(guardians *service.GuardianService) *GuardianHandler {
	return &GuardianHandler{guardians: guardians}
}

// Link godoc
// @Summary Link a guardian to a student
// @Tags Guardians
// @Accept json
// @Produce json
// @Param payload body service.LinkGuardianRequest true "Guardian link payload"
// @Success 201 {object} response.Envelope
// @Router /guardians [post]
func (h *GuardianHandler) Link(c *gin.Context) {
	var req service.LinkGuardianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid guardian payload"))
		return
	}
	link, err := h.guardians.Link(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// ListByStudent godoc
// @Summary List guardians of a student
// @Tags Guardians
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/guardians [get]
func (h *GuardianHandler) ListByStudent(c *gin.Context) {
	guardians, err := h.guardians.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, guardians, nil)
}

// MyStudents godoc
// @Summary List students linked to the authenticated guardian
// @Tags Guardians
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/students [get]
func (h *GuardianHandler) MyStudents(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	students, err := h.guardians.MyStudents(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// Unlink godoc
// @Summary Remove a guardian link
// @Tags Guardians
// @Param id path string true "Guardian link ID"
// @Success 204
// @Router /guardians/{id} [delete]
func (h *GuardianHandler) Unlink(c *gin.Context) {
	if err := h.guardians.Unlink(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
