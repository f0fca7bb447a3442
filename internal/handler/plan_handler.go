package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edupagos/colegio-api/internal/models"
	"github.com/edupagos/colegio-api/internal/service"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
	"github.com/edupagos/colegio-api/pkg/response"
)

// PlanHandler wires payment plan operations to HTTP routes.
type PlanHandler struct {
	plans *service.PlanService
}

// NewPlanHandler constructs a PlanHandler.
func NewPlanHandler(plans *service.PlanService) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// List godoc
// @Summary List payment plans
// @Tags Plans
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param status query string false "Filter by status (active,completed,cancelled)"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payment-plans [get]
func (h *PlanHandler) List(c *gin.Context) {
	filter := models.PlanFilter{StudentID: c.Query("student_id")}
	switch models.PlanStatus(c.Query("status")) {
	case models.PlanStatusActive:
		status := models.PlanStatusActive
		filter.Status = &status
	case models.PlanStatusCompleted:
		status := models.PlanStatusCompleted
		filter.Status = &status
	case models.PlanStatusCancelled:
		status := models.PlanStatusCancelled
		filter.Status = &status
	}
	filter.Page, filter.PageSize = pageQuery(c)

	plans, pagination, err := h.plans.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, pagination)
}

// Get godoc
// @Summary Get plan detail
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /payment-plans/{id} [get]
func (h *PlanHandler) Get(c *gin.Context) {
	plan, err := h.plans.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Create godoc
// @Summary Generate a payment plan with its installments
// @Tags Plans
// @Accept json
// @Produce json
// @Param payload body service.CreatePlanRequest true "Plan payload"
// @Success 201 {object} response.Envelope
// @Router /payment-plans [post]
func (h *PlanHandler) Create(c *gin.Context) {
	var req service.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid plan payload"))
		return
	}
	plan, err := h.plans.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// Update godoc
// @Summary Rename a payment plan
// @Tags Plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body service.UpdatePlanRequest true "Plan payload"
// @Success 200 {object} response.Envelope
// @Router /payment-plans/{id} [put]
func (h *PlanHandler) Update(c *gin.Context) {
	var req service.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid plan payload"))
		return
	}
	plan, err := h.plans.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Delete godoc
// @Summary Delete a plan and its unpaid installments
// @Tags Plans
// @Param id path string true "Plan ID"
// @Success 204
// @Router /payment-plans/{id} [delete]
func (h *PlanHandler) Delete(c *gin.Context) {
	if err := h.plans.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
