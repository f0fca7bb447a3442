package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edupagos/colegio-api/internal/models"
	"github.com/edupagos/colegio-api/internal/service"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
	"github.com/edupagos/colegio-api/pkg/response"
)

// DebtHandler wires ledger line operations to HTTP routes.
type DebtHandler struct {
	debts     *service.DebtService
	guardians *service.GuardianService
}

// NewDebtHandler constructs a DebtHandler.
func NewDebtHandler(debts *service.DebtService, guardians *service.GuardianService) *DebtHandler {
	return &DebtHandler{debts: debts, guardians: guardians}
}

// List godoc
// @Summary List debts
// @Tags Debts
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param status query string false "Comma separated statuses (pending,partial,paid)"
// @Param plan_id query string false "Filter by payment plan"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /debts [get]
func (h *DebtHandler) List(c *gin.Context) {
	filter := models.DebtFilter{
		StudentID: c.Query("student_id"),
		PlanID:    c.Query("plan_id"),
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			switch models.DebtStatus(strings.TrimSpace(part)) {
			case models.DebtStatusPending:
				filter.Statuses = append(filter.Statuses, models.DebtStatusPending)
			case models.DebtStatusPartial:
				filter.Statuses = append(filter.Statuses, models.DebtStatusPartial)
			case models.DebtStatusPaid:
				filter.Statuses = append(filter.Statuses, models.DebtStatusPaid)
			}
		}
	}
	filter.Page, filter.PageSize = pageQuery(c)

	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleParent {
		if filter.StudentID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id is required"))
			return
		}
		allowed, err := h.guardians.CanAccessStudent(c.Request.Context(), claims.UserID, claims.Role, filter.StudentID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if !allowed {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "student is not linked to this account"))
			return
		}
	}

	debts, pagination, err := h.debts.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, debts, pagination)
}

// Get godoc
// @Summary Get debt detail
// @Tags Debts
// @Produce json
// @Param id path string true "Debt ID"
// @Success 200 {object} response.Envelope
// @Router /debts/{id} [get]
func (h *DebtHandler) Get(c *gin.Context) {
	debt, err := h.debts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !authorizeStudentScope(c, h.guardians, debt.StudentID) {
		return
	}
	response.JSON(c, http.StatusOK, debt, nil)
}

// Create godoc
// @Summary Assign a debt to a student
// @Tags Debts
// @Accept json
// @Produce json
// @Param payload body service.CreateDebtRequest true "Debt payload"
// @Success 201 {object} response.Envelope
// @Router /debts [post]
func (h *DebtHandler) Create(c *gin.Context) {
	var req service.CreateDebtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid debt payload"))
		return
	}
	debt, err := h.debts.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, debt)
}

// ApplyLateFee godoc
// @Summary Apply a late fee to an overdue debt
// @Tags Debts
// @Accept json
// @Produce json
// @Param id path string true "Debt ID"
// @Param payload body service.LateFeeRequest true "Late fee payload"
// @Success 200 {object} response.Envelope
// @Router /debts/{id}/late-fee [post]
func (h *DebtHandler) ApplyLateFee(c *gin.Context) {
	var req service.LateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid late fee payload"))
		return
	}
	debt, err := h.debts.ApplyLateFee(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, debt, nil)
}

// Delete godoc
// @Summary Delete a debt without payment history
// @Tags Debts
// @Param id path string true "Debt ID"
// @Success 204
// @Router /debts/{id} [delete]
func (h *DebtHandler) Delete(c *gin.Context) {
	if err := h.debts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
