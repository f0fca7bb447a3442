package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edupagos/colegio-api/internal/ledger"
	"github.com/edupagos/colegio-api/internal/models"
	"github.com/edupagos/colegio-api/internal/service"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
	"github.com/edupagos/colegio-api/pkg/export"
	"github.com/edupagos/colegio-api/pkg/response"
)

// PaymentHandler wires the payment engine to HTTP routes.
type PaymentHandler struct {
	payments  *service.PaymentService
	guardians *service.GuardianService
	dashboard *service.DashboardService
	receipts  *export.ReceiptRenderer
	csv       *export.CSVExporter
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService, guardians *service.GuardianService, dashboard *service.DashboardService, receipts *export.ReceiptRenderer) *PaymentHandler {
	return &PaymentHandler{
		payments:  payments,
		guardians: guardians,
		dashboard: dashboard,
		receipts:  receipts,
		csv:       export.NewCSVExporter(),
	}
}

// Register godoc
// @Summary Apply a payment across selected debts
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.RegisterPaymentRequest true "Settlement payload"
// @Success 201 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Register(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RegisterPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}
	result, err := h.payments.Register(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dashboard.Invalidate(c.Request.Context())
	response.Created(c, result)
}

// Cancel godoc
// @Summary Cancel a payment and restore the debt balance
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/cancel [post]
func (h *PaymentHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	payment, err := h.payments.Cancel(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dashboard.Invalidate(c.Request.Context())
	response.JSON(c, http.StatusOK, payment, nil)
}

// List godoc
// @Summary List payment history
// @Tags Payments
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param status query string false "Filter by status (active,cancelled)"
// @Param date_from query string false "Payments on or after this date (YYYY-MM-DD)"
// @Param date_to query string false "Payments on or before this date (YYYY-MM-DD)"
// @Param search query string false "Search by student or receipt number"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	filter := h.filterFromQuery(c)

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

	payments, pagination, err := h.payments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination)
}

func (h *PaymentHandler) filterFromQuery(c *gin.Context) models.PaymentFilter {
	filter := models.PaymentFilter{
		StudentID: c.Query("student_id"),
		DateFrom:  c.Query("date_from"),
		DateTo:    c.Query("date_to"),
		Search:    strings.TrimSpace(c.Query("search")),
	}
	switch models.PaymentStatus(c.Query("status")) {
	case models.PaymentStatusActive:
		status := models.PaymentStatusActive
		filter.Status = &status
	case models.PaymentStatusCancelled:
		status := models.PaymentStatusCancelled
		filter.Status = &status
	}
	filter.Page, filter.PageSize = pageQuery(c)
	return filter
}

// Get godoc
// @Summary Get payment detail
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.payments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !authorizeStudentScope(c, h.guardians, payment.StudentID) {
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Receipt godoc
// @Summary Download the PDF receipt of a settlement
// @Tags Payments
// @Produce application/pdf
// @Param receiptNumber path string true "Receipt number"
// @Success 200 {file} binary
// @Router /payments/receipts/{receiptNumber} [get]
func (h *PaymentHandler) Receipt(c *gin.Context) {
	receiptNumber := c.Param("receiptNumber")
	receipt, err := h.payments.Receipt(c.Request.Context(), receiptNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !authorizeStudentScope(c, h.guardians, receipt.StudentID) {
		return
	}
	pdf, err := h.receipts.Render(*receipt)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", receiptNumber))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// ExportCSV godoc
// @Summary Export payment history as CSV
// @Tags Payments
// @Produce text/csv
// @Param student_id query string false "Filter by student"
// @Param date_from query string false "Payments on or after this date (YYYY-MM-DD)"
// @Param date_to query string false "Payments on or before this date (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Router /payments/export [get]
func (h *PaymentHandler) ExportCSV(c *gin.Context) {
	filter := h.filterFromQuery(c)
	filter.Page = 1
	filter.PageSize = 200

	var payments []models.PaymentDetail
	for {
		page, _, err := h.payments.List(c.Request.Context(), filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		payments = append(payments, page...)
		if len(page) < filter.PageSize {
			break
		}
		filter.Page++
	}

	dataset := export.Dataset{
		Headers: []string{"Fecha", "Recibo", "Estudiante", "Concepto", "Importe", "Estado"},
	}
	for _, p := range payments {
		concept := ""
		if p.ConceptName != nil {
			concept = *p.ConceptName
		}
		receipt := ""
		if p.ReceiptNumber != nil {
			receipt = *p.ReceiptNumber
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Fecha":      p.PaymentDate,
			"Recibo":     receipt,
			"Estudiante": strings.TrimSpace(p.StudentFirstName + " " + p.StudentLastName),
			"Concepto":   concept,
			"Importe":    ledger.FormatGs(p.Amount),
			"Estado":     string(p.Status),
		})
	}

	data, err := h.csv.Render(dataset)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv"))
		return
	}
	c.Header("Content-Disposition", "attachment; filename=payments.csv")
	c.Data(http.StatusOK, "text/csv", data)
}
