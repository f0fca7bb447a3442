package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edupagos/colegio-api/internal/service"
	"github.com/edupagos/colegio-api/pkg/response"
)

// DashboardHandler exposes the admin landing page summary.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats godoc
// @Summary Get dashboard summary numbers
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Reports godoc
// @Summary Reporting module placeholder
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/reports [get]
func (h *DashboardHandler) Reports(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{
		"available": false,
		"message":   "El módulo de reportes aún no está disponible. Use la exportación CSV de pagos.",
	}, nil)
}
