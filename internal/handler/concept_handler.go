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

// ConceptHandler wires the debt concept catalog to HTTP routes.
type ConceptHandler struct {
	concepts *service.ConceptService
}

// NewConceptHandler constructs a ConceptHandler.
func NewConceptHandler(concepts *service.ConceptService) *ConceptHandler {
	return &ConceptHandler{concepts: concepts}
}

// List godoc
// @Summary List debt concepts
// @Tags Concepts
// @Produce json
// @Param search query string false "Search by name"
// @Param active query bool false "Filter by active status"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /concepts [get]
func (h *ConceptHandler) List(c *gin.Context) {
	filter := models.ConceptFilter{
		Search: strings.TrimSpace(c.Query("search")),
		Active: boolQuery(c, "active"),
	}
	filter.Page, filter.PageSize = pageQuery(c)

	concepts, pagination, err := h.concepts.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, concepts, pagination)
}

// Get godoc
// @Summary Get concept detail
// @Tags Concepts
// @Produce json
// @Param id path string true "Concept ID"
// @Success 200 {object} response.Envelope
// @Router /concepts/{id} [get]
func (h *ConceptHandler) Get(c *gin.Context) {
	concept, err := h.concepts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, concept, nil)
}

// Create godoc
// @Summary Create concept
// @Tags Concepts
// @Accept json
// @Produce json
// @Param payload body service.CreateConceptRequest true "Concept payload"
// @Success 201 {object} response.Envelope
// @Router /concepts [post]
func (h *ConceptHandler) Create(c *gin.Context) {
	var req service.CreateConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid concept payload"))
		return
	}
	concept, err := h.concepts.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, concept)
}

// Update godoc
// @Summary Update concept
// @Tags Concepts
// @Accept json
// @Produce json
// @Param id path string true "Concept ID"
// @Param payload body service.UpdateConceptRequest true "Concept payload"
// @Success 200 {object} response.Envelope
// @Router /concepts/{id} [put]
func (h *ConceptHandler) Update(c *gin.Context) {
	var req service.UpdateConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid concept payload"))
		return
	}
	concept, err := h.concepts.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, concept, nil)
}

// Delete godoc
// @Summary Delete concept
// @Tags Concepts
// @Param id path string true "Concept ID"
// @Success 204
// @Router /concepts/{id} [delete]
func (h *ConceptHandler) Delete(c *gin.Context) {
	if err := h.concepts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
