package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edupagos/colegio-api/internal/service"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
	"github.com/edupagos/colegio-api/pkg/response"
)

// EventHandler streams entity change events to clients over SSE so portal
// views refresh only the entities that changed.
type EventHandler struct {
	events *service.EventService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(events *service.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// Stream godoc
// @Summary Subscribe to entity change events (SSE)
// @Tags Events
// @Produce text/event-stream
// @Success 200
// @Router /events [get]
func (h *EventHandler) Stream(c *gin.Context) {
	feed, err := h.events.Stream(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open event stream"))
		return
	}
	if feed == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "event stream is disabled"))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	c.Stream(func(w io.Writer) bool {
		event, ok := <-feed
		if !ok {
			return false
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return true
		}
		c.SSEvent("change", string(payload))
		return true
	})
}
