package handler

import (
	"github.com/gin-gonic/gin"

	eventapp "github.com/syncengine/backend/internal/application/event"
	"github.com/syncengine/backend/internal/interfaces/http/middleware"
)

// EventHandler handles event log API endpoints
type EventHandler struct {
	BaseHandler
	logService *eventapp.LogService
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(logService *eventapp.LogService) *EventHandler {
	return &EventHandler{logService: logService}
}

// Append appends an external event to the log
func (h *EventHandler) Append(c *gin.Context) {
	var req eventapp.AppendEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	event, err := h.logService.Append(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, event)
}

// History returns an aggregate's events in append order
func (h *EventHandler) History(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid aggregate ID")
		return
	}

	limit := queryInt(c, "limit", 100)
	events, err := h.logService.History(c.Request.Context(), id, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, events)
}

// Replay redelivers an aggregate's history to current subscribers
func (h *EventHandler) Replay(c *gin.Context) {
	var req eventapp.ReplayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.logService.Replay(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Statistics summarizes event log volume by stream and kind
func (h *EventHandler) Statistics(c *gin.Context) {
	stats, err := h.logService.Statistics(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
