package handler

import (
	"github.com/gin-gonic/gin"

	syncapp "github.com/syncengine/backend/internal/application/sync"
	"github.com/syncengine/backend/internal/interfaces/http/middleware"
)

// ChannelHandler handles channel registration and lifecycle endpoints
type ChannelHandler struct {
	BaseHandler
	syncService *syncapp.Service
}

// NewChannelHandler creates a new ChannelHandler
func NewChannelHandler(syncService *syncapp.Service) *ChannelHandler {
	return &ChannelHandler{syncService: syncService}
}

// Register registers a new channel
func (h *ChannelHandler) Register(c *gin.Context) {
	var req syncapp.RegisterChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	channel, err := h.syncService.RegisterChannel(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, channel)
}

// List lists all registered channels
func (h *ChannelHandler) List(c *gin.Context) {
	channels, err := h.syncService.ListChannels(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, channels)
}

// GetByID retrieves a channel by ID
func (h *ChannelHandler) GetByID(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid channel ID")
		return
	}

	channel, err := h.syncService.GetChannel(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, channel)
}

// Activate returns a channel to active service
func (h *ChannelHandler) Activate(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid channel ID")
		return
	}

	channel, err := h.syncService.ActivateChannel(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, channel)
}

// Deactivate takes a channel out of service and fails its queued work
func (h *ChannelHandler) Deactivate(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid channel ID")
		return
	}

	channel, err := h.syncService.DeactivateChannel(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, channel)
}
