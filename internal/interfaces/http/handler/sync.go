package handler

import (
	"github.com/gin-gonic/gin"

	syncapp "github.com/syncengine/backend/internal/application/sync"
	"github.com/syncengine/backend/internal/interfaces/http/middleware"
)

// SyncHandler handles sync operation and metrics endpoints
type SyncHandler struct {
	BaseHandler
	syncService *syncapp.Service
	metrics     *syncapp.MetricsCollector
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncService *syncapp.Service, metrics *syncapp.MetricsCollector) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		metrics:     metrics,
	}
}

// Schedule queues a sync operation
func (h *SyncHandler) Schedule(c *gin.Context) {
	var req syncapp.ScheduleSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	op, err := h.syncService.ScheduleSync(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, op)
}

// GetOperation retrieves a sync operation by ID
func (h *SyncHandler) GetOperation(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid operation ID")
		return
	}

	op, err := h.syncService.GetOperation(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, op)
}

// ProductStatus reports a product's recent propagation work
func (h *SyncHandler) ProductStatus(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid product ID")
		return
	}

	limit := queryInt(c, "limit", 20)
	status, err := h.syncService.Status(c.Request.Context(), id, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// Metrics returns a point-in-time propagation health snapshot
func (h *SyncHandler) Metrics(c *gin.Context) {
	snapshot, err := h.metrics.Collect(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snapshot)
}
