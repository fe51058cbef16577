package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/syncengine/backend/internal/application/sync"
	syncdomain "github.com/syncengine/backend/internal/domain/sync"
	"github.com/syncengine/backend/internal/interfaces/http/middleware"
)

// ConflictHandler handles conflict detection and resolution endpoints
type ConflictHandler struct {
	BaseHandler
	conflicts *syncapp.ConflictService
}

// NewConflictHandler creates a new ConflictHandler
func NewConflictHandler(conflicts *syncapp.ConflictService) *ConflictHandler {
	return &ConflictHandler{conflicts: conflicts}
}

// RecordObservation folds one channel's view of a product attribute into
// the conflict ledger
func (h *ConflictHandler) RecordObservation(c *gin.Context) {
	var req syncapp.RecordObservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	record, err := h.conflicts.RecordObservation(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, record)
}

// List lists conflict records, optionally filtered by product, attribute
// and status query parameters
func (h *ConflictHandler) List(c *gin.Context) {
	var filter syncdomain.ConflictFilter

	if raw := c.Query("product_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid product_id filter")
			return
		}
		filter.ProductID = &id
	}
	if raw := c.Query("attribute"); raw != "" {
		attribute := syncdomain.Attribute(raw)
		if !attribute.IsValid() {
			h.BadRequest(c, "Invalid attribute filter")
			return
		}
		filter.Attribute = &attribute
	}
	if raw := c.Query("status"); raw != "" {
		status := syncdomain.ConflictStatus(raw)
		if status != syncdomain.ConflictOpen && status != syncdomain.ConflictResolved {
			h.BadRequest(c, "Invalid status filter")
			return
		}
		filter.Status = &status
	}

	records, err := h.conflicts.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, records)
}

// GetByID retrieves a conflict record by ID
func (h *ConflictHandler) GetByID(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid conflict ID")
		return
	}

	record, err := h.conflicts.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, record)
}

// Resolve resolves an open conflict record
func (h *ConflictHandler) Resolve(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid conflict ID")
		return
	}

	var req syncapp.ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	record, err := h.conflicts.Resolve(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, record)
}
