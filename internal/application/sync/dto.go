package sync

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	syncdomain "github.com/syncengine/backend/internal/domain/sync"
)

// RegisterChannelRequest represents a channel registration
type RegisterChannelRequest struct {
	Name            string `json:"name" binding:"required,min=1,max=100"`
	Kind            string `json:"kind" binding:"required"`
	Endpoint        string `json:"endpoint" binding:"required,url"`
	Credentials     string `json:"credentials"`
	Inventory       bool   `json:"inventory"`
	Pricing         bool   `json:"pricing"`
	Catalog         bool   `json:"catalog"`
	Orders          bool   `json:"orders"`
	DeliveryMode    string `json:"delivery_mode" binding:"omitempty,oneof=realtime batched"`
	BatchSize       int    `json:"batch_size" binding:"omitempty,min=1,max=1000"`
	MaxRetries      int    `json:"max_retries" binding:"omitempty,min=1,max=20"`
	DeliveryTimeout int    `json:"delivery_timeout_seconds" binding:"omitempty,min=1,max=300"`
	Priority        int    `json:"priority" binding:"omitempty,min=1,max=100"`
}

// ScheduleSyncRequest queues one change for delivery to one channel. Kind
// defaults to a full catalog sync and priority to normal.
type ScheduleSyncRequest struct {
	ProductID uuid.UUID       `json:"product_id" binding:"required"`
	ChannelID uuid.UUID       `json:"channel_id" binding:"required"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Priority  string          `json:"priority" binding:"omitempty,oneof=normal high"`
}

// ChannelResponse represents a channel in API responses
type ChannelResponse struct {
	ID                  uuid.UUID               `json:"id"`
	Name                string                  `json:"name"`
	Kind                string                  `json:"kind"`
	Endpoint            string                  `json:"endpoint"`
	Capabilities        syncdomain.Capabilities `json:"capabilities"`
	DeliveryMode        string                  `json:"delivery_mode"`
	BatchSize           int                     `json:"batch_size"`
	MaxRetries          int                     `json:"max_retries"`
	Priority            int                     `json:"priority"`
	Status              string                  `json:"status"`
	ConsecutiveFailures int                     `json:"consecutive_failures"`
	LastSyncedAt        *time.Time              `json:"last_synced_at,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
}

// ToChannelResponse converts a channel to its API representation
func ToChannelResponse(c *syncdomain.Channel) ChannelResponse {
	return ChannelResponse{
		ID:                  c.ID,
		Name:                c.Name,
		Kind:                string(c.Kind),
		Endpoint:            c.Endpoint,
		Capabilities:        c.Capabilities,
		DeliveryMode:        string(c.DeliveryMode),
		BatchSize:           c.BatchSize,
		MaxRetries:          c.MaxRetries,
		Priority:            c.Priority,
		Status:              string(c.Status),
		ConsecutiveFailures: c.ConsecutiveFailures,
		LastSyncedAt:        c.LastSyncedAt,
		CreatedAt:           c.CreatedAt,
	}
}

// OperationResponse represents a sync operation in API responses
type OperationResponse struct {
	ID            uuid.UUID       `json:"id"`
	ChannelID     uuid.UUID       `json:"channel_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	Kind          string          `json:"kind"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	MaxRetries    int             `json:"max_retries"`
	LastError     string          `json:"last_error,omitempty"`
	NextAttemptAt *time.Time      `json:"next_attempt_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ToOperationResponse converts an operation to its API representation
func ToOperationResponse(op *syncdomain.Operation) OperationResponse {
	return OperationResponse{
		ID:            op.ID,
		ChannelID:     op.ChannelID,
		ProductID:     op.ProductID,
		Kind:          op.Kind.String(),
		Status:        string(op.Status),
		Attempts:      op.Attempts,
		MaxRetries:    op.MaxRetries,
		LastError:     op.LastError,
		NextAttemptAt: op.NextAttemptAt,
		CompletedAt:   op.CompletedAt,
		Payload:       op.Payload,
		CreatedAt:     op.CreatedAt,
	}
}

// SyncStatusResponse summarizes a product's recent propagation work
type SyncStatusResponse struct {
	ProductID  uuid.UUID           `json:"product_id"`
	Operations []OperationResponse `json:"operations"`
}

// RecordObservationRequest reports one channel's view of a product attribute
type RecordObservationRequest struct {
	ProductID  uuid.UUID        `json:"product_id" binding:"required"`
	ChannelID  uuid.UUID        `json:"channel_id" binding:"required"`
	Attribute  string           `json:"attribute" binding:"required,oneof=inventory price content"`
	Number     *decimal.Decimal `json:"number"`
	Text       *string          `json:"text"`
	ObservedAt *time.Time       `json:"observed_at"`
}

// ResolveConflictRequest resolves an open conflict record
type ResolveConflictRequest struct {
	Policy string           `json:"policy" binding:"omitempty,oneof=manual automatic priority-based latest-wins"`
	Number *decimal.Decimal `json:"number"`
	Text   *string          `json:"text"`
}

// ObservationResponse represents one observation in API responses
type ObservationResponse struct {
	ChannelID  uuid.UUID `json:"channel_id"`
	Value      string    `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
	Priority   int       `json:"priority"`
}

// ConflictResponse represents a conflict record in API responses
type ConflictResponse struct {
	ID            uuid.UUID             `json:"id"`
	ProductID     uuid.UUID             `json:"product_id"`
	Attribute     string                `json:"attribute"`
	Policy        string                `json:"policy"`
	Status        string                `json:"status"`
	Observations  []ObservationResponse `json:"observations"`
	ResolvedValue *string               `json:"resolved_value,omitempty"`
	ResolvedAt    *time.Time            `json:"resolved_at,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// ToConflictResponse converts a conflict record to its API representation
func ToConflictResponse(r *syncdomain.ConflictRecord) ConflictResponse {
	observations := make([]ObservationResponse, len(r.Observations))
	for i, obs := range r.Observations {
		observations[i] = ObservationResponse{
			ChannelID:  obs.ChannelID,
			Value:      obs.Value.String(),
			ObservedAt: obs.ObservedAt,
			Priority:   obs.Priority,
		}
	}

	resp := ConflictResponse{
		ID:           r.ID,
		ProductID:    r.ProductID,
		Attribute:    string(r.Attribute),
		Policy:       string(r.Policy),
		Status:       string(r.Status),
		Observations: observations,
		ResolvedAt:   r.ResolvedAt,
		CreatedAt:    r.CreatedAt,
	}
	if r.ResolvedValue != nil {
		value := r.ResolvedValue.String()
		resp.ResolvedValue = &value
	}
	return resp
}
