package sync

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/syncengine/backend/internal/domain/shared"
)

// OperationKind identifies what kind of change an operation delivers
type OperationKind string

const (
	OpInventoryUpdate OperationKind = "inventory-update"
	OpPriceChange     OperationKind = "price-change"
	OpCatalogSync     OperationKind = "catalog-sync"
	OpProductCreate   OperationKind = "product-create"
	OpProductUpdate   OperationKind = "product-update"
)

// IsValid returns true if the operation kind is known
func (k OperationKind) IsValid() bool {
	switch k {
	case OpInventoryUpdate, OpPriceChange, OpCatalogSync, OpProductCreate, OpProductUpdate:
		return true
	default:
		return false
	}
}

// String returns the string representation of OperationKind
func (k OperationKind) String() string {
	return string(k)
}

// KindForEvent maps a domain event kind to the operation kind it fans out as.
// Returns false for event kinds that do not propagate to channels.
func KindForEvent(kind shared.EventKind) (OperationKind, bool) {
	switch kind {
	case shared.KindInventoryChanged, shared.KindStockExhausted:
		return OpInventoryUpdate, true
	case shared.KindPriceUpdated:
		return OpPriceChange, true
	case shared.KindProductCreated:
		return OpProductCreate, true
	case shared.KindProductUpdated, shared.KindConflictResolved:
		return OpProductUpdate, true
	case shared.KindProductDeactivated:
		return OpCatalogSync, true
	default:
		return "", false
	}
}

// OperationStatus tracks an operation through its lifecycle. Transitions are
// monotonic except the retrying→processing loop, which is bounded by the
// owning channel's MaxRetries.
type OperationStatus string

const (
	OpPending    OperationStatus = "pending"
	OpProcessing OperationStatus = "processing"
	OpCompleted  OperationStatus = "completed"
	OpRetrying   OperationStatus = "retrying"
	OpFailed     OperationStatus = "failed"
)

// Priority controls whether an operation is attempted ahead of the tick
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Default retry backoff tuning
const (
	DefaultBaseBackoff = time.Second
	DefaultMaxBackoff  = 5 * time.Minute
)

// Operation is one unit of propagation work: deliver one change to one
// channel. Attempts strictly increases; failed and completed are terminal.
type Operation struct {
	ID            uuid.UUID       `json:"id" gorm:"primaryKey"`
	ChannelID     uuid.UUID       `json:"channel_id" gorm:"index:idx_operations_channel_status"`
	ProductID     uuid.UUID       `json:"product_id" gorm:"index"`
	Kind          OperationKind   `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	Status        OperationStatus `json:"status" gorm:"index:idx_operations_channel_status"`
	Attempts      int             `json:"attempts"`
	MaxRetries    int             `json:"max_retries"`
	LastError     string          `json:"last_error,omitempty"`
	NextAttemptAt *time.Time      `json:"next_attempt_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewOperation creates a pending operation for a channel, inheriting the
// channel's retry budget.
func NewOperation(channel *Channel, productID uuid.UUID, kind OperationKind, payload json.RawMessage) *Operation {
	now := time.Now()
	return &Operation{
		ID:         uuid.New(),
		ChannelID:  channel.ID,
		ProductID:  productID,
		Kind:       kind,
		Payload:    payload,
		Status:     OpPending,
		MaxRetries: channel.MaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Terminal returns true once the operation can never be attempted again
func (o *Operation) Terminal() bool {
	return o.Status == OpCompleted || o.Status == OpFailed
}

// AttemptableAt returns true if the operation is due for an attempt at the
// given instant (pending, or retrying with its backoff elapsed).
func (o *Operation) AttemptableAt(now time.Time) bool {
	switch o.Status {
	case OpPending:
		return true
	case OpRetrying:
		return o.NextAttemptAt == nil || !now.Before(*o.NextAttemptAt)
	default:
		return false
	}
}

// Start moves the operation into processing
func (o *Operation) Start() error {
	if o.Status != OpPending && o.Status != OpRetrying {
		return shared.ErrInvalidState
	}
	o.Status = OpProcessing
	o.UpdatedAt = time.Now()
	return nil
}

// Complete marks a successful delivery
func (o *Operation) Complete() {
	now := time.Now()
	o.Status = OpCompleted
	o.CompletedAt = &now
	o.LastError = ""
	o.NextAttemptAt = nil
	o.UpdatedAt = now
}

// Fail records one failed attempt. The operation moves to retrying with an
// exponential backoff until the channel's retry budget is exhausted, then to
// failed, which is terminal, with ErrExhaustedRetries prefixed onto the
// last error.
func (o *Operation) Fail(reason string, base, cap time.Duration) {
	o.Attempts++
	o.LastError = reason
	o.UpdatedAt = time.Now()

	if o.Attempts >= o.MaxRetries {
		o.Status = OpFailed
		o.LastError = ErrExhaustedRetries.Message + ": " + reason
		o.NextAttemptAt = nil
		return
	}

	o.Status = OpRetrying
	next := time.Now().Add(Backoff(o.Attempts, base, cap))
	o.NextAttemptAt = &next
}

// FailTerminal fails the operation immediately, bypassing retries. Used for
// validation failures and channel deactivation.
func (o *Operation) FailTerminal(reason string) {
	o.Attempts++
	o.Status = OpFailed
	o.LastError = reason
	o.NextAttemptAt = nil
	o.UpdatedAt = time.Now()
}

// Backoff computes the delay before retry attempt n: 2^n * base, capped.
func Backoff(attempts int, base, cap time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultBaseBackoff
	}
	if cap <= 0 {
		cap = DefaultMaxBackoff
	}
	// Shift overflow guard: beyond 30 doublings we are past any sane cap.
	if attempts > 30 {
		return cap
	}
	d := base * time.Duration(1<<uint(attempts))
	if d > cap {
		return cap
	}
	return d
}
