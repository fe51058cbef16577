package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/syncengine/backend/internal/domain/shared"
)

// AppendEventRequest represents a request to append an event to the log
type AppendEventRequest struct {
	Kind        string          `json:"kind" binding:"required"`
	Stream      string          `json:"stream" binding:"required"`
	AggregateID uuid.UUID       `json:"aggregate_id" binding:"required"`
	Payload     json.RawMessage `json:"payload"`
	Origin      string          `json:"origin" binding:"max=100"`
}

// EventResponse represents an event in API responses
type EventResponse struct {
	ID            uuid.UUID       `json:"id"`
	Kind          string          `json:"kind"`
	Stream        string          `json:"stream"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	CausationID   *uuid.UUID      `json:"causation_id,omitempty"`
	Origin        string          `json:"origin,omitempty"`
	SchemaVersion int             `json:"schema_version"`
	Delivered     bool            `json:"delivered"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ToEventResponse converts a domain event to its API representation
func ToEventResponse(e *shared.Event) EventResponse {
	return EventResponse{
		ID:            e.ID,
		Kind:          e.Kind.String(),
		Stream:        e.Stream.String(),
		AggregateID:   e.AggregateID,
		Payload:       e.Payload,
		CorrelationID: e.CorrelationID,
		CausationID:   e.CausationID,
		Origin:        e.Origin,
		SchemaVersion: e.SchemaVersion,
		Delivered:     e.Delivered,
		CreatedAt:     e.CreatedAt,
	}
}

// ReplayRequest represents a request to replay an aggregate's history
type ReplayRequest struct {
	AggregateID uuid.UUID  `json:"aggregate_id" binding:"required"`
	From        *time.Time `json:"from"`
}

// ReplayResponse reports how many events a replay redelivered
type ReplayResponse struct {
	AggregateID uuid.UUID `json:"aggregate_id"`
	Replayed    int       `json:"replayed"`
}

// StreamStatistics summarizes event log volume
type StreamStatistics struct {
	TotalEvents    int64                       `json:"total_events"`
	EventsLastHour int64                       `json:"events_last_hour"`
	ByStream       map[string]map[string]int64 `json:"by_stream"`
	CollectedAt    time.Time                   `json:"collected_at"`
}
