package event

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/syncengine/backend/internal/domain/shared"
)

// LogService exposes the event log to the API surface: appending external
// events, inspecting history and statistics, and triggering replays.
type LogService struct {
	log   shared.EventLog
	store shared.EventStore
}

// NewLogService creates a new LogService
func NewLogService(log shared.EventLog, store shared.EventStore) *LogService {
	return &LogService{
		log:   log,
		store: store,
	}
}

// Append validates and appends an externally submitted event
func (s *LogService) Append(ctx context.Context, req AppendEventRequest) (*EventResponse, error) {
	kind := shared.EventKind(req.Kind)
	stream := shared.Stream(req.Stream)

	event := shared.NewEvent(kind, stream, req.AggregateID, req.Payload)
	if req.Origin != "" {
		event.WithOrigin(req.Origin)
	}

	if _, err := s.log.Append(ctx, event); err != nil {
		return nil, err
	}

	resp := ToEventResponse(event)
	return &resp, nil
}

// History returns an aggregate's events, newest first
func (s *LogService) History(ctx context.Context, aggregateID uuid.UUID, limit int) ([]EventResponse, error) {
	events, err := s.store.History(ctx, aggregateID, limit)
	if err != nil {
		return nil, err
	}

	responses := make([]EventResponse, len(events))
	for i, e := range events {
		responses[i] = ToEventResponse(e)
	}
	return responses, nil
}

// Replay redelivers an aggregate's history to current consumers
func (s *LogService) Replay(ctx context.Context, req ReplayRequest) (*ReplayResponse, error) {
	replayed, err := s.log.Replay(ctx, req.AggregateID, req.From)
	if err != nil {
		return nil, err
	}
	return &ReplayResponse{
		AggregateID: req.AggregateID,
		Replayed:    replayed,
	}, nil
}

// Statistics summarizes event log volume per stream and kind
func (s *LogService) Statistics(ctx context.Context) (*StreamStatistics, error) {
	byStream, err := s.store.CountByStreamKind(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	lastHour, err := s.store.CountSince(ctx, now.Add(-time.Hour))
	if err != nil {
		return nil, err
	}

	stats := &StreamStatistics{
		ByStream:       make(map[string]map[string]int64, len(byStream)),
		EventsLastHour: lastHour,
		CollectedAt:    now,
	}
	for stream, kinds := range byStream {
		streamKey := stream.String()
		stats.ByStream[streamKey] = make(map[string]int64, len(kinds))
		for kind, count := range kinds {
			stats.ByStream[streamKey][kind.String()] = count
			stats.TotalEvents += count
		}
	}
	return stats, nil
}
