package sync

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/syncengine/backend/internal/domain/shared"
	syncdomain "github.com/syncengine/backend/internal/domain/sync"
)

// MetricsCollector assembles propagation health snapshots from the
// operation, event and conflict stores
type MetricsCollector struct {
	ops       syncdomain.OperationStore
	channels  syncdomain.ChannelRepository
	events    shared.EventStore
	conflicts syncdomain.ConflictRepository
	logger    *zap.Logger
}

// NewMetricsCollector creates a new MetricsCollector
func NewMetricsCollector(
	ops syncdomain.OperationStore,
	channels syncdomain.ChannelRepository,
	events shared.EventStore,
	conflicts syncdomain.ConflictRepository,
	logger *zap.Logger,
) *MetricsCollector {
	return &MetricsCollector{
		ops:       ops,
		channels:  channels,
		events:    events,
		conflicts: conflicts,
		logger:    logger,
	}
}

// Collect takes a point-in-time snapshot of sync health
func (c *MetricsCollector) Collect(ctx context.Context) (*syncdomain.SyncMetrics, error) {
	now := time.Now()

	byStatus, err := c.ops.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	activeByChannel, err := c.activeByChannelName(ctx)
	if err != nil {
		return nil, err
	}

	byStreamKind, err := c.events.CountByStreamKind(ctx)
	if err != nil {
		return nil, err
	}
	var totalEvents int64
	for _, kinds := range byStreamKind {
		for _, n := range kinds {
			totalEvents += n
		}
	}

	lastHour, err := c.events.CountSince(ctx, now.Add(-time.Hour))
	if err != nil {
		return nil, err
	}

	conflictCounts, err := c.conflicts.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	completed, err := c.ops.CompletedSince(ctx, now.Add(-time.Hour))
	if err != nil {
		return nil, err
	}

	perChannel, err := c.channelMetrics(ctx, completed)
	if err != nil {
		return nil, err
	}

	return &syncdomain.SyncMetrics{
		OperationsByStatus:    byStatus,
		ActiveByChannel:       activeByChannel,
		Channels:              perChannel,
		EventsAppended:        totalEvents,
		EventsLastHour:        lastHour,
		OpenConflicts:         conflictCounts[syncdomain.ConflictOpen],
		ResolvedConflicts:     conflictCounts[syncdomain.ConflictResolved],
		AverageCompletionTime: meanCompletionTime(completed),
		SuccessRate: syncdomain.ComputeSuccessRate(
			byStatus[syncdomain.OpCompleted],
			byStatus[syncdomain.OpFailed],
		),
		CollectedAt: now,
	}, nil
}

// activeByChannelName keys the outstanding-operation counts by channel
// name so the snapshot reads without ID lookups. Channels that were
// deleted out from under their operations fall back to the raw ID.
func (c *MetricsCollector) activeByChannelName(ctx context.Context) (map[string]int64, error) {
	counts, err := c.ops.CountActiveByChannel(ctx)
	if err != nil {
		return nil, err
	}

	all, err := c.channels.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(all))
	for _, ch := range all {
		names[ch.ID.String()] = ch.Name
	}

	result := make(map[string]int64, len(counts))
	for id, n := range counts {
		key := id.String()
		if name, ok := names[key]; ok {
			key = name
		}
		result[key] = n
	}
	return result, nil
}

// channelMetrics breaks the snapshot down per registered channel. Channels
// without operations still get an entry so the endpoint reads as a roster.
func (c *MetricsCollector) channelMetrics(ctx context.Context, completed []*syncdomain.Operation) ([]syncdomain.ChannelMetrics, error) {
	counts, err := c.ops.CountByChannelAndStatus(ctx)
	if err != nil {
		return nil, err
	}

	all, err := c.channels.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	recent := make(map[uuid.UUID][]*syncdomain.Operation)
	for _, op := range completed {
		recent[op.ChannelID] = append(recent[op.ChannelID], op)
	}

	result := make([]syncdomain.ChannelMetrics, 0, len(all))
	for _, ch := range all {
		byStatus := counts[ch.ID]
		var total int64
		for _, n := range byStatus {
			total += n
		}
		backlog := byStatus[syncdomain.OpPending] +
			byStatus[syncdomain.OpProcessing] +
			byStatus[syncdomain.OpRetrying]

		result = append(result, syncdomain.ChannelMetrics{
			ChannelID:        ch.ID,
			ChannelName:      ch.Name,
			TotalOperations:  total,
			FailedOperations: byStatus[syncdomain.OpFailed],
			SuccessRate: syncdomain.ComputeSuccessRate(
				byStatus[syncdomain.OpCompleted],
				byStatus[syncdomain.OpFailed],
			),
			AverageCompletionTime: meanCompletionTime(recent[ch.ID]),
			LastSuccessfulSync:    ch.LastSyncedAt,
			CurrentBacklog:        backlog,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ChannelName < result[j].ChannelName
	})
	return result, nil
}

// meanCompletionTime is the mean queue-to-completion latency of the given
// completed operations
func meanCompletionTime(completed []*syncdomain.Operation) time.Duration {
	if len(completed) == 0 {
		return 0
	}

	var total time.Duration
	for _, op := range completed {
		if op.CompletedAt == nil {
			continue
		}
		total += op.CompletedAt.Sub(op.CreatedAt)
	}
	return total / time.Duration(len(completed))
}
