package sync

import (
	"time"

	"github.com/google/uuid"
)

// ChannelMetrics is one channel's slice of a propagation health snapshot.
// Every registered channel gets an entry, including channels with no
// operations yet.
type ChannelMetrics struct {
	ChannelID   uuid.UUID `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	// TotalOperations counts every operation ever queued for the channel
	TotalOperations int64 `json:"total_operations"`
	// FailedOperations counts terminally failed operations
	FailedOperations int64 `json:"failed_operations"`
	// SuccessRate is completed / (completed + failed), in [0, 1]
	SuccessRate float64 `json:"success_rate"`
	// AverageCompletionTime is the mean queue-to-completion latency over
	// the channel's recently completed operations
	AverageCompletionTime time.Duration `json:"average_completion_time"`
	// LastSuccessfulSync is the channel's most recent completed delivery
	LastSuccessfulSync *time.Time `json:"last_successful_sync,omitempty"`
	// CurrentBacklog counts pending, processing and retrying operations
	CurrentBacklog int64 `json:"current_backlog"`
}

// SyncMetrics is a point-in-time snapshot of propagation health
type SyncMetrics struct {
	// OperationsByStatus counts operations per lifecycle state
	OperationsByStatus map[OperationStatus]int64 `json:"operations_by_status"`
	// ActiveByChannel counts non-terminal operations per channel
	ActiveByChannel map[string]int64 `json:"active_by_channel"`
	// Channels breaks the snapshot down per registered channel
	Channels []ChannelMetrics `json:"channels"`
	// EventsAppended is the total number of events in the log
	EventsAppended int64 `json:"events_appended"`
	// EventsLastHour counts events appended in the trailing hour
	EventsLastHour int64 `json:"events_last_hour"`
	// OpenConflicts counts unresolved conflict records
	OpenConflicts int64 `json:"open_conflicts"`
	// ResolvedConflicts counts archived conflict records
	ResolvedConflicts int64 `json:"resolved_conflicts"`
	// AverageCompletionTime is the mean queue-to-completion latency over
	// recently completed operations
	AverageCompletionTime time.Duration `json:"average_completion_time"`
	// SuccessRate is completed / (completed + failed), in [0, 1].
	// Zero when nothing terminal exists yet.
	SuccessRate float64 `json:"success_rate"`
	// CollectedAt is when this snapshot was taken
	CollectedAt time.Time `json:"collected_at"`
}

// ComputeSuccessRate derives the terminal success ratio
func ComputeSuccessRate(completed, failed int64) float64 {
	total := completed + failed
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total)
}
