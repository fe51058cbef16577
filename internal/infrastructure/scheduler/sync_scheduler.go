package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/syncengine/backend/internal/domain/shared"
	syncdomain "github.com/syncengine/backend/internal/domain/sync"
)

// Config holds sync scheduler tuning
type Config struct {
	// Enabled gates the background tick loop
	Enabled bool
	// TickInterval is how often queued operations are examined
	TickInterval time.Duration
	// BatchLimit bounds how many operations one tick attempts
	BatchLimit int
	// BaseBackoff is the first retry delay; doubles per attempt
	BaseBackoff time.Duration
	// MaxBackoff caps the retry delay
	MaxBackoff time.Duration
}

// DefaultConfig returns the default scheduler tuning
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		TickInterval: time.Second,
		BatchLimit:   25,
		BaseBackoff:  syncdomain.DefaultBaseBackoff,
		MaxBackoff:   syncdomain.DefaultMaxBackoff,
	}
}

// SyncScheduler drives queued operations to completion. One mutex serializes
// all attempts, whether they come from the tick or from the immediate path,
// so per-(product, channel) ordering holds without row locking.
type SyncScheduler struct {
	ops      syncdomain.OperationStore
	channels syncdomain.ChannelRepository
	adapters *syncdomain.AdapterRegistry
	config   Config
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncScheduler creates a scheduler over the operation and channel stores
func NewSyncScheduler(
	ops syncdomain.OperationStore,
	channels syncdomain.ChannelRepository,
	adapters *syncdomain.AdapterRegistry,
	config Config,
	logger *zap.Logger,
) *SyncScheduler {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultConfig().TickInterval
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = DefaultConfig().BatchLimit
	}
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = DefaultConfig().BaseBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = DefaultConfig().MaxBackoff
	}
	return &SyncScheduler{
		ops:      ops,
		channels: channels,
		adapters: adapters,
		config:   config,
		logger:   logger,
	}
}

// Start begins the background tick loop
func (s *SyncScheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("sync scheduler disabled")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.tickLoop(ctx)

	s.logger.Info("sync scheduler started",
		zap.Duration("tick_interval", s.config.TickInterval),
		zap.Int("batch_limit", s.config.BatchLimit),
	)
	return nil
}

// Stop gracefully stops the tick loop
func (s *SyncScheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("sync scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SyncScheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick attempts one batch of due operations. Exposed for tests and manual
// draining; the background loop calls it on every interval.
func (s *SyncScheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queued, err := s.ops.NonTerminal(ctx)
	if err != nil {
		s.logger.Error("failed to load queued operations", zap.Error(err))
		return
	}

	due := syncdomain.NextAttemptable(queued, time.Now(), s.config.BatchLimit)
	for _, op := range due {
		s.attempt(ctx, op)
	}
}

// AttemptNow tries an operation ahead of the tick, for realtime channels and
// urgent changes. The attempt is skipped when an older operation for the same
// (product, channel) pair is still outstanding; the tick delivers it in order
// instead.
func (s *SyncScheduler) AttemptNow(ctx context.Context, op *syncdomain.Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queued, err := s.ops.NonTerminalByChannel(ctx, op.ChannelID)
	if err != nil {
		s.logger.Error("failed to load channel queue", zap.Error(err))
		return
	}
	if !syncdomain.HeadOfLine(queued, op) {
		s.logger.Debug("immediate attempt deferred, older operation outstanding",
			zap.String("operation_id", op.ID.String()),
			zap.String("product_id", op.ProductID.String()),
		)
		return
	}

	s.attempt(ctx, op)
}

// FailQueuedForChannel terminally fails a channel's outstanding operations.
// Called when a channel is deactivated: queued work is failed and reported,
// never silently dropped.
func (s *SyncScheduler) FailQueuedForChannel(ctx context.Context, channelID uuid.UUID, reason string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failQueuedLocked(ctx, channelID, reason)
}

func (s *SyncScheduler) failQueuedLocked(ctx context.Context, channelID uuid.UUID, reason string) int {
	queued, err := s.ops.NonTerminalByChannel(ctx, channelID)
	if err != nil {
		s.logger.Error("failed to load channel queue", zap.Error(err))
		return 0
	}

	failed := 0
	for _, op := range queued {
		op.FailTerminal(reason)
		if err := s.ops.Update(ctx, op); err != nil {
			s.logger.Error("failed to persist failed operation",
				zap.String("operation_id", op.ID.String()),
				zap.Error(err),
			)
			continue
		}
		failed++
	}

	if failed > 0 {
		s.logger.Warn("failed queued operations for channel",
			zap.String("channel_id", channelID.String()),
			zap.Int("count", failed),
		)
	}
	return failed
}

// attempt runs one delivery attempt. Caller holds the mutex.
func (s *SyncScheduler) attempt(ctx context.Context, op *syncdomain.Operation) {
	channel, err := s.channels.FindByID(ctx, op.ChannelID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			op.FailTerminal(syncdomain.ErrChannelDeactivated.Message)
			s.persistOp(ctx, op)
			return
		}
		s.logger.Error("failed to load channel", zap.Error(err))
		return
	}

	if !channel.IsActive() {
		op.FailTerminal(syncdomain.ErrChannelDeactivated.Message)
		s.persistOp(ctx, op)
		return
	}

	adapter, err := s.adapters.Lookup(channel.Kind)
	if err != nil {
		op.FailTerminal(err.Error())
		s.persistOp(ctx, op)
		return
	}

	if err := op.Start(); err != nil {
		s.logger.Warn("operation not attemptable",
			zap.String("operation_id", op.ID.String()),
			zap.String("status", string(op.Status)),
		)
		return
	}

	channel.MarkSyncing()
	s.persistChannel(ctx, channel)

	attemptCtx, cancel := context.WithTimeout(ctx, channel.DeliveryTimeout)
	deliverErr := adapter.Deliver(attemptCtx, channel, op)
	cancel()

	switch {
	case deliverErr == nil:
		op.Complete()
		channel.RecordSuccess(time.Now())
		s.persistOp(ctx, op)
		s.persistChannel(ctx, channel)
		s.logger.Debug("operation delivered",
			zap.String("operation_id", op.ID.String()),
			zap.String("channel", channel.Name),
			zap.Int("attempt", op.Attempts+1),
		)

	case shared.IsValidation(deliverErr):
		// Terminal: the payload can never be accepted, retrying is waste.
		op.FailTerminal(deliverErr.Error())
		s.persistOp(ctx, op)
		s.recordTerminalFailure(ctx, channel)
		s.logger.Warn("operation rejected by channel",
			zap.String("operation_id", op.ID.String()),
			zap.String("channel", channel.Name),
			zap.Error(deliverErr),
		)

	default:
		op.Fail(deliverErr.Error(), s.config.BaseBackoff, s.config.MaxBackoff)
		s.persistOp(ctx, op)
		if op.Status == syncdomain.OpFailed {
			s.recordTerminalFailure(ctx, channel)
			s.logger.Warn("operation exhausted retries",
				zap.String("operation_id", op.ID.String()),
				zap.String("channel", channel.Name),
				zap.Int("attempts", op.Attempts),
				zap.Error(deliverErr),
			)
		} else {
			s.logger.Debug("operation attempt failed, will retry",
				zap.String("operation_id", op.ID.String()),
				zap.String("channel", channel.Name),
				zap.Int("attempts", op.Attempts),
				zap.Timep("next_attempt_at", op.NextAttemptAt),
				zap.Error(deliverErr),
			)
		}
	}
}

// recordTerminalFailure counts a terminal failure against channel health and
// deactivates the channel past the threshold, failing its remaining queue.
func (s *SyncScheduler) recordTerminalFailure(ctx context.Context, channel *syncdomain.Channel) {
	deactivated := channel.RecordTerminalFailure()
	s.persistChannel(ctx, channel)

	if deactivated {
		s.logger.Warn("channel deactivated after consecutive failures",
			zap.String("channel_id", channel.ID.String()),
			zap.String("channel", channel.Name),
			zap.Int("consecutive_failures", channel.ConsecutiveFailures),
		)
		s.failQueuedLocked(ctx, channel.ID, syncdomain.ErrChannelDeactivated.Message)
	}
}

func (s *SyncScheduler) persistOp(ctx context.Context, op *syncdomain.Operation) {
	if err := s.ops.Update(ctx, op); err != nil {
		s.logger.Error("failed to persist operation",
			zap.String("operation_id", op.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *SyncScheduler) persistChannel(ctx context.Context, channel *syncdomain.Channel) {
	if err := s.channels.Update(ctx, channel); err != nil {
		s.logger.Error("failed to persist channel",
			zap.String("channel_id", channel.ID.String()),
			zap.Error(err),
		)
	}
}
