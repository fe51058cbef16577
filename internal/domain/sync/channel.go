package sync

import (
	"time"

	"github.com/google/uuid"

	"github.com/syncengine/backend/internal/domain/shared"
)

// ChannelKind classifies a downstream sync target
type ChannelKind string

const (
	ChannelKindMarketplace ChannelKind = "marketplace"
	ChannelKindSocial      ChannelKind = "social"
	ChannelKindOffline     ChannelKind = "offline"
	ChannelKindApp         ChannelKind = "app"
	ChannelKindWeb         ChannelKind = "web"
)

// IsValid returns true if the channel kind is known
func (k ChannelKind) IsValid() bool {
	switch k {
	case ChannelKindMarketplace, ChannelKindSocial, ChannelKindOffline, ChannelKindApp, ChannelKindWeb:
		return true
	default:
		return false
	}
}

// String returns the string representation of ChannelKind
func (k ChannelKind) String() string {
	return string(k)
}

// DeliveryMode controls whether operations are attempted immediately or
// picked up by the next scheduling tick
type DeliveryMode string

const (
	DeliveryRealtime DeliveryMode = "realtime"
	DeliveryBatched  DeliveryMode = "batched"
)

// IsValid returns true if the delivery mode is known
func (m DeliveryMode) IsValid() bool {
	return m == DeliveryRealtime || m == DeliveryBatched
}

// ChannelStatus is the health state of a channel
type ChannelStatus string

const (
	ChannelActive   ChannelStatus = "active"
	ChannelInactive ChannelStatus = "inactive"
	ChannelErroring ChannelStatus = "erroring"
	ChannelSyncing  ChannelStatus = "syncing"
)

// Capabilities flags which change kinds a channel accepts
type Capabilities struct {
	Inventory bool `json:"inventory"`
	Pricing   bool `json:"pricing"`
	Catalog   bool `json:"catalog"`
	Orders    bool `json:"orders"`
}

// Supports returns true if the channel accepts the given operation kind
func (c Capabilities) Supports(kind OperationKind) bool {
	switch kind {
	case OpInventoryUpdate:
		return c.Inventory
	case OpPriceChange:
		return c.Pricing
	case OpCatalogSync, OpProductCreate, OpProductUpdate:
		return c.Catalog
	default:
		return false
	}
}

// Default channel tuning
const (
	DefaultMaxRetries      = 5
	DefaultBatchSize       = 50
	DefaultDeliveryTimeout = 10 * time.Second
	ErroringThreshold      = 3
	DeactivationThreshold  = 6
	DefaultChannelPriority = 1
)

// Channel is a registered downstream sync target. Channels are deactivated,
// never deleted; health bookkeeping mutates Status.
type Channel struct {
	ID                  uuid.UUID     `json:"id" gorm:"primaryKey"`
	Name                string        `json:"name"`
	Kind                ChannelKind   `json:"kind"`
	Endpoint            string        `json:"endpoint"`
	Credentials         string        `json:"-"`
	Capabilities        Capabilities  `json:"capabilities" gorm:"embedded;embeddedPrefix:cap_"`
	DeliveryMode        DeliveryMode  `json:"delivery_mode"`
	BatchSize           int           `json:"batch_size"`
	MaxRetries          int           `json:"max_retries"`
	DeliveryTimeout     time.Duration `json:"delivery_timeout"`
	Priority            int           `json:"priority"`
	Status              ChannelStatus `json:"status"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastSyncedAt        *time.Time    `json:"last_synced_at,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// ChannelConfig is the registration input for a new channel
type ChannelConfig struct {
	Name            string
	Kind            ChannelKind
	Endpoint        string
	Credentials     string
	Capabilities    Capabilities
	DeliveryMode    DeliveryMode
	BatchSize       int
	MaxRetries      int
	DeliveryTimeout time.Duration
	Priority        int
}

// NewChannel registers a new channel in active state
func NewChannel(cfg ChannelConfig) (*Channel, error) {
	if cfg.Name == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "channel name is required")
	}
	if !cfg.Kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "unknown channel kind: "+string(cfg.Kind))
	}
	if cfg.Endpoint == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "channel endpoint is required")
	}
	if cfg.DeliveryMode == "" {
		cfg.DeliveryMode = DeliveryBatched
	}
	if !cfg.DeliveryMode.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "unknown delivery mode: "+string(cfg.DeliveryMode))
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if cfg.Priority <= 0 {
		cfg.Priority = DefaultChannelPriority
	}

	now := time.Now()
	return &Channel{
		ID:              uuid.New(),
		Name:            cfg.Name,
		Kind:            cfg.Kind,
		Endpoint:        cfg.Endpoint,
		Credentials:     cfg.Credentials,
		Capabilities:    cfg.Capabilities,
		DeliveryMode:    cfg.DeliveryMode,
		BatchSize:       cfg.BatchSize,
		MaxRetries:      cfg.MaxRetries,
		DeliveryTimeout: cfg.DeliveryTimeout,
		Priority:        cfg.Priority,
		Status:          ChannelActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// IsActive returns true if the channel accepts new operations
func (c *Channel) IsActive() bool {
	return c.Status == ChannelActive || c.Status == ChannelErroring || c.Status == ChannelSyncing
}

// Realtime returns true if operations should be attempted immediately
func (c *Channel) Realtime() bool {
	return c.DeliveryMode == DeliveryRealtime
}

// Activate re-enables a deactivated channel
func (c *Channel) Activate() {
	c.Status = ChannelActive
	c.ConsecutiveFailures = 0
	c.UpdatedAt = time.Now()
}

// Deactivate takes the channel out of rotation. Its queued operations are
// failed by the scheduler, not silently dropped.
func (c *Channel) Deactivate() {
	c.Status = ChannelInactive
	c.UpdatedAt = time.Now()
}

// MarkSyncing flags the channel as mid-delivery
func (c *Channel) MarkSyncing() {
	if c.Status == ChannelActive {
		c.Status = ChannelSyncing
		c.UpdatedAt = time.Now()
	}
}

// RecordSuccess resets health bookkeeping after a completed delivery
func (c *Channel) RecordSuccess(at time.Time) {
	c.ConsecutiveFailures = 0
	if c.Status == ChannelErroring || c.Status == ChannelSyncing {
		c.Status = ChannelActive
	}
	c.LastSyncedAt = &at
	c.UpdatedAt = at
}

// RecordTerminalFailure counts an exhausted or terminally failed delivery
// against the channel's health. Returns true if the failure pushed the
// channel over the deactivation threshold.
func (c *Channel) RecordTerminalFailure() bool {
	c.ConsecutiveFailures++
	c.UpdatedAt = time.Now()

	if c.ConsecutiveFailures >= DeactivationThreshold {
		c.Status = ChannelInactive
		return true
	}
	if c.ConsecutiveFailures >= ErroringThreshold {
		c.Status = ChannelErroring
	} else if c.Status == ChannelSyncing {
		c.Status = ChannelActive
	}
	return false
}
