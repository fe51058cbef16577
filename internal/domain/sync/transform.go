package sync

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Channel-specific shaping limits
const (
	SocialDescriptionLimit = 280
	AppImageVariant        = "mobile"
)

// ProductSnapshot is the channel-facing view of a product at the moment a
// change fans out. Shaping is deterministic: the same snapshot shaped for the
// same channel kind always yields the same payload.
type ProductSnapshot struct {
	ProductID   uuid.UUID       `json:"product_id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency,omitempty"`
	Inventory   int64           `json:"inventory"`
	ImageURL    string          `json:"image_url,omitempty"`
	Category    string          `json:"category,omitempty"`
	Active      bool            `json:"active"`
	CapturedAt  time.Time       `json:"captured_at"`
}

// shapedPayload is the wire form delivered to channel endpoints
type shapedPayload struct {
	ProductID    uuid.UUID       `json:"product_id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency,omitempty"`
	Inventory    int64           `json:"inventory"`
	ImageURL     string          `json:"image_url,omitempty"`
	ImageVariant string          `json:"image_variant,omitempty"`
	Category     string          `json:"category,omitempty"`
	Active       bool            `json:"active"`
	CapturedAt   time.Time       `json:"captured_at"`
}

// ShapePayload renders a product snapshot for one channel kind. Social
// channels get a truncated description, app channels get the mobile image
// variant, marketplaces and everything else get the full representation.
func ShapePayload(snapshot ProductSnapshot, kind ChannelKind) (json.RawMessage, error) {
	p := shapedPayload{
		ProductID:   snapshot.ProductID,
		SKU:         snapshot.SKU,
		Name:        snapshot.Name,
		Description: snapshot.Description,
		Price:       snapshot.Price,
		Currency:    snapshot.Currency,
		Inventory:   snapshot.Inventory,
		ImageURL:    snapshot.ImageURL,
		Category:    snapshot.Category,
		Active:      snapshot.Active,
		CapturedAt:  snapshot.CapturedAt,
	}

	switch kind {
	case ChannelKindSocial:
		p.Description = truncate(p.Description, SocialDescriptionLimit)
	case ChannelKindApp:
		p.ImageVariant = AppImageVariant
	}

	return json.Marshal(p)
}

// truncate shortens s to at most limit runes, appending an ellipsis when
// anything was cut.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
