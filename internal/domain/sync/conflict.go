package sync

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syncengine/backend/internal/domain/shared"
)

// Attribute is a product attribute channels can disagree about
type Attribute string

const (
	AttrInventory Attribute = "inventory"
	AttrPrice     Attribute = "price"
	AttrContent   Attribute = "content"
)

// IsValid returns true if the attribute is known
func (a Attribute) IsValid() bool {
	return a == AttrInventory || a == AttrPrice || a == AttrContent
}

// ResolutionPolicy selects how a conflict's authoritative value is chosen
type ResolutionPolicy string

const (
	PolicyManual        ResolutionPolicy = "manual"
	PolicyAutomatic     ResolutionPolicy = "automatic"
	PolicyPriorityBased ResolutionPolicy = "priority-based"
	PolicyLatestWins    ResolutionPolicy = "latest-wins"
)

// IsValid returns true if the policy is known
func (p ResolutionPolicy) IsValid() bool {
	switch p {
	case PolicyManual, PolicyAutomatic, PolicyPriorityBased, PolicyLatestWins:
		return true
	default:
		return false
	}
}

// ConflictStatus tracks whether a conflict record is still open
type ConflictStatus string

const (
	ConflictOpen     ConflictStatus = "open"
	ConflictResolved ConflictStatus = "resolved"
)

// AttributeValue holds either a numeric or textual observed value.
// Inventory and price are numeric; content fields are textual.
type AttributeValue struct {
	Number  decimal.Decimal `json:"number"`
	Text    string          `json:"text,omitempty"`
	Textual bool            `json:"textual,omitempty"`
}

// NumericValue wraps a decimal as an attribute value
func NumericValue(d decimal.Decimal) AttributeValue {
	return AttributeValue{Number: d}
}

// TextValue wraps a string as an attribute value
func TextValue(s string) AttributeValue {
	return AttributeValue{Text: s, Textual: true}
}

// Equal reports whether two observed values agree
func (v AttributeValue) Equal(other AttributeValue) bool {
	if v.Textual != other.Textual {
		return false
	}
	if v.Textual {
		return v.Text == other.Text
	}
	return v.Number.Equal(other.Number)
}

// String renders the value for logs and API responses
func (v AttributeValue) String() string {
	if v.Textual {
		return v.Text
	}
	return v.Number.String()
}

// Observation is one channel's assertion of an attribute value
type Observation struct {
	ChannelID  uuid.UUID      `json:"channel_id"`
	Value      AttributeValue `json:"value"`
	ObservedAt time.Time      `json:"observed_at"`
	Priority   int            `json:"priority"`
}

// ConflictRecord materializes a disagreement between channels about one
// product attribute. Created when two or more observations inside the
// detection window disagree; archived once resolved.
type ConflictRecord struct {
	ID            uuid.UUID        `json:"id" gorm:"primaryKey"`
	ProductID     uuid.UUID        `json:"product_id" gorm:"index:idx_conflicts_product_attr"`
	Attribute     Attribute        `json:"attribute" gorm:"index:idx_conflicts_product_attr"`
	Observations  []Observation    `json:"observations" gorm:"serializer:json"`
	Policy        ResolutionPolicy `json:"policy"`
	Status        ConflictStatus   `json:"status" gorm:"index"`
	ResolvedValue *AttributeValue  `json:"resolved_value,omitempty" gorm:"serializer:json"`
	ResolvedAt    *time.Time       `json:"resolved_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NewConflictRecord opens a conflict record for a product attribute
func NewConflictRecord(productID uuid.UUID, attribute Attribute, policy ResolutionPolicy) *ConflictRecord {
	now := time.Now()
	return &ConflictRecord{
		ID:        uuid.New(),
		ProductID: productID,
		Attribute: attribute,
		Policy:    policy,
		Status:    ConflictOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Observe folds a new observation into the record. A channel's newer
// observation replaces its older one; observations outside the detection
// window are pruned. Observations are kept ordered by observation time.
func (r *ConflictRecord) Observe(obs Observation, window time.Duration) {
	kept := make([]Observation, 0, len(r.Observations)+1)
	cutoff := obs.ObservedAt.Add(-window)
	for _, existing := range r.Observations {
		if existing.ChannelID == obs.ChannelID {
			continue
		}
		if existing.ObservedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, existing)
	}
	kept = append(kept, obs)
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].ObservedAt.Before(kept[j].ObservedAt)
	})
	r.Observations = kept
	r.UpdatedAt = time.Now()
}

// Disputed reports whether the record currently holds two or more
// disagreeing observations.
func (r *ConflictRecord) Disputed() bool {
	if len(r.Observations) < 2 {
		return false
	}
	first := r.Observations[0].Value
	for _, obs := range r.Observations[1:] {
		if !obs.Value.Equal(first) {
			return true
		}
	}
	return false
}

// Resolve picks the authoritative value under the given policy. For the
// manual policy the caller must supply the value. Resolve does not mutate
// the record; call MarkResolved with the chosen value afterwards.
func (r *ConflictRecord) Resolve(policy ResolutionPolicy, manual *AttributeValue) (AttributeValue, error) {
	if len(r.Observations) == 0 {
		return AttributeValue{}, shared.NewDomainError("INVALID_STATE", "conflict has no observations")
	}

	switch policy {
	case PolicyManual:
		if manual == nil {
			return AttributeValue{}, shared.NewDomainError("INVALID_INPUT", "manual resolution requires a value")
		}
		return *manual, nil
	case PolicyLatestWins:
		return r.latestObservation().Value, nil
	case PolicyPriorityBased:
		return r.highestPriorityObservation().Value, nil
	case PolicyAutomatic:
		return r.resolveAutomatic()
	default:
		return AttributeValue{}, shared.NewDomainError("INVALID_INPUT", "unknown resolution policy: "+string(policy))
	}
}

// MarkResolved archives the record with its authoritative value
func (r *ConflictRecord) MarkResolved(value AttributeValue) {
	now := time.Now()
	r.Status = ConflictResolved
	r.ResolvedValue = &value
	r.ResolvedAt = &now
	r.UpdatedAt = now
}

// latestObservation returns the most recently observed entry. Observations
// are kept sorted by Observe, so this is the last one.
func (r *ConflictRecord) latestObservation() Observation {
	return r.Observations[len(r.Observations)-1]
}

// highestPriorityObservation returns the observation from the channel with
// the highest configured priority, breaking ties by recency.
func (r *ConflictRecord) highestPriorityObservation() Observation {
	best := r.Observations[0]
	for _, obs := range r.Observations[1:] {
		if obs.Priority > best.Priority {
			best = obs
			continue
		}
		if obs.Priority == best.Priority && obs.ObservedAt.After(best.ObservedAt) {
			best = obs
		}
	}
	return best
}

// resolveAutomatic applies the attribute-specific business rule:
// inventory takes the minimum observed value (never oversell), price takes a
// priority-weighted average, content falls back to latest-wins.
func (r *ConflictRecord) resolveAutomatic() (AttributeValue, error) {
	switch r.Attribute {
	case AttrInventory:
		min := r.Observations[0].Value.Number
		for _, obs := range r.Observations[1:] {
			if obs.Value.Number.LessThan(min) {
				min = obs.Value.Number
			}
		}
		return NumericValue(min), nil
	case AttrPrice:
		return NumericValue(r.priorityWeightedAverage()), nil
	case AttrContent:
		return r.latestObservation().Value, nil
	default:
		return AttributeValue{}, shared.NewDomainError("INVALID_INPUT", "unknown conflict attribute: "+string(r.Attribute))
	}
}

// priorityWeightedAverage computes sum(priority*value)/sum(priority),
// falling back to the plain mean when no observation carries a priority.
func (r *ConflictRecord) priorityWeightedAverage() decimal.Decimal {
	weightedSum := decimal.Zero
	weightTotal := decimal.Zero
	for _, obs := range r.Observations {
		w := decimal.NewFromInt(int64(obs.Priority))
		weightedSum = weightedSum.Add(obs.Value.Number.Mul(w))
		weightTotal = weightTotal.Add(w)
	}
	if weightTotal.IsZero() {
		sum := decimal.Zero
		for _, obs := range r.Observations {
			sum = sum.Add(obs.Value.Number)
		}
		return sum.Div(decimal.NewFromInt(int64(len(r.Observations))))
	}
	return weightedSum.Div(weightTotal)
}
