package sync

import (
	"time"

	"github.com/google/uuid"
)

// pairKey identifies the (product, channel) ordering domain
type pairKey struct {
	productID uuid.UUID
	channelID uuid.UUID
}

// NextAttemptable selects up to limit operations that may be attempted now
// from a creation-ordered list of non-terminal operations.
//
// For a given (product, channel) pair, operations must be attempted and
// resolved in creation order: a channel must never observe a newer state
// followed by an older one. An operation is therefore eligible only if every
// earlier operation for its pair is terminal, and at most one operation per
// pair is selected per call.
//
// The limit bounds the work a single scheduling tick can take on; operations
// beyond it simply wait for the next tick.
func NextAttemptable(ops []*Operation, now time.Time, limit int) []*Operation {
	if limit <= 0 {
		return nil
	}

	blocked := make(map[pairKey]bool)
	selected := make([]*Operation, 0, limit)

	for _, op := range ops {
		if op.Terminal() {
			continue
		}
		key := pairKey{productID: op.ProductID, channelID: op.ChannelID}
		if blocked[key] {
			continue
		}
		// Whether attempted or not, this operation gates everything
		// behind it for the same pair.
		blocked[key] = true

		if !op.AttemptableAt(now) {
			continue
		}
		selected = append(selected, op)
		if len(selected) == limit {
			break
		}
	}

	return selected
}

// HeadOfLine returns true if op is the oldest non-terminal operation for its
// (product, channel) pair within the creation-ordered list. The immediate
// delivery path uses this to avoid overtaking queued work.
func HeadOfLine(ops []*Operation, op *Operation) bool {
	for _, other := range ops {
		if other.ID == op.ID {
			return true
		}
		if other.Terminal() {
			continue
		}
		if other.ProductID == op.ProductID && other.ChannelID == op.ChannelID {
			return false
		}
	}
	return true
}
