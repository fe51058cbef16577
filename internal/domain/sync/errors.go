package sync

import (
	"errors"

	"github.com/syncengine/backend/internal/domain/shared"
)

// Sentinel errors surfaced by the scheduling layer
var (
	ErrCapabilityMismatch = shared.NewDomainError("CAPABILITY_MISMATCH", "channel does not support this operation kind")
	ErrExhaustedRetries   = shared.NewDomainError("RETRIES_EXHAUSTED", "operation exhausted its retry budget")
	ErrChannelDeactivated = shared.NewDomainError("CHANNEL_DEACTIVATED", "channel was deactivated")
)

// TransportError is a delivery failure that may succeed on retry: network
// faults, timeouts, upstream 5xx responses.
type TransportError struct {
	Reason string
	Cause  error
}

// NewTransportError wraps a retryable delivery failure
func NewTransportError(reason string, cause error) *TransportError {
	return &TransportError{Reason: reason, Cause: cause}
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.Cause != nil {
		return "transport: " + e.Reason + ": " + e.Cause.Error()
	}
	return "transport: " + e.Reason
}

// Unwrap exposes the underlying cause
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true for failures worth another attempt. Validation
// failures are terminal; everything else is assumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !shared.IsValidation(err)
}

// IsTransport returns true if err is a transport-level delivery failure
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
