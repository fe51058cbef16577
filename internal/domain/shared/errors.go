package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound      = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput  = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState  = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// ErrValidation marks payloads that can never be delivered. Validation
// failures are terminal: the operation fails immediately and is reported,
// never retried.
var ErrValidation = errors.New("validation failed")

// ValidationError wraps a terminal validation failure
type ValidationError struct {
	Reason string
}

// NewValidationError creates a terminal validation error
func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// Unwrap allows errors.Is(err, ErrValidation)
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsValidation returns true if err is a terminal validation failure
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
