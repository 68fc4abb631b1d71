// Package guid - errors.go provides the error taxonomy shared by every parser,
// codec and configuration setter in this module.
//
// Failures are input-validation failures: they are never transient and never
// retried internally. Apart from batch cancellation (ErrContextCanceled),
// every error returned by this package matches ErrInvalidArgument under
// errors.Is.

package guid

import (
	"errors"
	"fmt"
)

// Sentinel errors usable with errors.Is().
var (
	// ErrInvalidArgument is matched by every validation failure in this package:
	// absent input, wrong length, bad ARK tenant, wrong version or header, and
	// out-of-bounds widths.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidBase16 is wrapped when text fails to decode as lowercase hex.
	ErrInvalidBase16 = errors.New("invalid base16 text")

	// ErrInvalidBase32 is wrapped when text fails to decode as unpadded base32.
	ErrInvalidBase32 = errors.New("invalid base32 text")

	// ErrInvalidBase64 is wrapped when text fails to decode as base64.
	ErrInvalidBase64 = errors.New("invalid base64 text")

	// ErrContextCanceled is returned with a partial batch when the context
	// ends before the batch is complete.
	ErrContextCanceled = errors.New("context canceled")
)

// ============================================================================
// Custom Error Types
// ============================================================================

// ArgumentError describes a rejected input with enough context to log it.
//
// Example usage:
//
//	id, err := guid.Parse(text)
//	if err != nil {
//	    var argErr *guid.ArgumentError
//	    if errors.As(err, &argErr) {
//	        logger.Warn("rejected identifier",
//	            zap.String("field", argErr.Field),
//	            zap.String("value", argErr.Value),
//	            zap.String("reason", argErr.Reason))
//	    }
//	}
type ArgumentError struct {
	// Field names the rejected input, e.g. "GUID", "TenantSize", "machine id".
	Field string

	// Value is the rejected value rendered for logging.
	Value string

	// Reason is a human-readable explanation.
	Reason string

	// Constraint describes the accepted range or form, when there is one.
	// Example: "must be between 1 and 8"
	Constraint string

	// Err is the underlying cause, if any (for example a base32 decode error).
	Err error
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	msg := fmt.Sprintf("invalid argument: %s=%q (%s)", e.Field, e.Value, e.Reason)
	if e.Constraint != "" {
		msg += " - " + e.Constraint
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes ErrInvalidArgument and the cause to errors.Is() and errors.As().
func (e *ArgumentError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidArgument}
	}
	return []error{ErrInvalidArgument, e.Err}
}

// ============================================================================
// Error Helper Functions
// ============================================================================

// IsArgumentError checks if an error is or wraps an ArgumentError.
func IsArgumentError(err error) bool {
	var argErr *ArgumentError
	return errors.As(err, &argErr)
}

// GetArgumentError extracts the ArgumentError from an error chain.
//
// Returns the ArgumentError and true if found, nil and false otherwise.
//
// Example:
//
//	if argErr, ok := guid.GetArgumentError(err); ok {
//	    fmt.Printf("Invalid field: %s\n", argErr.Field)
//	}
func GetArgumentError(err error) (*ArgumentError, bool) {
	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		return argErr, true
	}
	return nil, false
}

// newArgumentError creates an ArgumentError with no constraint.
func newArgumentError(field, value, reason string, cause error) *ArgumentError {
	return &ArgumentError{
		Field:  field,
		Value:  value,
		Reason: reason,
		Err:    cause,
	}
}

// newRangeError creates an ArgumentError for a value outside a numeric bound.
func newRangeError(field string, value, min, max int64) *ArgumentError {
	return &ArgumentError{
		Field:      field,
		Value:      fmt.Sprintf("%d", value),
		Reason:     "out of range",
		Constraint: fmt.Sprintf("must be between %d and %d", min, max),
	}
}
