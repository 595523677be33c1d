package errors

import (
	"fmt"
)

// ScoutError is the structured error type for vulnscout.
// It carries the classification the orchestrator needs to decide between
// retrying (transient provider failures), surfacing immediately (permanent
// input failures), and degrading to absence (consistency failures).
type ScoutError struct {
	// Code is the unique error code (e.g., "ERR_303_RATE_LIMITED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Provider, Input, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *ScoutError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ScoutError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *ScoutError) Is(target error) bool {
	if t, ok := target.(*ScoutError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *ScoutError) WithDetail(key, value string) *ScoutError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new ScoutError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ScoutError {
	return &ScoutError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ScoutError from an existing error.
// The error's message becomes the ScoutError message.
func Wrap(code string, err error) *ScoutError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Transient creates a retryable provider error.
func Transient(message string, cause error) *ScoutError {
	return New(ErrCodeProviderUnavailable, message, cause)
}

// Permanent creates a non-retryable input error.
func Permanent(message string, cause error) *ScoutError {
	return New(ErrCodeInvalidInput, message, cause)
}

// Absent creates a consistency error signalling a missing or empty persisted
// index. Callers treat it as "no index exists", never as corruption.
func Absent(message string) *ScoutError {
	return New(ErrCodeIndexAbsent, message, nil)
}

// IsRetryable checks if an error is retryable.
// Returns true only for ScoutErrors with the Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*ScoutError); ok {
		return se.Retryable
	}
	return false
}

// IsAbsent reports whether the error signals a missing persisted index.
func IsAbsent(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*ScoutError); ok {
		return se.Code == ErrCodeIndexAbsent
	}
	return false
}

// GetCode extracts the error code from a ScoutError.
// Returns empty string if not a ScoutError.
func GetCode(err error) string {
	if se, ok := err.(*ScoutError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a ScoutError.
func GetCategory(err error) Category {
	if se, ok := err.(*ScoutError); ok {
		return se.Category
	}
	return ""
}
