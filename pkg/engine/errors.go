package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mossy/mossy/pkg/stores"
)

// ErrorClass represents the classification of an error for retry logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed on retry.
	// Examples: a locked or busy database.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates a non-recoverable error.
	// Examples: an unknown item, a comparer rejecting its arguments.
	ErrorClassPermanent ErrorClass = "permanent"
)

// Error represents a classified error with context.
type Error struct {
	// Class is the error classification for retry logic.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Group holds the item names of the group being compared, if any.
	Group []string `json:"group,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Class, e.Message)
	if len(e.Group) > 0 {
		fmt.Fprintf(&b, " (group=%s)", strings.Join(e.Group, ","))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *Error {
	return &Error{
		Class:   ErrorClassTransient,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *Error {
	return &Error{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// WithGroup adds the compared group to an error.
func (e *Error) WithGroup(names []string) *Error {
	e.Group = names
	return e
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	return IsTransient(err)
}

// classifyError converts a comparer failure to an Error. Context errors
// are returned unchanged so that cancellation stops the run.
func classifyError(err error, names []string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	if stores.IsBusy(err) {
		return NewTransientError("concept store busy", err).
			WithCode(ErrCodeStoreBusy).
			WithGroup(names)
	}
	return NewPermanentError("comparison failed", err).
		WithCode(ErrCodeCompareFailed).
		WithGroup(names)
}

// Common error codes.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeUnknownItem   = "UNKNOWN_ITEM"
	ErrCodeCompareFailed = "COMPARE_FAILED"
	ErrCodeStoreBusy     = "STORE_BUSY"
	ErrCodeRecordFailed  = "RECORD_FAILED"
)
