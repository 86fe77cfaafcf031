package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the domain layer.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSubmitInFlight  = errors.New("submission already in progress")
	ErrTerminated      = errors.New("widget terminated")
	ErrUnknownMethod   = errors.New("unknown payment method")
	ErrMethodInactive  = errors.New("payment method not selected")
	ErrRowOutOfRange   = errors.New("split row out of range")
	ErrInvalidAmount   = errors.New("invalid amount")
)

// InvalidTransitionError represents an invalid channel state transition attempt.
type InvalidTransitionError struct {
	From ChannelState
	To   ChannelState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// NewInvalidTransitionError creates a new InvalidTransitionError.
func NewInvalidTransitionError(from, to ChannelState) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, To: to}
}

// ParseError represents a parsing error.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}

// NewParseError creates a new ParseError.
func NewParseError(msg string) *ParseError {
	return &ParseError{Message: msg}
}

// ValidationError represents an edit rejected because it would break a
// session invariant. The session is left unchanged.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// SubmitBlockedError is returned when a submit is attempted while field
// errors are present.
type SubmitBlockedError struct {
	Fields []string
}

func (e *SubmitBlockedError) Error() string {
	return fmt.Sprintf("submit blocked by %d field error(s): %s", len(e.Fields), strings.Join(e.Fields, ", "))
}

// NewSubmitBlockedError creates a new SubmitBlockedError.
func NewSubmitBlockedError(fields []string) *SubmitBlockedError {
	return &SubmitBlockedError{Fields: fields}
}
