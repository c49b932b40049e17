// Package errors defines the sentinel errors shared across the service
// plus small helpers mirroring the stdlib errors API, so call sites can
// import a single errors package.
package errors

import (
	"errors"
	"fmt"
)

// Generic sentinels.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternal      = errors.New("internal error")
	ErrTimeout       = errors.New("operation timeout")
	ErrUnavailable   = errors.New("service unavailable")
)

// Ingestion and scoring.
var (
	// ErrInvalidSample rejects a metric sample that failed validation.
	ErrInvalidSample = errors.New("invalid metric sample")

	// ErrTopicNotTracked means no accumulator exists for the topic.
	ErrTopicNotTracked = errors.New("topic not tracked")

	// ErrEmptyTopicSet means ranking was requested over zero topics.
	ErrEmptyTopicSet = errors.New("empty topic set")
)

// Prediction and synthesis.
var (
	// ErrPredictionUnavailable means the predictor cannot produce an estimate.
	ErrPredictionUnavailable = errors.New("prediction unavailable")

	// ErrGenerationUnavailable means the text generation provider failed.
	ErrGenerationUnavailable = errors.New("text generation unavailable")

	// ErrSynthesisExhausted means a segment ran out of regeneration attempts.
	ErrSynthesisExhausted = errors.New("synthesis attempts exhausted")

	// ErrPipelineTimeout means the generation request exceeded its deadline.
	ErrPipelineTimeout = errors.New("pipeline timeout")
)

// AI spend control.
var (
	ErrQuotaExceeded        = errors.New("cost quota exceeded")
	ErrDailyLimitExceeded   = errors.New("daily AI cost limit exceeded")
	ErrRequestLimitExceeded = errors.New("request cost limit exceeded")
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
)

// Sample feed.
var (
	ErrFeedNotConnected         = errors.New("sample feed not connected")
	ErrFeedSubscriptionFailed   = errors.New("sample feed subscription failed")
	ErrFeedReconnectFailed      = errors.New("sample feed reconnection failed")
	ErrFeedMaxReconnectAttempts = errors.New("max sample feed reconnection attempts reached")
)

// DomainError attaches a stable code and human message to a cause.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// ValidationError reports a field-level input problem. It unwraps to
// ErrInvalidInput so handlers can branch on the sentinel.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError collects errors from loops that should not stop at the
// first failure. The zero value is ready to use.
type MultiError struct {
	Errors []error
}

// Add appends err unless it is nil.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) HasErrors() bool { return len(m.Errors) > 0 }

// Unwrap exposes the collected errors to errors.Is and errors.As, so a
// sentinel buried in a batch still matches.
func (m *MultiError) Unwrap() []error { return m.Errors }

// ToError returns m as an error, or nil when nothing was collected.
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return "no errors"
	case 1:
		return m.Errors[0].Error()
	default:
		return fmt.Sprintf("multiple errors (%d): %v", len(m.Errors), m.Errors[0])
	}
}

// Stdlib passthroughs.

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

func Join(errs ...error) error { return errors.Join(errs...) }

func New(message string) error { return errors.New(message) }

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// Wrap prefixes err with message, preserving the chain.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
