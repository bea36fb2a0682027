// Package errors provides the error taxonomy shared by the image2video
// workflow core. Every failure that crosses a package boundary is one of the
// typed errors below, so pipelines can route recovery by Kind and the
// orchestrator can decide what is safe to show to a chat user.
//
// # Error Types
//
//   - ValidationError: required input is absent or empty
//   - AppError: a collaborator call failed in a way the user should hear about
//   - TransportError: a network call failed (retryable, never shown verbatim)
//   - IllegalStateError: a lifecycle transition or call made in the wrong state
//   - TimeoutError: a conversation or operation outlived its window
//   - ConfigError: a required configuration value is missing or invalid
//   - InternalError: an unexpected failure, such as a recovered panic
//
// # Usage
//
//	err := errors.NewValidationError("Empty prompt").WithField("prompt")
//
//	switch errors.KindOf(err) {
//	case errors.KindValidation:
//	    ...
//	}
//
//	reply := errors.UserMessage(err)
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// GenericUserMessage is shown to users when an error carries nothing safe to display.
const GenericUserMessage = "An internal error occurred. Please try again later."

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Kind identifies the category of a typed error. Pipelines key their
// recovery handlers by Kind.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindApp
	KindTransport
	KindIllegalState
	KindTimeout
	KindConfig
	KindInternal
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindApp:
		return "app"
	case KindTransport:
		return "transport"
	case KindIllegalState:
		return "illegal_state"
	case KindTimeout:
		return "timeout"
	case KindConfig:
		return "config"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotStarted indicates that a call was made while the orchestrator was not started.
	ErrNotStarted = New("not started")
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrMissingConfig indicates that a required configuration value is absent.
	ErrMissingConfig = New("missing configuration")
	// ErrUnexpectedResponse indicates that a remote service answered with an unusable body.
	ErrUnexpectedResponse = New("unexpected response")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// TypedError is implemented by every error in this package.
type TypedError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Kind returns the category used for recovery routing.
	Kind() Kind

	// Message returns the bare message without prefix or cause.
	Message() string

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if Message is safe to display to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

type baseError struct {
	kind       Kind
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error      { return e.cause }
func (e *baseError) Kind() Kind         { return e.kind }
func (e *baseError) Message() string    { return e.message }
func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) IsRetryable() bool  { return e.retryable }
func (e *baseError) IsUserFacing() bool { return e.userFacing }

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// format renders "<prefix> [k=v, ...]: message: cause".
func (e *baseError) format(prefix string, parts []string) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// ValidationError
// -----------------------------------------------------------------------------

// ValidationError represents required input that is absent or empty.
//
// Example:
//
//	err := errors.NewValidationError("No prompt provided").WithField("prompt")
//	fmt.Println(err) // "validation error [field=prompt]: No prompt provided"
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			kind:       KindValidation,
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// AppError
// -----------------------------------------------------------------------------

// AppError represents a failed collaborator call whose message is meant for
// the user. The cause keeps the underlying detail for logs.
//
// Example:
//
//	err := errors.NewAppError("Failed to upload image", transportErr).WithOperation("upload_image")
type AppError struct {
	baseError
	Operation string
}

// NewAppError creates a new AppError.
func NewAppError(message string, cause error) *AppError {
	return &AppError{
		baseError: baseError{
			kind:       KindApp,
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithOperation adds the failed operation name to the error context.
func (e *AppError) WithOperation(op string) *AppError {
	e.Operation = op
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *AppError) WithRetryable(r bool) *AppError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *AppError) Error() string {
	var parts []string
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Operation))
	}
	return e.format("app error", parts)
}

// Is checks if this error matches the target.
func (e *AppError) Is(target error) bool {
	if _, ok := target.(*AppError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// TransportError
// -----------------------------------------------------------------------------

// TransportError represents a failed network exchange with a remote service.
//
// Example:
//
//	err := errors.NewTransportError("upload request failed", err).
//		WithEndpoint("https://api.imgbb.com/1/upload").WithStatusCode(502)
type TransportError struct {
	baseError
	Endpoint   string
	StatusCode int
}

// NewTransportError creates a new TransportError.
func NewTransportError(message string, cause error) *TransportError {
	return &TransportError{
		baseError: baseError{
			kind:      KindTransport,
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: true,
		},
	}
}

// WithEndpoint adds the remote endpoint to the error context.
func (e *TransportError) WithEndpoint(endpoint string) *TransportError {
	e.Endpoint = endpoint
	return e
}

// WithStatusCode adds the HTTP status code to the error context.
func (e *TransportError) WithStatusCode(code int) *TransportError {
	e.StatusCode = code
	if code > 0 && code < 500 {
		e.retryable = false
	}
	return e
}

// Error returns the formatted error message.
func (e *TransportError) Error() string {
	var parts []string
	if e.Endpoint != "" {
		parts = append(parts, fmt.Sprintf("endpoint=%s", e.Endpoint))
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	return e.format("transport error", parts)
}

// Is checks if this error matches the target.
func (e *TransportError) Is(target error) bool {
	if _, ok := target.(*TransportError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// IllegalStateError
// -----------------------------------------------------------------------------

// IllegalStateError represents an operation attempted from a state that
// does not allow it.
//
// Example:
//
//	err := errors.NewIllegalStateError("start", "UNINITIALIZED")
//	fmt.Println(err) // "illegal state [op=start, state=UNINITIALIZED]: cannot start from UNINITIALIZED"
type IllegalStateError struct {
	baseError
	Operation string
	State     string
}

// NewIllegalStateError creates a new IllegalStateError.
func NewIllegalStateError(operation, state string) *IllegalStateError {
	return &IllegalStateError{
		baseError: baseError{
			kind:     KindIllegalState,
			message:  fmt.Sprintf("cannot %s from %s", operation, state),
			severity: SeverityWarning,
		},
		Operation: operation,
		State:     state,
	}
}

// WithCause adds a cause to the error.
func (e *IllegalStateError) WithCause(cause error) *IllegalStateError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *IllegalStateError) Error() string {
	parts := []string{
		fmt.Sprintf("op=%s", e.Operation),
		fmt.Sprintf("state=%s", e.State),
	}
	return e.format("illegal state", parts)
}

// Is checks if this error matches the target.
func (e *IllegalStateError) Is(target error) bool {
	if _, ok := target.(*IllegalStateError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// TimeoutError
// -----------------------------------------------------------------------------

// TimeoutError represents an operation or wait that outlived its window.
//
// Example:
//
//	err := errors.NewTimeoutError("awaiting image", 180*time.Second)
//	fmt.Println(err) // "timeout error: awaiting image (timeout: 3m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			kind:       KindTimeout,
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// WithMessage replaces the user-facing message, keeping Operation for logs.
func (e *TimeoutError) WithMessage(message string) *TimeoutError {
	e.message = message
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// ConfigError
// -----------------------------------------------------------------------------

// ConfigError represents a missing or invalid configuration value.
// It is fatal for initialization.
type ConfigError struct {
	baseError
	Key string
}

// NewConfigError creates a new ConfigError.
func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{
		baseError: baseError{
			kind:     KindConfig,
			message:  message,
			cause:    cause,
			severity: SeverityCritical,
		},
	}
}

// WithKey adds the configuration key to the error context.
func (e *ConfigError) WithKey(key string) *ConfigError {
	e.Key = key
	return e
}

// Error returns the formatted error message.
func (e *ConfigError) Error() string {
	var parts []string
	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("key=%s", e.Key))
	}
	return e.format("config error", parts)
}

// Is checks if this error matches the target.
func (e *ConfigError) Is(target error) bool {
	if _, ok := target.(*ConfigError); ok {
		return true
	}
	if errors.Is(target, ErrMissingConfig) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// InternalError
// -----------------------------------------------------------------------------

// InternalError represents an unexpected failure. Its message is never shown
// to users.
type InternalError struct {
	baseError
}

// NewInternalError creates a new InternalError.
func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		baseError: baseError{
			kind:     KindInternal,
			message:  message,
			cause:    cause,
			severity: SeverityCritical,
		},
	}
}

// Error returns the formatted error message.
func (e *InternalError) Error() string {
	return e.format("internal error", nil)
}

// Is checks if this error matches the target.
func (e *InternalError) Is(target error) bool {
	if _, ok := target.(*InternalError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// KindOf returns the Kind of err. Context deadline errors classify as
// KindTimeout; anything else untyped is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var typed TypedError
	if As(err, &typed) {
		return typed.Kind()
	}

	if Is(err, context.DeadlineExceeded) || Is(err, ErrTimeout) {
		return KindTimeout
	}

	return KindUnknown
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var typed TypedError
	if As(err, &typed) {
		return typed.IsRetryable()
	}

	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var typed TypedError
	if As(err, &typed) {
		return typed.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement TypedError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var typed TypedError
	if As(err, &typed) {
		return typed.Severity()
	}
	return SeverityError
}

// UserMessage returns the text a chat user may see for err: the bare message
// of the outermost typed error when it is user facing, GenericUserMessage
// otherwise.
//
// Example:
//
//	err := errors.NewAppError("Failed to upload image", transportErr)
//	errors.UserMessage(err) // "Failed to upload image"
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var typed TypedError
	if As(err, &typed) && typed.IsUserFacing() {
		return typed.Message()
	}
	return GenericUserMessage
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike a bare string, the result still matches the wrapped TypedError via As.
//
// Example:
//
//	err := errors.Wrap(baseErr, "stop hook failed")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
