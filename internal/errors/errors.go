package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// Configuration errors - unrecognized upsert mode, bad connection settings
	ErrorTypeConfig ErrorType = iota
	// Validation errors - malformed identifier inputs
	ErrorTypeValidation
	// NotFound errors - update_only target missing
	ErrorTypeNotFound
	// AlreadyExists errors - insert_only target present
	ErrorTypeAlreadyExists
	// Conflict errors - same id, incompatible node kind
	ErrorTypeConflict
	// Persistence errors - graph or audit store failures
	ErrorTypePersistence
	// Internal errors - unexpected internal state
	ErrorTypeInternal
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - can continue with degraded functionality
	SeverityLow Severity = iota
	// SeverityMedium - should be addressed but not fatal
	SeverityMedium
	// SeverityHigh - significant issue, may impact functionality
	SeverityHigh
	// SeverityCritical - must be addressed, stops execution
	SeverityCritical
)

// Error represents a structured error with context
type Error struct {
	Type     ErrorType
	Severity Severity
	Message  string
	Cause    error
	Context  map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is checks if this error matches the target error type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsFatal returns true if this error should stop execution
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityCritical
}

// DetailedString returns a detailed error message with context
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n",
		severityString(e.Severity),
		typeString(e.Type),
		e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		sb.WriteString("Context:\n")
		for k, v := range e.Context {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
	}

	return sb.String()
}

func typeString(t ErrorType) string {
	switch t {
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeAlreadyExists:
		return "ALREADY_EXISTS"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypePersistence:
		return "PERSISTENCE"
	case ErrorTypeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

func severityString(s Severity) string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// New creates a new error with the given type, severity, and message
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{
		Type:     errType,
		Severity: severity,
		Message:  message,
		Context:  make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Type:     errType,
		Severity: severity,
		Message:  message,
		Cause:    err,
		Context:  make(map[string]interface{}),
	}
}

// Convenience constructors for common error types

// InvalidConfiguration creates a configuration error
func InvalidConfiguration(message string) *Error {
	return New(ErrorTypeConfig, SeverityCritical, message)
}

// InvalidConfigurationf creates a configuration error with formatting
func InvalidConfigurationf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

// InvalidArgument creates a validation error
func InvalidArgument(message string) *Error {
	return New(ErrorTypeValidation, SeverityHigh, message)
}

// InvalidArgumentf creates a validation error with formatting
func InvalidArgumentf(format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, SeverityHigh, fmt.Sprintf(format, args...))
}

// NotFound creates a not-found error
func NotFound(message string) *Error {
	return New(ErrorTypeNotFound, SeverityHigh, message)
}

// NotFoundf creates a not-found error with formatting
func NotFoundf(format string, args ...interface{}) *Error {
	return New(ErrorTypeNotFound, SeverityHigh, fmt.Sprintf(format, args...))
}

// AlreadyExists creates an already-exists error
func AlreadyExists(message string) *Error {
	return New(ErrorTypeAlreadyExists, SeverityHigh, message)
}

// AlreadyExistsf creates an already-exists error with formatting
func AlreadyExistsf(format string, args ...interface{}) *Error {
	return New(ErrorTypeAlreadyExists, SeverityHigh, fmt.Sprintf(format, args...))
}

// Conflict creates a conflict error
func Conflict(message string) *Error {
	return New(ErrorTypeConflict, SeverityHigh, message)
}

// Conflictf creates a conflict error with formatting
func Conflictf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConflict, SeverityHigh, fmt.Sprintf(format, args...))
}

// PersistenceFailure wraps a graph or audit store error
func PersistenceFailure(err error, message string) *Error {
	return Wrap(err, ErrorTypePersistence, SeverityCritical, message)
}

// PersistenceFailuref wraps a persistence error with formatting
func PersistenceFailuref(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypePersistence, SeverityCritical, fmt.Sprintf(format, args...))
}

// Internal creates an internal error
func Internal(message string) *Error {
	return New(ErrorTypeInternal, SeverityCritical, message)
}

// Internalf creates an internal error with formatting
func Internalf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInternal, SeverityCritical, fmt.Sprintf(format, args...))
}

// IsFatal checks if an error is fatal (should stop execution)
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if e, ok := err.(*Error); ok {
		return e.IsFatal()
	}

	return false
}

// GetType returns the type of an error
func GetType(err error) ErrorType {
	if err == nil {
		return ErrorTypeInternal
	}

	if e, ok := err.(*Error); ok {
		return e.Type
	}

	return ErrorTypeInternal
}
