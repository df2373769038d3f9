package errors

import (
	stderrors "errors"
	"fmt"
)

// NextorError is the structured error type for nextor.
// It carries enough context for logging, CLI presentation and for callers
// deciding whether to abort, skip a document, or retry.
type NextorError struct {
	// Code is the unique error code (e.g., "ERR_207_UNSUPPORTED_FORMAT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *NextorError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *NextorError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *NextorError) Is(target error) bool {
	if t, ok := target.(*NextorError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *NextorError) WithDetail(key, value string) *NextorError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *NextorError) WithSuggestion(suggestion string) *NextorError {
	e.Suggestion = suggestion
	return e
}

// New creates a new NextorError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *NextorError {
	return &NextorError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code string, format string, args ...any) *NextorError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a NextorError from an existing error.
// The error's message becomes the NextorError message.
func Wrap(code string, err error) *NextorError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *NextorError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *NextorError {
	return New(ErrCodeFileNotFound, message, cause)
}

// NetworkError creates a network-related error.
// Network errors are typically retryable.
func NetworkError(message string, cause error) *NextorError {
	return New(ErrCodeNetworkTimeout, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *NextorError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *NextorError {
	return New(ErrCodeInternal, message, cause)
}

// IntegrityError reports a broken invariant between the corpus arrays and
// the range index. Always fatal.
func IntegrityError(message string, cause error) *NextorError {
	return New(ErrCodeIndexIntegrity, message, cause)
}

// As returns the first NextorError in err's chain.
func As(err error) (*NextorError, bool) {
	var ne *NextorError
	if stderrors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
// Returns true if the error chain holds a NextorError with Retryable set.
func IsRetryable(err error) bool {
	if ne, ok := As(err); ok {
		return ne.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if ne, ok := As(err); ok {
		return ne.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first NextorError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	if ne, ok := As(err); ok {
		return ne.Code
	}
	return ""
}

// GetCategory extracts the category from the first NextorError in the chain.
func GetCategory(err error) Category {
	if ne, ok := As(err); ok {
		return ne.Category
	}
	return ""
}
