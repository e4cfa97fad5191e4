package errors

import (
	stderrors "errors"
	"fmt"
)

// ChatError is the structured error type for docchat.
// It carries enough context for logging, CLI presentation and for the
// session layer to decide which user-facing error kind to show.
type ChatError struct {
	// Code is the unique error code (e.g., "ERR_303_RATE_LIMITED").
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

	// Retryable indicates a new submission of the same request may succeed.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ChatError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *ChatError) Is(target error) bool {
	if t, ok := target.(*ChatError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *ChatError) WithDetail(key, value string) *ChatError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *ChatError) WithSuggestion(suggestion string) *ChatError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ChatError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ChatError {
	return &ChatError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ChatError from an existing error.
// The error's message becomes the ChatError message.
func Wrap(code string, err error) *ChatError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *ChatError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// NetworkError creates a transport-level error.
func NetworkError(message string, cause error) *ChatError {
	return New(ErrCodeNetworkUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *ChatError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ChatError {
	return New(ErrCodeInternal, message, cause)
}

// As finds the first ChatError in err's chain.
func As(err error) (*ChatError, bool) {
	var ce *ChatError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if ce, ok := As(err); ok {
		return ce.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if ce, ok := As(err); ok {
		return ce.Severity == SeverityFatal
	}
	return false
}

// IsRateLimited reports whether err signals quota exhaustion upstream.
func IsRateLimited(err error) bool {
	return GetCode(err) == ErrCodeRateLimited
}

// GetCode extracts the error code from the first ChatError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	if ce, ok := As(err); ok {
		return ce.Code
	}
	return ""
}

// GetCategory extracts the category from the first ChatError in the chain.
// Returns empty string if there is none.
func GetCategory(err error) Category {
	if ce, ok := As(err); ok {
		return ce.Category
	}
	return ""
}
