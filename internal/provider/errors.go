package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies provider failures.
type ErrorCode string

const (
	ErrCodeServiceUnavailable    ErrorCode = "SERVICE_UNAVAILABLE"     // Backend up but unable to serve
	ErrCodeModelNotFound         ErrorCode = "MODEL_NOT_FOUND"         // Requested model not pulled
	ErrCodeNetworkError          ErrorCode = "NETWORK_ERROR"           // Backend unreachable
	ErrCodeInvalidRequest        ErrorCode = "INVALID_REQUEST"         // Malformed request
	ErrCodeTimeout               ErrorCode = "TIMEOUT"                 // Request timed out
	ErrCodeCanceled              ErrorCode = "CANCELED"                // Caller cancelled the request
	ErrCodeContextWindowExceeded ErrorCode = "CONTEXT_WINDOW_EXCEEDED" // Input exceeds model context window
	ErrCodeInvalidResponse       ErrorCode = "INVALID_RESPONSE"        // Response could not be used
	ErrCodeUnknown               ErrorCode = "UNKNOWN"                 // Unclassified error
)

// ProviderError is a structured error for Provider operations.
type ProviderError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider"`
	Retryable bool      `json:"retryable"`
	Err       error     `json:"-"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Code, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError.
func NewProviderError(code ErrorCode, message, provider string, retryable bool) *ProviderError {
	return &ProviderError{
		Code:      code,
		Message:   message,
		Provider:  provider,
		Retryable: retryable,
	}
}

// CodeOf returns the code of the first ProviderError in err's chain, or
// ErrCodeUnknown.
func CodeOf(err error) ErrorCode {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrCodeUnknown
}

// IsContextWindowExceeded reports whether err indicates the input exceeded
// the model's context window. Untyped errors are matched on their message.
func IsContextWindowExceeded(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Code == ErrCodeContextWindowExceeded {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context window") ||
		strings.Contains(msg, "context length exceeded") ||
		strings.Contains(msg, "maximum context length") ||
		strings.Contains(msg, "too many tokens")
}

// IsRetryable reports whether err is a transient provider error.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
