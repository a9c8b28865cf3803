package provider

import (
	"fmt"
)

// ErrorCode classifies provider failures so callers can log a diagnosable
// category without inspecting provider-specific payloads.
type ErrorCode string

const (
	ErrorCodeAuthentication  ErrorCode = "authentication"
	ErrorCodeRateLimit       ErrorCode = "rate_limit"
	ErrorCodeInvalidRequest  ErrorCode = "invalid_request"
	ErrorCodeModelNotFound   ErrorCode = "model_not_found"
	ErrorCodeContentFiltered ErrorCode = "content_filtered"
	ErrorCodeServerError     ErrorCode = "server_error"
	ErrorCodeTimeout         ErrorCode = "timeout"
	ErrorCodeUnknown         ErrorCode = "unknown"
)

// ProviderError is a classified failure from a provider call.
type ProviderError struct {
	Provider    string
	Code        ErrorCode
	Message     string
	Type        string
	StatusCode  int
	IsRetryable bool
	Err         error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Provider, e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider string, code ErrorCode, message string, err error) *ProviderError {
	return &ProviderError{
		Provider:    provider,
		Code:        code,
		Message:     message,
		IsRetryable: code == ErrorCodeRateLimit || code == ErrorCodeServerError || code == ErrorCodeTimeout,
		Err:         err,
	}
}

// codeForStatus maps an HTTP status to an error code.
func codeForStatus(status int) ErrorCode {
	switch status {
	case 401, 403:
		return ErrorCodeAuthentication
	case 429:
		return ErrorCodeRateLimit
	case 400:
		return ErrorCodeInvalidRequest
	case 404:
		return ErrorCodeModelNotFound
	}
	if status >= 500 {
		return ErrorCodeServerError
	}
	return ErrorCodeUnknown
}
