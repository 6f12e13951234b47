package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of a gateway failure
type ErrorType string

const (
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeUnauthorized       ErrorType = "unauthorized"
	ErrorTypeUnsupportedMedia   ErrorType = "unsupported_media"
	ErrorTypeCancelled          ErrorType = "cancelled"
	ErrorTypeCapabilityMismatch ErrorType = "capability_mismatch"
	ErrorTypeProviderFailure    ErrorType = "provider_failure"
	ErrorTypeFetchFailure       ErrorType = "fetch_failure"
	ErrorTypeBudgetExceeded     ErrorType = "budget_exceeded"
	ErrorTypeInternal           ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on error type only
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

var (
	ErrEmptyInput      = NewDomainError(ErrorTypeValidation, "no text to extract from", nil)
	ErrUnsupportedMIME = NewDomainError(ErrorTypeUnsupportedMedia, "unsupported document type", nil)
	ErrCancelled       = NewDomainError(ErrorTypeCancelled, "request cancelled", nil)

	ErrInvalidIdentity = NewDomainError(ErrorTypeUnauthorized, "invalid identity token", nil)
	ErrIdentityExpired = NewDomainError(ErrorTypeUnauthorized, "identity token expired", nil)

	ErrNoProvidersConfigured = NewDomainError(ErrorTypeCapabilityMismatch, "no providers configured", nil)
	ErrNoEligibleProviders   = NewDomainError(ErrorTypeCapabilityMismatch, "no eligible providers", nil)

	ErrAllProvidersFailed  = NewDomainError(ErrorTypeProviderFailure, "all providers failed", nil)
	ErrDocumentFetchFailed = NewDomainError(ErrorTypeFetchFailure, "document download failed", nil)

	ErrBudgetExceeded = NewDomainError(ErrorTypeBudgetExceeded, "budget exceeded", nil)
)

func hasType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool { return hasType(err, ErrorTypeValidation) }

// IsUnauthorizedError checks if an error is an identity error
func IsUnauthorizedError(err error) bool { return hasType(err, ErrorTypeUnauthorized) }

// IsUnsupportedMediaError reports a document type no provider accepts
func IsUnsupportedMediaError(err error) bool { return hasType(err, ErrorTypeUnsupportedMedia) }

// IsCancelledError reports a request abandoned by the caller
func IsCancelledError(err error) bool { return hasType(err, ErrorTypeCancelled) }

// IsCapabilityMismatchError reports a request no configured provider can serve
func IsCapabilityMismatchError(err error) bool { return hasType(err, ErrorTypeCapabilityMismatch) }

// IsProviderFailureError reports a provider failure after retries and fallback
func IsProviderFailureError(err error) bool { return hasType(err, ErrorTypeProviderFailure) }

// IsFetchFailureError reports a document URL that could not be downloaded
func IsFetchFailureError(err error) bool { return hasType(err, ErrorTypeFetchFailure) }

// IsBudgetError checks if an error is a budget refusal
func IsBudgetError(err error) bool { return hasType(err, ErrorTypeBudgetExceeded) }

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool { return hasType(err, ErrorTypeInternal) }

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
