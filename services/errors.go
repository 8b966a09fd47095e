package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeDataFormat  ErrorType = "data_format"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeUnavailable ErrorType = "unavailable"
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

// Is matches another DomainError with the same type and message
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

// WithDetail returns a copy of the error carrying an extra detail.
// Sentinel errors are shared, so they are never mutated in place.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{
		Type:    e.Type,
		Message: e.Message,
		Err:     e.Err,
		Details: details,
	}
}

// Wrap returns a copy of the error wrapping cause
func (e *DomainError) Wrap(cause error) *DomainError {
	return &DomainError{
		Type:    e.Type,
		Message: e.Message,
		Err:     cause,
		Details: e.Details,
	}
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
	// Not Found Errors
	ErrAuditEntryNotFound = NewDomainError(ErrorTypeNotFound, "audit entry not found", nil)

	// Validation Errors
	ErrInvalidInput  = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrMissingAction = NewDomainError(ErrorTypeValidation, "action is required", nil)

	// Policy file errors
	ErrPolicyFileNotObject  = NewDomainError(ErrorTypeDataFormat, "policy file must be a JSON object", nil)
	ErrPolicyFileMalformed  = NewDomainError(ErrorTypeDataFormat, "policy file is malformed", nil)
	ErrPolicyFileInvalid    = NewDomainError(ErrorTypeDataFormat, "policy file does not match schema", nil)
	ErrPolicyFileUnreadable = NewDomainError(ErrorTypeInternal, "policy file could not be read", nil)

	// Internal Errors
	ErrDatabaseError = NewDomainError(ErrorTypeInternal, "database error", nil)

	// Availability Errors
	ErrAuditUnavailable = NewDomainError(ErrorTypeUnavailable, "audit trail unavailable", nil)
)

func isType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsDataFormatError checks if an error is a data-format error
func IsDataFormatError(err error) bool {
	return isType(err, ErrorTypeDataFormat)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return isType(err, ErrorTypeInternal)
}

// IsUnavailableError checks if an error is an availability error
func IsUnavailableError(err error) bool {
	return isType(err, ErrorTypeUnavailable)
}

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

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
