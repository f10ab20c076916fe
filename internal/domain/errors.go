package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrInvalidDocumentType   = NewDomainError(ErrCodeValidation, "invalid document type")
	ErrInvalidDocumentStatus = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrInvalidClauseType     = NewDomainError(ErrCodeValidation, "invalid clause type")
	ErrInvalidRiskLevel      = NewDomainError(ErrCodeValidation, "invalid risk level")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrDocumentNotFound    = NewDomainError(ErrCodeNotFound, "document not found")
	ErrAnalysisJobNotFound = NewDomainError(ErrCodeNotFound, "analysis job not found")
)

// Operation errors
var (
	// ErrAnalysisInProgress is returned when an analysis is re-triggered on a
	// document that is already processing. Runs are never queued twice.
	ErrAnalysisInProgress = NewDomainError(ErrCodeConflict, "analysis already in progress for document")
	ErrDocumentHasNoText  = NewDomainError(ErrCodeInvalidOperation, "document has no extracted text")
)

// Pipeline errors
var (
	// ErrTextTooShort marks an extraction that produced fewer words than the
	// pipeline minimum, which indicates a corrupt file or unreadable scan.
	ErrTextTooShort         = NewDomainError(ErrCodeValidation, "extracted text below minimum word count")
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)
