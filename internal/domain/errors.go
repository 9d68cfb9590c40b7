package domain

import (
	"errors"
	"fmt"
)

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

// Is reports whether target is a DomainError with the same code, so
// errors.Is matches wrapped instances against the package sentinels.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
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
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Ingestion error codes
const (
	ErrCodeParseFailure      = "PARSE_FAILURE"
	ErrCodeEmbeddingFailure  = "EMBEDDING_FAILURE"
	ErrCodeStorageFailure    = "STORAGE_FAILURE"
	ErrCodeDuplicateFilename = "DUPLICATE_FILENAME"
)

// Retrieval error codes
const (
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// Generation error codes
const (
	ErrCodeModelUnavailable     = "MODEL_UNAVAILABLE"
	ErrCodeMalformedModelOutput = "MALFORMED_MODEL_OUTPUT"
)

// Ingestion errors
var (
	ErrParseFailure      = NewDomainError(ErrCodeParseFailure, "document could not be parsed")
	ErrEmbeddingFailure  = NewDomainError(ErrCodeEmbeddingFailure, "embedding request failed")
	ErrStorageFailure    = NewDomainError(ErrCodeStorageFailure, "chunk or image write failed")
	ErrDuplicateFilename = NewDomainError(ErrCodeDuplicateFilename, "a document with this filename already exists")
)

// Retrieval errors
var (
	ErrStoreUnavailable = NewDomainError(ErrCodeStoreUnavailable, "vector store unavailable")
)

// Generation errors
var (
	ErrModelUnavailable     = NewDomainError(ErrCodeModelUnavailable, "generative model unavailable")
	ErrMalformedModelOutput = NewDomainError(ErrCodeMalformedModelOutput, "model reply did not match the expected structure")
)

// Validation errors
var (
	ErrInvalidDocumentStatus = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyQuery            = NewDomainError(ErrCodeValidation, "query must not be empty")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrImageNotFound    = NewDomainError(ErrCodeNotFound, "image not found")
)
