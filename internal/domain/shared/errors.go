package shared

import (
	"fmt"
	"strings"
)

// Error codes carried by DomainError
const (
	CodeNotFound            = "NOT_FOUND"
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeInvalidQuantity     = "INVALID_QUANTITY"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeDependencyTimeout   = "DEPENDENCY_TIMEOUT"
	CodeInvalidState        = "INVALID_STATE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError with the same code
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors, usable as errors.Is targets
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrDependencyTimeout   = NewDomainError(CodeDependencyTimeout, "Dependency did not respond in time")
)

// FieldError describes one failing input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError enumerates every failing field of a rejected input
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError creates a ValidationError from the given field errors
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

// Add appends a failing field
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Merge appends all fields of another validation error
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	e.Fields = append(e.Fields, other.Fields...)
}

// HasErrors reports whether any field failed
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// ErrOrNil returns e when it carries at least one field, nil otherwise
func (e *ValidationError) ErrOrNil() error {
	if e == nil || !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return NewDomainError(CodeValidation, e.Error())
}

// NotFoundError reports a missing resource
type NotFoundError struct {
	Resource string
	Key      string
}

// NewNotFoundError creates a NotFoundError for resource identified by key
func NewNotFoundError(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return NewDomainError(CodeNotFound, e.Error())
}

// LineState is the current quantity state of a usage line entry
type LineState struct {
	SupplyCode       string `json:"supply_code"`
	QuantityUsed     int    `json:"quantity_used"`
	QuantityReturned int    `json:"quantity_returned"`
	MaxReturnable    int    `json:"max_returnable"`
}

// InvalidQuantityError reports a quantity outside the line's valid range
type InvalidQuantityError struct {
	Line      LineState
	Requested int
	Reason    string
}

// NewInvalidQuantityError creates an InvalidQuantityError for the given line state
func NewInvalidQuantityError(line LineState, requested int, reason string) *InvalidQuantityError {
	return &InvalidQuantityError{Line: line, Requested: requested, Reason: reason}
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for supply %s: %s (used %d, returned %d, returnable %d)",
		e.Requested, e.Line.SupplyCode, e.Reason,
		e.Line.QuantityUsed, e.Line.QuantityReturned, e.Line.MaxReturnable)
}

func (e *InvalidQuantityError) Unwrap() error {
	return NewDomainError(CodeInvalidQuantity, e.Error())
}

// ConflictError reports an optimistic version mismatch
type ConflictError struct {
	Resource        string
	ID              string
	ExpectedVersion int
}

// NewConflictError creates a ConflictError for the given resource
func NewConflictError(resource, id string, expectedVersion int) *ConflictError {
	return &ConflictError{Resource: resource, ID: id, ExpectedVersion: expectedVersion}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently (expected version %d); reload and retry",
		e.Resource, e.ID, e.ExpectedVersion)
}

func (e *ConflictError) Unwrap() error {
	return NewDomainError(CodeConcurrencyConflict, e.Error())
}

// DependencyTimeoutError reports a collaborator that did not answer in time.
// It is retryable.
type DependencyTimeoutError struct {
	Dependency string
	Cause      error
}

// NewDependencyTimeoutError creates a DependencyTimeoutError
func NewDependencyTimeoutError(dependency string, cause error) *DependencyTimeoutError {
	return &DependencyTimeoutError{Dependency: dependency, Cause: cause}
}

func (e *DependencyTimeoutError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dependency %s timed out: %v", e.Dependency, e.Cause)
	}
	return fmt.Sprintf("dependency %s timed out", e.Dependency)
}

func (e *DependencyTimeoutError) Unwrap() error {
	return NewDomainError(CodeDependencyTimeout, e.Error())
}

// Retryable always returns true
func (e *DependencyTimeoutError) Retryable() bool {
	return true
}
