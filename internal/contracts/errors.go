package contracts

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the engine entry points. Per-symbol failures
// inside batch operations are counted and logged instead of raised; these
// types cover the run-level failures callers must distinguish.

// NotFoundError reports a missing screen, run, or position. Non-retryable.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// NewNotFound creates a NotFoundError.
func NewNotFound(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// ValidationError reports malformed input (bad date range, non-positive
// capital, missing required screen fields). Raised before any persistence.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidation creates a ValidationError.
func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// ExternalDataError reports a market-data or earnings source failure for a
// single symbol. Callers recover locally by falling back to cached values
// or skipping the affected symbol; it never aborts a batch.
type ExternalDataError struct {
	Source string
	Symbol string
	Err    error
}

func (e *ExternalDataError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Symbol, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *ExternalDataError) Unwrap() error {
	return e.Err
}

// NewExternalData creates an ExternalDataError.
func NewExternalData(source, symbol string, err error) *ExternalDataError {
	return &ExternalDataError{Source: source, Symbol: symbol, Err: err}
}

// IsExternalData reports whether err is an ExternalDataError.
func IsExternalData(err error) bool {
	var target *ExternalDataError
	return errors.As(err, &target)
}

// PersistenceConflictError reports a duplicate run-in-progress or a
// unique-constraint violation. The message is actionable for the caller.
type PersistenceConflictError struct {
	Message string
}

func (e *PersistenceConflictError) Error() string {
	return e.Message
}

// NewConflict creates a PersistenceConflictError.
func NewConflict(message string) *PersistenceConflictError {
	return &PersistenceConflictError{Message: message}
}

// IsConflict reports whether err is a PersistenceConflictError.
func IsConflict(err error) bool {
	var target *PersistenceConflictError
	return errors.As(err, &target)
}
