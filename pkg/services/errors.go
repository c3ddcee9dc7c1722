// Package services provides standardized error types for the work order
// service layer.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BolajiAyodeji/lightning/pkg/persistence"
	"github.com/go-playground/validator/v10"
)

// Business logic errors surfaced to callers.
var (
	// ErrWorkflowRequired indicates no workflow was supplied for a work order.
	ErrWorkflowRequired = errors.New("workflow is required")

	// ErrTargetRequired indicates neither a trigger nor a job was supplied.
	ErrTargetRequired = errors.New("a trigger or job target is required")

	// ErrDataclipRequired indicates no dataclip input was supplied.
	ErrDataclipRequired = errors.New("dataclip is required")

	// ErrCreatedByRequired indicates a job-originated mutation without an actor.
	ErrCreatedByRequired = errors.New("created_by is required")

	// ErrInvalidRunState indicates an engine state report with an unknown state.
	ErrInvalidRunState = errors.New("unknown run state")

	// ErrJobNotFound indicates a retry targets a job removed from the workflow.
	ErrJobNotFound = errors.New("job is not part of the workflow")

	// ErrDataclipWiped indicates a retry attempted to reuse a wiped dataclip.
	ErrDataclipWiped = errors.New("cannot use a wiped dataclip as run input")

	// ErrInvalidDataclipBody indicates a raw dataclip body failed schema validation.
	ErrInvalidDataclipBody = errors.New("dataclip body must be a JSON object")
)

// Not-found errors re-exported from persistence for the write paths.
var (
	ErrWorkflowNotFound  = persistence.ErrWorkflowNotFound
	ErrWorkOrderNotFound = persistence.ErrWorkOrderNotFound
	ErrRunNotFound       = persistence.ErrRunNotFound
	ErrStepNotFound      = persistence.ErrStepNotFound
	ErrDataclipNotFound  = persistence.ErrDataclipNotFound
)

// ValidationError is a field-scoped validation failure. Required-association
// and field-constraint violations are always reported against the field that
// failed, never as a bare string.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a field-scoped validation error.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// IsValidationError checks whether an error carries a field-scoped
// validation failure.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}

// IsNotFound checks whether an error indicates a missing record.
func IsNotFound(err error) bool {
	return persistence.IsNotFound(err)
}

// fieldErrors converts validator failures into field-scoped validation
// errors, one per failing field.
func fieldErrors(err error) error {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return err
	}

	converted := make([]error, 0, len(invalid))
	for _, fieldError := range invalid {
		converted = append(converted, NewValidationError(
			strings.ToLower(fieldError.Field()),
			"failed on "+fieldError.Tag(),
			err,
		))
	}

	return errors.Join(converted...)
}
