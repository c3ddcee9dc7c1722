// Package persistence provides standardized error types for storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrSnapshotNotFound indicates a snapshot was not found by the given identifier.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrDataclipNotFound indicates a dataclip was not found by the given identifier.
	ErrDataclipNotFound = errors.New("dataclip not found")

	// ErrWorkOrderNotFound indicates a work order was not found by the given identifier.
	ErrWorkOrderNotFound = errors.New("work order not found")

	// ErrRunNotFound indicates a run was not found by the given identifier.
	ErrRunNotFound = errors.New("run not found")

	// ErrStepNotFound indicates a step was not found by the given identifier.
	ErrStepNotFound = errors.New("step not found")
)

// WorkOrderError wraps work-order-related errors with operation context.
type WorkOrderError struct {
	Op          string // Operation being performed (e.g., "GetByID", "Save")
	WorkOrderID string
	Err         error
}

func (e *WorkOrderError) Error() string {
	return fmt.Sprintf("%s operation failed for work order %s: %v", e.Op, e.WorkOrderID, e.Err)
}

func (e *WorkOrderError) Unwrap() error {
	return e.Err
}

func (e *WorkOrderError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkOrderError creates a new work order error with context.
func NewWorkOrderError(op, workOrderID string, err error) *WorkOrderError {
	return &WorkOrderError{
		Op:          op,
		WorkOrderID: workOrderID,
		Err:         err,
	}
}

// RunError wraps run-related errors with operation context.
type RunError struct {
	Op    string
	RunID string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s operation failed for run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRunError creates a new run error with context.
func NewRunError(op, runID string, err error) *RunError {
	return &RunError{
		Op:    op,
		RunID: runID,
		Err:   err,
	}
}

// IsNotFound checks whether an error indicates a missing record of any kind.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrSnapshotNotFound) ||
		errors.Is(err, ErrDataclipNotFound) ||
		errors.Is(err, ErrWorkOrderNotFound) ||
		errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrStepNotFound)
}
