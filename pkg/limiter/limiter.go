// Package limiter is the admission-control gate consulted before any new
// runs are committed. A denial aborts the whole requested operation before
// anything is written.
package limiter

import (
	"context"
	"errors"
	"fmt"
)

// Action identifies what permission is being requested.
type Action string

const ActionNewRun Action = "new_run"

// Request asks permission for an amount of a given action within a project.
type Request struct {
	Action    Action
	Amount    int
	ProjectID string
}

type Limiter interface {
	// Check returns nil when the request is admitted and a *DeniedError when
	// it is refused.
	Check(ctx context.Context, req Request) error
}

// DeniedError is returned verbatim to callers when admission is refused.
type DeniedError struct {
	Action    Action
	ProjectID string
	Requested int
	Message   string
}

func (e *DeniedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("admission denied for %s in project %s: %s", e.Action, e.ProjectID, e.Message)
	}

	return fmt.Sprintf("admission denied for %s in project %s (requested %d)", e.Action, e.ProjectID, e.Requested)
}

// IsDenied checks whether an error is an admission denial.
func IsDenied(err error) bool {
	var denied *DeniedError

	return errors.As(err, &denied)
}

// Unlimited admits everything. Used when no limiter service is configured.
type Unlimited struct{}

func (Unlimited) Check(_ context.Context, _ Request) error {
	return nil
}
