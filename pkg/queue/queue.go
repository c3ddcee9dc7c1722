// Package queue enqueues runs for claim by execution workers. Enqueueing
// happens strictly after the owning transaction commits; the workers
// themselves live outside this module.
package queue

import (
	"context"

	"github.com/BolajiAyodeji/lightning/pkg/models"
)

type RunQueue interface {
	Enqueue(ctx context.Context, projectID string, run *models.Run) error
	Close() error
}
