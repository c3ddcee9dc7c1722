// Package persistence provides the data storage abstraction for work
// orders, runs, steps, dataclips, snapshots and workflows.
package persistence

import (
	"context"
	"time"

	"github.com/BolajiAyodeji/lightning/pkg/models"
)

// Include controls how much of a work order or run aggregate is loaded.
type Include struct {
	Runs  bool
	Steps bool
}

// WorkOrderQuery filters and paginates work order listings. Results are
// always ordered by insertion time ascending so batch operations are
// deterministic.
type WorkOrderQuery struct {
	IDs        []string
	ProjectID  string
	WorkflowID string
	Limit      int
	Offset     int
	Include    Include
}

type WorkflowRepository interface {
	// GetByID returns nil when no workflow exists with the given id.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
}

type SnapshotRepository interface {
	GetByID(ctx context.Context, id string) (*models.Snapshot, error)
	// LatestForWorkflow returns the snapshot matching the workflow's current
	// lock version, or nil when the workflow has been edited since the last
	// snapshot was taken.
	LatestForWorkflow(ctx context.Context, workflowID string, lockVersion int) (*models.Snapshot, error)
	Save(ctx context.Context, snapshot *models.Snapshot) error
}

type DataclipRepository interface {
	GetByID(ctx context.Context, id string) (*models.Dataclip, error)
	Save(ctx context.Context, dataclip *models.Dataclip) error
}

type WorkOrderRepository interface {
	GetByID(ctx context.Context, id string, include Include) (*models.WorkOrder, error)
	List(ctx context.Context, query WorkOrderQuery) ([]*models.WorkOrder, error)
	// Save inserts or updates the work order row itself; attached runs are
	// persisted through the run repository.
	Save(ctx context.Context, workOrder *models.WorkOrder) error
	// UpdateState writes the derived state and bumps last_activity.
	UpdateState(ctx context.Context, id string, state models.WorkOrderState, lastActivity time.Time) error
}

type RunRepository interface {
	GetByID(ctx context.Context, id string, include Include) (*models.Run, error)
	// ListByWorkOrder returns all runs of a work order ordered by insertion
	// time ascending.
	ListByWorkOrder(ctx context.Context, workOrderID string, include Include) ([]*models.Run, error)
	// LatestForWorkOrder returns the most recent run of a work order with its
	// steps loaded, ties broken by id, or nil when the work order has none.
	LatestForWorkOrder(ctx context.Context, workOrderID string) (*models.Run, error)
	// Save inserts or updates the run row and attaches run.Steps by id. Steps
	// carried over from a previous run must already exist.
	Save(ctx context.Context, run *models.Run) error
}

type StepRepository interface {
	GetByID(ctx context.Context, id string) (*models.Step, error)
	ListByRun(ctx context.Context, runID string) ([]*models.Step, error)
	// Save inserts or updates the step and joins it to the given run.
	Save(ctx context.Context, runID string, step *models.Step) error
}

// Repositories is the set of entity repositories, either live or bound to a
// transaction.
type Repositories interface {
	Workflows() WorkflowRepository
	Snapshots() SnapshotRepository
	Dataclips() DataclipRepository
	WorkOrders() WorkOrderRepository
	Runs() RunRepository
	Steps() StepRepository
}

// Persistence is the storage backend contract. Atomic assembles every write
// of a multi-record mutation into one transaction: either all of them land
// or none does.
type Persistence interface {
	Repositories

	// Atomic runs fn against repositories bound to a single transaction.
	// Returning an error from fn rolls every write back.
	Atomic(ctx context.Context, fn func(repos Repositories) error) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
