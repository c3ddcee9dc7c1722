package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BolajiAyodeji/lightning/pkg/eventbus"
	"github.com/BolajiAyodeji/lightning/pkg/events"
	"github.com/BolajiAyodeji/lightning/pkg/limiter"
	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/BolajiAyodeji/lightning/pkg/otelhelper"
	"github.com/BolajiAyodeji/lightning/pkg/persistence"
	"github.com/BolajiAyodeji/lightning/pkg/queue"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WorkOrders is the work-order / run lifecycle service: creation, state
// aggregation and retries. All multi-record writes go through one atomic
// transaction; enqueueing and event publishing happen strictly after the
// transaction commits and never when it aborts.
type WorkOrders struct {
	persistence persistence.Persistence
	bus         eventbus.EventPublisher
	runQueue    queue.RunQueue
	limiter     limiter.Limiter
	dataclips   *Dataclips
	validate    *validator.Validate
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewWorkOrders creates the work order service.
func NewWorkOrders(
	store persistence.Persistence,
	bus eventbus.EventPublisher,
	runQueue queue.RunQueue,
	gate limiter.Limiter,
	logger *slog.Logger,
) (*WorkOrders, error) {
	dataclips, err := NewDataclips()
	if err != nil {
		return nil, err
	}

	return &WorkOrders{
		persistence: store,
		bus:         bus,
		runQueue:    runQueue,
		limiter:     gate,
		dataclips:   dataclips,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
		tracer:      otel.Tracer("lightning/services"),
	}, nil
}

// HealthCheck checks the health of the persistence layer.
func (s *WorkOrders) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateWorkOrderRequest describes a work order to create. The dataclip may
// be given as an id, a raw body, or a prevalidated record. WithoutRun builds
// the work order directly into the terminal rejected state; it keeps a
// record of intent for admission-denied or disabled-trigger cases without
// executing work.
type CreateWorkOrderRequest struct {
	Workflow   *models.Workflow
	Trigger    *models.Trigger
	Job        *models.Job
	Dataclip   DataclipInput
	CreatedBy  *string
	ProjectID  string
	WithoutRun bool
}

// Create builds and persists a work order with its initial run (unless
// WithoutRun), then enqueues the run and notifies subscribers.
func (s *WorkOrders) Create(ctx context.Context, req CreateWorkOrderRequest) (*models.WorkOrder, error) {
	ctx, span := s.tracer.Start(ctx, "workorders.create")
	defer span.End()

	if req.Workflow == nil {
		return nil, NewValidationError("workflow", "can't be blank", ErrWorkflowRequired)
	}

	if req.Trigger == nil && req.Job == nil {
		return nil, NewValidationError("target", "a trigger or job is required", ErrTargetRequired)
	}

	if req.Trigger == nil && req.CreatedBy == nil {
		return nil, NewValidationError("created_by", "can't be blank", ErrCreatedByRequired)
	}

	projectID := req.ProjectID
	if projectID == "" {
		projectID = req.Workflow.ProjectID
	}

	span.SetAttributes(
		attribute.String(otelhelper.WorkflowIDKey, req.Workflow.ID),
		attribute.String(otelhelper.ProjectIDKey, projectID),
	)

	var (
		workOrder *models.WorkOrder
		run       *models.Run
	)

	err := s.persistence.Atomic(ctx, func(repos persistence.Repositories) error {
		dataclip, err := s.dataclips.Resolve(ctx, repos, req.Dataclip, projectID)
		if err != nil {
			return err
		}

		snapshot, err := EnsureSnapshot(ctx, repos, req.Workflow)
		if err != nil {
			return err
		}

		workOrder, err = buildWorkOrder(s.validate, workOrderParams{
			Workflow: req.Workflow,
			Trigger:  req.Trigger,
			Dataclip: dataclip,
			Snapshot: snapshot,
		})
		if err != nil {
			return err
		}

		if req.WithoutRun {
			workOrder.State = models.WorkOrderStateRejected

			return repos.WorkOrders().Save(ctx, workOrder)
		}

		run, err = buildRun(s.validate, runParams{
			Trigger:   req.Trigger,
			Job:       req.Job,
			Dataclip:  dataclip,
			Snapshot:  snapshot,
			CreatedBy: req.CreatedBy,
		})
		if err != nil {
			return err
		}

		workOrder.State = models.DeriveWorkOrderState([]*models.Run{run})

		err = repos.WorkOrders().Save(ctx, workOrder)
		if err != nil {
			return fmt.Errorf("failed to save work order: %w", err)
		}

		run.WorkOrderID = workOrder.ID

		err = repos.Runs().Save(ctx, run)
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}

		workOrder.Runs = []*models.Run{run}

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if run != nil {
		err = s.runQueue.Enqueue(ctx, projectID, run)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to enqueue run", "run_id", run.ID, "error", err)
		}
	}

	s.publish(ctx, projectID, events.WorkOrderCreated{
		BaseEvent:   events.NewBaseEvent(events.WorkOrderCreatedEvent, projectID),
		WorkOrderID: workOrder.ID,
		WorkflowID:  workOrder.WorkflowID,
		State:       workOrder.State,
	})

	if run != nil {
		s.publish(ctx, projectID, events.RunCreated{
			BaseEvent:   events.NewBaseEvent(events.RunCreatedEvent, projectID),
			RunID:       run.ID,
			WorkOrderID: workOrder.ID,
			SnapshotID:  run.SnapshotID,
			Priority:    run.Priority,
		})
	}

	return workOrder, nil
}

// Get returns a work order by id, or nil when it does not exist.
func (s *WorkOrders) Get(ctx context.Context, id string, include persistence.Include) (*models.WorkOrder, error) {
	return s.persistence.WorkOrders().GetByID(ctx, id, include)
}

// List returns work orders matching the query, ordered by insertion time.
func (s *WorkOrders) List(ctx context.Context, query persistence.WorkOrderQuery) ([]*models.WorkOrder, error) {
	return s.persistence.WorkOrders().List(ctx, query)
}

// UpdateState is invoked by the execution engine whenever a run changes
// state. It persists the run's state and recomputes the owning work order's
// state from all of its runs, re-read inside the same transaction so a
// concurrent finish cannot leave the aggregate stale. last_activity is
// bumped to the commit-time recomputation, not the run's own timestamp.
func (s *WorkOrders) UpdateState(ctx context.Context, run *models.Run) (*models.WorkOrder, error) {
	ctx, span := s.tracer.Start(ctx, "workorders.update_state")
	defer span.End()

	// An out-of-enum state has no precedence rank and would corrupt the
	// derived work order state, so it never reaches the store.
	if !run.State.Valid() {
		return nil, NewValidationError("state", "is not a valid run state", ErrInvalidRunState)
	}

	var (
		workOrder *models.WorkOrder
		projectID string
	)

	err := s.persistence.Atomic(ctx, func(repos persistence.Repositories) error {
		existing, err := repos.Runs().GetByID(ctx, run.ID, persistence.Include{Steps: true})
		if err != nil {
			return err
		}

		if existing == nil {
			return persistence.NewRunError("UpdateState", run.ID, persistence.ErrRunNotFound)
		}

		existing.State = run.State

		err = repos.Runs().Save(ctx, existing)
		if err != nil {
			return fmt.Errorf("failed to save run state: %w", err)
		}

		runs, err := repos.Runs().ListByWorkOrder(ctx, existing.WorkOrderID, persistence.Include{})
		if err != nil {
			return err
		}

		state := models.DeriveWorkOrderState(runs)
		now := time.Now().UTC()

		err = repos.WorkOrders().UpdateState(ctx, existing.WorkOrderID, state, now)
		if err != nil {
			return err
		}

		workOrder, err = repos.WorkOrders().GetByID(ctx, existing.WorkOrderID, persistence.Include{Runs: true})
		if err != nil {
			return err
		}

		workflow, err := repos.Workflows().GetByID(ctx, workOrder.WorkflowID)
		if err != nil {
			return err
		}

		if workflow != nil {
			projectID = workflow.ProjectID
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, projectID, events.WorkOrderUpdated{
		BaseEvent:    events.NewBaseEvent(events.WorkOrderUpdatedEvent, projectID),
		WorkOrderID:  workOrder.ID,
		State:        workOrder.State,
		LastActivity: workOrder.LastActivity,
	})

	return workOrder, nil
}

// publish is fire-and-forget: a notification failure never fails the
// already-committed mutation.
func (s *WorkOrders) publish(ctx context.Context, projectID string, event eventbus.Event) {
	err := s.bus.Publish(ctx, projectID, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event",
			"event_type", event.GetType(), "project_id", projectID, "error", err)
	}
}
