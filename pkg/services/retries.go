package services

import (
	"context"
	"fmt"
	"time"

	"github.com/BolajiAyodeji/lightning/pkg/events"
	"github.com/BolajiAyodeji/lightning/pkg/graph"
	"github.com/BolajiAyodeji/lightning/pkg/limiter"
	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/BolajiAyodeji/lightning/pkg/otelhelper"
	"github.com/BolajiAyodeji/lightning/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RetryOptions scopes a retry to an actor and a project.
type RetryOptions struct {
	CreatedBy *string
	ProjectID string
}

// RunStepPair is an already-resolved retry target for batch retries.
type RunStepPair struct {
	RunID  string
	StepID string
}

// Retry creates a new run on the step's work order, starting from the
// step's job with the step's input dataclip. The existing run is never
// mutated. The new run re-anchors to the workflow's current snapshot and is
// enqueued with immediate priority.
func (s *WorkOrders) Retry(ctx context.Context, runID, stepID string, opts RetryOptions) (*models.Run, error) {
	ctx, span := s.tracer.Start(ctx, "workorders.retry", trace.WithAttributes(
		attribute.String(otelhelper.RunIDKey, runID),
		attribute.String(otelhelper.StepIDKey, stepID),
	))
	defer span.End()

	run, err := s.retryOne(ctx, runID, stepID, opts, false)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return run, nil
}

// retryOne is the single-shot retry construction. When admitted is false an
// admission check for one new run is made inside the transaction, before any
// write; bulk callers pass true after their own batch check.
func (s *WorkOrders) retryOne(ctx context.Context, runID, stepID string, opts RetryOptions, admitted bool) (*models.Run, error) {
	var (
		newRun    *models.Run
		workOrder *models.WorkOrder
		projectID string
	)

	err := s.persistence.Atomic(ctx, func(repos persistence.Repositories) error {
		run, err := repos.Runs().GetByID(ctx, runID, persistence.Include{Steps: true})
		if err != nil {
			return err
		}

		if run == nil {
			return persistence.NewRunError("Retry", runID, persistence.ErrRunNotFound)
		}

		step := run.StepByID(stepID)
		if step == nil {
			return persistence.NewRunError("Retry", runID, persistence.ErrStepNotFound)
		}

		workOrder, err = repos.WorkOrders().GetByID(ctx, run.WorkOrderID, persistence.Include{})
		if err != nil {
			return err
		}

		if workOrder == nil {
			return persistence.NewRunError("Retry", runID, persistence.ErrWorkOrderNotFound)
		}

		workflow, err := repos.Workflows().GetByID(ctx, workOrder.WorkflowID)
		if err != nil {
			return err
		}

		if workflow == nil {
			return persistence.NewWorkOrderError("Retry", workOrder.ID, persistence.ErrWorkflowNotFound)
		}

		projectID = opts.ProjectID
		if projectID == "" {
			projectID = workflow.ProjectID
		}

		if !admitted {
			err = s.limiter.Check(ctx, limiter.Request{
				Action:    limiter.ActionNewRun,
				Amount:    1,
				ProjectID: projectID,
			})
			if err != nil {
				return err
			}
		}

		dataclip, err := repos.Dataclips().GetByID(ctx, step.InputDataclipID)
		if err != nil {
			return err
		}

		if dataclip == nil {
			return NewValidationError("input_dataclip", "does not exist", ErrDataclipNotFound)
		}

		// Wiped dataclips are immutable evidence, not replayable input.
		if dataclip.Wiped() {
			return NewValidationError("input_dataclip", "cannot be retried because it has been wiped", ErrDataclipWiped)
		}

		job := workflow.JobByID(step.JobID)
		if job == nil {
			return NewValidationError("job", "is no longer part of the workflow", ErrJobNotFound)
		}

		// Steps whose job is an ancestor of the retry point carry over
		// unexecuted; the retry point and everything downstream of it
		// re-execute.
		pruned := graph.FromEdges(workflow.Edges).Prune(step.JobID)

		carryover := make([]*models.Step, 0, len(run.Steps))

		for _, existing := range run.Steps {
			if existing.JobID == step.JobID {
				continue
			}

			if pruned.Contains(existing.JobID) {
				carryover = append(carryover, existing)
			}
		}

		// Retries always re-anchor to the current workflow version, not the
		// snapshot the original run used.
		snapshot, err := EnsureSnapshot(ctx, repos, workflow)
		if err != nil {
			return err
		}

		newRun, err = buildRun(s.validate, runParams{
			WorkOrderID: workOrder.ID,
			Job:         job,
			Dataclip:    dataclip,
			Snapshot:    snapshot,
			CreatedBy:   opts.CreatedBy,
			Priority:    models.RunPriorityImmediate,
			Steps:       carryover,
		})
		if err != nil {
			return err
		}

		err = repos.Runs().Save(ctx, newRun)
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}

		runs, err := repos.Runs().ListByWorkOrder(ctx, workOrder.ID, persistence.Include{})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		workOrder.State = models.DeriveWorkOrderState(runs)
		workOrder.LastActivity = now

		return repos.WorkOrders().UpdateState(ctx, workOrder.ID, workOrder.State, now)
	})
	if err != nil {
		return nil, err
	}

	err = s.runQueue.Enqueue(ctx, projectID, newRun)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue run", "run_id", newRun.ID, "error", err)
	}

	s.publish(ctx, projectID, events.WorkOrderUpdated{
		BaseEvent:    events.NewBaseEvent(events.WorkOrderUpdatedEvent, projectID),
		WorkOrderID:  workOrder.ID,
		State:        workOrder.State,
		LastActivity: workOrder.LastActivity,
	})

	s.publish(ctx, projectID, events.RunCreated{
		BaseEvent:   events.NewBaseEvent(events.RunCreatedEvent, projectID),
		RunID:       newRun.ID,
		WorkOrderID: workOrder.ID,
		SnapshotID:  newRun.SnapshotID,
		Priority:    newRun.Priority,
	})

	return newRun, nil
}

// RetryWorkOrders retries a set of work orders against a target job. Work
// orders are processed in ascending creation-time order, each as its own
// transaction; per-item failures are logged and excluded from the success
// count. One admission check covers the whole batch before anything is
// attempted: a denial aborts with zero retries and the limiter's error is
// returned as-is.
func (s *WorkOrders) RetryWorkOrders(ctx context.Context, workOrderIDs []string, jobID string, opts RetryOptions) (int, error) {
	ctx, span := s.tracer.Start(ctx, "workorders.retry_many")
	defer span.End()

	workOrders, err := s.persistence.WorkOrders().List(ctx, persistence.WorkOrderQuery{IDs: workOrderIDs})
	if err != nil {
		return 0, err
	}

	if len(workOrders) == 0 {
		return 0, nil
	}

	err = s.limiter.Check(ctx, limiter.Request{
		Action:    limiter.ActionNewRun,
		Amount:    len(workOrders),
		ProjectID: opts.ProjectID,
	})
	if err != nil {
		return 0, err
	}

	count := 0

	for _, workOrder := range workOrders {
		run, err := s.persistence.Runs().LatestForWorkOrder(ctx, workOrder.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load latest run", "work_order_id", workOrder.ID, "error", err)

			continue
		}

		if run == nil {
			// Without-run (rejected) work orders have nothing to retry.
			continue
		}

		target := jobID
		if run.StepForJob(target) == nil {
			// No step joins the latest run to the target job: this is a
			// trigger replay, restarting from the work order's entry point
			// rather than a specific failed step.
			target, err = s.bulkStartingJob(ctx, workOrder)
			if err != nil {
				s.logger.WarnContext(ctx, "failed to resolve starting job", "work_order_id", workOrder.ID, "error", err)

				continue
			}
		}

		step := run.StepForJob(target)
		if step == nil {
			// Nothing joins this run to the entry point either; skip rather
			// than fail the batch.
			continue
		}

		_, err = s.retryOne(ctx, run.ID, step.ID, opts, true)
		if err != nil {
			s.logger.WarnContext(ctx, "retry failed", "work_order_id", workOrder.ID, "run_id", run.ID, "error", err)

			continue
		}

		count++
	}

	return count, nil
}

// RetryRunSteps retries a set of already-resolved run/step pairs. Pairs are
// deduplicated by run (the first pair per run wins) and the batch admission
// check uses the count of distinct runs.
func (s *WorkOrders) RetryRunSteps(ctx context.Context, pairs []RunStepPair, opts RetryOptions) (int, error) {
	ctx, span := s.tracer.Start(ctx, "workorders.retry_run_steps")
	defer span.End()

	seen := make(map[string]bool, len(pairs))
	deduped := make([]RunStepPair, 0, len(pairs))

	for _, pair := range pairs {
		if seen[pair.RunID] {
			continue
		}

		seen[pair.RunID] = true
		deduped = append(deduped, pair)
	}

	if len(deduped) == 0 {
		return 0, nil
	}

	err := s.limiter.Check(ctx, limiter.Request{
		Action:    limiter.ActionNewRun,
		Amount:    len(deduped),
		ProjectID: opts.ProjectID,
	})
	if err != nil {
		return 0, err
	}

	count := 0

	for _, pair := range deduped {
		_, err := s.retryOne(ctx, pair.RunID, pair.StepID, opts, true)
		if err != nil {
			s.logger.WarnContext(ctx, "retry failed", "run_id", pair.RunID, "step_id", pair.StepID, "error", err)

			continue
		}

		count++
	}

	return count, nil
}

// bulkStartingJob resolves the entry point for a trigger replay: the first
// run's recorded starting job when one exists, otherwise the target of the
// work order trigger's first outgoing edge.
func (s *WorkOrders) bulkStartingJob(ctx context.Context, workOrder *models.WorkOrder) (string, error) {
	runs, err := s.persistence.Runs().ListByWorkOrder(ctx, workOrder.ID, persistence.Include{})
	if err != nil {
		return "", err
	}

	if len(runs) > 0 && runs[0].StartingJobID != nil {
		return *runs[0].StartingJobID, nil
	}

	if workOrder.TriggerID == nil {
		return "", nil
	}

	workflow, err := s.persistence.Workflows().GetByID(ctx, workOrder.WorkflowID)
	if err != nil {
		return "", err
	}

	if workflow == nil {
		return "", nil
	}

	return workflow.FirstTargetOfTrigger(*workOrder.TriggerID), nil
}
