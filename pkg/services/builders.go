package services

import (
	"fmt"

	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/go-playground/validator/v10"
)

// runParams collects everything needed to construct a validated run. The
// required associations are enumerated here so missing ones surface as
// field-scoped errors rather than being silently dropped.
type runParams struct {
	WorkOrderID string
	Trigger     *models.Trigger
	Job         *models.Job
	Dataclip    *models.Dataclip `validate:"required"`
	Snapshot    *models.Snapshot `validate:"required"`
	CreatedBy   *string
	Priority    models.RunPriority
	Steps       []*models.Step
}

// buildRun constructs a run for a trigger or job starting point. Steps stay
// empty at creation unless the retry path carries some over; the execution
// engine populates them otherwise.
func buildRun(validate *validator.Validate, params runParams) (*models.Run, error) {
	if params.Trigger == nil && params.Job == nil {
		return nil, NewValidationError("target", "a trigger or job is required", ErrTargetRequired)
	}

	// Runs not originated by a trigger are always attributed to an actor.
	if params.Trigger == nil && params.CreatedBy == nil {
		return nil, NewValidationError("created_by", "can't be blank", ErrCreatedByRequired)
	}

	err := validate.Struct(params)
	if err != nil {
		return nil, fieldErrors(err)
	}

	priority := params.Priority
	if priority == "" {
		priority = models.RunPriorityNormal
	}

	run := &models.Run{
		WorkOrderID: params.WorkOrderID,
		CreatedByID: params.CreatedBy,
		DataclipID:  params.Dataclip.ID,
		SnapshotID:  params.Snapshot.ID,
		Priority:    priority,
		State:       models.RunStateAvailable,
		Steps:       params.Steps,
	}

	if params.Trigger != nil {
		run.StartingTriggerID = &params.Trigger.ID
	} else {
		run.StartingJobID = &params.Job.ID
	}

	return run, nil
}

// workOrderParams collects the required associations of a work order.
type workOrderParams struct {
	Workflow *models.Workflow `validate:"required"`
	Trigger  *models.Trigger
	Dataclip *models.Dataclip `validate:"required"`
	Snapshot *models.Snapshot `validate:"required"`
}

// buildWorkOrder wires a work order to its workflow, dataclip and snapshot.
// The state is set by the caller: derived from the initial run, or rejected
// on the without-run path.
func buildWorkOrder(validate *validator.Validate, params workOrderParams) (*models.WorkOrder, error) {
	err := validate.Struct(params)
	if err != nil {
		return nil, fieldErrors(err)
	}

	workOrder := &models.WorkOrder{
		WorkflowID: params.Workflow.ID,
		DataclipID: params.Dataclip.ID,
		SnapshotID: params.Snapshot.ID,
	}

	if params.Trigger != nil {
		workOrder.TriggerID = &params.Trigger.ID
	}

	err = validate.Struct(workOrder)
	if err != nil {
		return nil, fmt.Errorf("built work order failed validation: %w", fieldErrors(err))
	}

	return workOrder, nil
}
