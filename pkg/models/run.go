package models

import "time"

// Run is one execution attempt over a (sub)graph of a workflow. The snapshot
// reference is fixed at creation and never updated; retrying never mutates an
// existing run but creates a new one on the same work order.
type Run struct {
	ID                string      `json:"id"`
	WorkOrderID       string      `json:"work_order_id" validate:"required"`
	StartingTriggerID *string     `json:"starting_trigger_id,omitempty"`
	StartingJobID     *string     `json:"starting_job_id,omitempty"`
	CreatedByID       *string     `json:"created_by_id,omitempty"`
	DataclipID        string      `json:"dataclip_id" validate:"required"`
	SnapshotID        string      `json:"snapshot_id" validate:"required"`
	Priority          RunPriority `json:"priority"`
	State             RunState    `json:"state"`
	Steps             []*Step     `json:"steps,omitempty"`
	InsertedAt        time.Time   `json:"inserted_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// StepByID returns the attached step with the given id, or nil.
func (r *Run) StepByID(id string) *Step {
	for _, step := range r.Steps {
		if step.ID == id {
			return step
		}
	}

	return nil
}

// StepForJob returns the attached step executed for the given job, or nil.
func (r *Run) StepForJob(jobID string) *Step {
	for _, step := range r.Steps {
		if step.JobID == jobID {
			return step
		}
	}

	return nil
}
