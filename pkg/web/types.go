// Package web provides the HTTP surface for work order creation, inspection
// and retry.
package web

import "encoding/json"

// CreateWorkOrderRequest is the request body for creating a work order. The
// dataclip is given either by id or as a raw JSON object body.
type CreateWorkOrderRequest struct {
	WorkflowID   string          `json:"workflow_id"             validate:"required"`
	TriggerID    string          `json:"trigger_id,omitempty"`
	JobID        string          `json:"job_id,omitempty"`
	DataclipID   string          `json:"dataclip_id,omitempty"`
	DataclipBody json.RawMessage `json:"dataclip_body,omitempty"`
	CreatedBy    *string         `json:"created_by,omitempty"`
	WithoutRun   bool            `json:"without_run,omitempty"`
}

// RetryRunRequest is the request body for retrying a single run from a step.
type RetryRunRequest struct {
	StepID    string  `json:"step_id"              validate:"required"`
	CreatedBy *string `json:"created_by,omitempty"`
	ProjectID string  `json:"project_id,omitempty"`
}

// RetryWorkOrdersRequest is the request body for retrying a batch of work
// orders against a target job.
type RetryWorkOrdersRequest struct {
	WorkOrderIDs []string `json:"work_order_ids"       validate:"required,min=1"`
	JobID        string   `json:"job_id"               validate:"required"`
	CreatedBy    *string  `json:"created_by,omitempty"`
	ProjectID    string   `json:"project_id"           validate:"required"`
}

// RetryRunStepsRequest is the request body for retrying already-resolved
// run/step pairs.
type RetryRunStepsRequest struct {
	Pairs     []RunStepPair `json:"pairs"                validate:"required,min=1,dive"`
	CreatedBy *string       `json:"created_by,omitempty"`
	ProjectID string        `json:"project_id"           validate:"required"`
}

// RunStepPair identifies one run/step retry target.
type RunStepPair struct {
	RunID  string `json:"run_id"  validate:"required"`
	StepID string `json:"step_id" validate:"required"`
}

// UpdateRunStateRequest is the request body for the execution engine's run
// state reports.
type UpdateRunStateRequest struct {
	State string `json:"state" validate:"required"`
}

// RetryResponse reports how many retries of a batch succeeded.
type RetryResponse struct {
	SuccessCount int `json:"success_count"`
}
