package models

import "time"

// StepState is the execution state of a single graph node within a run.
type StepState string

const (
	StepStatePending StepState = "pending"
	StepStateRunning StepState = "running"
	StepStateSuccess StepState = "success"
	StepStateFailed  StepState = "failed"
	StepStateCrashed StepState = "crashed"
)

// Step is one executed graph node. Steps are created by the execution engine
// and read here only to determine retry carry-over. A step can be attached to
// several runs: retries carry unaffected steps over to the new run.
type Step struct {
	ID               string     `json:"id"`
	JobID            string     `json:"job_id" validate:"required"`
	InputDataclipID  string     `json:"input_dataclip_id"`
	OutputDataclipID *string    `json:"output_dataclip_id,omitempty"`
	State            StepState  `json:"state"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	InsertedAt       time.Time  `json:"inserted_at"`
}
