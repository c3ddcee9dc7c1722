// Package models defines the core domain models for work order and run
// lifecycle tracking.
package models

import "time"

// TriggerType identifies how a trigger fires. Ingestion of these events is
// handled outside this module.
type TriggerType string

const (
	TriggerTypeWebhook TriggerType = "webhook"
	TriggerTypeCron    TriggerType = "cron"
	TriggerTypeKafka   TriggerType = "kafka"
)

// Trigger is an entry point node of a workflow graph.
type Trigger struct {
	ID      string      `json:"id"      validate:"required"`
	Type    TriggerType `json:"type"    validate:"required"`
	Enabled bool        `json:"enabled"`
}

// Job is an executable node of a workflow graph.
type Job struct {
	ID      string `json:"id"   validate:"required"`
	Name    string `json:"name" validate:"required,min=1"`
	Body    string `json:"body"`
	Adaptor string `json:"adaptor"`
}

// Edge is a directed link between two graph nodes. Exactly one of
// SourceTriggerID and SourceJobID is set.
type Edge struct {
	ID              string  `json:"id"`
	SourceTriggerID *string `json:"source_trigger_id,omitempty"`
	SourceJobID     *string `json:"source_job_id,omitempty"`
	TargetJobID     string  `json:"target_job_id" validate:"required"`
	Enabled         bool    `json:"enabled"`
}

// SourceID returns the trigger-or-job identifier the edge starts from.
func (e *Edge) SourceID() string {
	if e.SourceTriggerID != nil {
		return *e.SourceTriggerID
	}

	if e.SourceJobID != nil {
		return *e.SourceJobID
	}

	return ""
}

// Workflow is a versioned job graph. Workflows are created and edited by the
// workflow management system; this module only reads them.
type Workflow struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"       validate:"required,min=1"`
	ProjectID   string     `json:"project_id" validate:"required"`
	LockVersion int        `json:"lock_version"`
	Triggers    []*Trigger `json:"triggers"`
	Jobs        []*Job     `json:"jobs"`
	Edges       []*Edge    `json:"edges"`
	InsertedAt  time.Time  `json:"inserted_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// JobByID returns the workflow job with the given id, or nil.
func (w *Workflow) JobByID(id string) *Job {
	for _, job := range w.Jobs {
		if job.ID == id {
			return job
		}
	}

	return nil
}

// TriggerByID returns the workflow trigger with the given id, or nil.
func (w *Workflow) TriggerByID(id string) *Trigger {
	for _, trigger := range w.Triggers {
		if trigger.ID == id {
			return trigger
		}
	}

	return nil
}

// FirstTargetOfTrigger returns the target job of the trigger's first
// outgoing edge, or an empty string when the trigger has no edges.
func (w *Workflow) FirstTargetOfTrigger(triggerID string) string {
	for _, edge := range w.Edges {
		if edge.SourceTriggerID != nil && *edge.SourceTriggerID == triggerID {
			return edge.TargetJobID
		}
	}

	return ""
}
