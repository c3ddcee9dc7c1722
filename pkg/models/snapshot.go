package models

import "time"

// Snapshot is an immutable copy of a workflow graph at a point in time.
// Snapshots are created lazily on first use after an edit and never mutated.
type Snapshot struct {
	ID          string     `json:"id"`
	WorkflowID  string     `json:"workflow_id" validate:"required"`
	Name        string     `json:"name"`
	LockVersion int        `json:"lock_version"`
	Triggers    []*Trigger `json:"triggers"`
	Jobs        []*Job     `json:"jobs"`
	Edges       []*Edge    `json:"edges"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SnapshotOf captures the current graph of a workflow. The snapshot id is
// assigned on save.
func SnapshotOf(workflow *Workflow) *Snapshot {
	return &Snapshot{
		WorkflowID:  workflow.ID,
		Name:        workflow.Name,
		LockVersion: workflow.LockVersion,
		Triggers:    workflow.Triggers,
		Jobs:        workflow.Jobs,
		Edges:       workflow.Edges,
	}
}
