package models

import "time"

// WorkOrder is one logical unit of work for a trigger/dataclip pair. Runs
// accumulate over its life; the state is always recomputed from them and is
// never set directly by callers.
type WorkOrder struct {
	ID           string         `json:"id"`
	WorkflowID   string         `json:"workflow_id" validate:"required"`
	TriggerID    *string        `json:"trigger_id,omitempty"`
	DataclipID   string         `json:"dataclip_id" validate:"required"`
	SnapshotID   string         `json:"snapshot_id" validate:"required"`
	State        WorkOrderState `json:"state"`
	LastActivity time.Time      `json:"last_activity"`
	InsertedAt   time.Time      `json:"inserted_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Runs         []*Run         `json:"runs,omitempty"`
}
