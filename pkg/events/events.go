// Package events defines the event types published after work order and run
// mutations commit.
package events

import (
	"time"

	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries all work order lifecycle events.
const Topic = "lightning.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkOrderCreatedEvent EventType = "workorder.created"
	WorkOrderUpdatedEvent EventType = "workorder.updated"
	RunCreatedEvent       EventType = "run.created"
)

// BaseEvent carries the fields common to all events. ProjectID scopes the
// event so subscribers can filter per project.
type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	ProjectID string         `json:"project_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type WorkOrderCreated struct {
	BaseEvent

	WorkOrderID string                `json:"work_order_id"`
	WorkflowID  string                `json:"workflow_id"`
	State       models.WorkOrderState `json:"state"`
}

func (e WorkOrderCreated) GetType() EventType {
	return WorkOrderCreatedEvent
}

type WorkOrderUpdated struct {
	BaseEvent

	WorkOrderID  string                `json:"work_order_id"`
	State        models.WorkOrderState `json:"state"`
	LastActivity time.Time             `json:"last_activity"`
}

func (e WorkOrderUpdated) GetType() EventType {
	return WorkOrderUpdatedEvent
}

type RunCreated struct {
	BaseEvent

	RunID       string             `json:"run_id"`
	WorkOrderID string             `json:"work_order_id"`
	SnapshotID  string             `json:"snapshot_id"`
	Priority    models.RunPriority `json:"priority"`
}

func (e RunCreated) GetType() EventType {
	return RunCreatedEvent
}

func NewBaseEvent(eventType EventType, projectID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ProjectID: projectID,
		Metadata:  make(map[string]any),
	}
}
