package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	event := NewBaseEvent(WorkOrderCreatedEvent, "project-1")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, WorkOrderCreatedEvent, event.Type)
	assert.Equal(t, "project-1", event.ProjectID)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Second)
	assert.NotNil(t, event.Metadata)
}

func TestRunCreated_JSONSerialization(t *testing.T) {
	original := RunCreated{
		BaseEvent:   NewBaseEvent(RunCreatedEvent, "project-1"),
		RunID:       "run-123",
		WorkOrderID: "wo-456",
		SnapshotID:  "snap-789",
		Priority:    models.RunPriorityImmediate,
	}

	jsonData, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"run_id":"run-123"`)
	assert.Contains(t, string(jsonData), `"priority":"immediate"`)

	var deserialized RunCreated

	err = json.Unmarshal(jsonData, &deserialized)
	require.NoError(t, err)

	assert.Equal(t, original.RunID, deserialized.RunID)
	assert.Equal(t, original.WorkOrderID, deserialized.WorkOrderID)
	assert.Equal(t, original.SnapshotID, deserialized.SnapshotID)
	assert.Equal(t, original.Priority, deserialized.Priority)
	assert.Equal(t, RunCreatedEvent, deserialized.GetType())
}
