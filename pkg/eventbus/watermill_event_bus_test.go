package eventbus_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BolajiAyodeji/lightning/pkg/channels/gochannel"
	"github.com/BolajiAyodeji/lightning/pkg/eventbus"
	"github.com/BolajiAyodeji/lightning/pkg/events"
	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	logger := watermill.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	pub, sub, err := gochannel.CreateTestChannel(logger)
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_PublishSubscribeRoundTrip(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan any, 1)

	err := bus.Handle(events.WorkOrderCreatedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	published := events.WorkOrderCreated{
		BaseEvent:   events.NewBaseEvent(events.WorkOrderCreatedEvent, "project-1"),
		WorkOrderID: "wo-1",
		WorkflowID:  "wf-1",
		State:       models.WorkOrderStatePending,
	}
	require.NoError(t, bus.Publish(ctx, "project-1", published))

	select {
	case event := <-received:
		created, ok := event.(*events.WorkOrderCreated)
		require.True(t, ok)
		assert.Equal(t, published.WorkOrderID, created.WorkOrderID)
		assert.Equal(t, published.WorkflowID, created.WorkflowID)
		assert.Equal(t, published.State, created.State)
		assert.Equal(t, published.ProjectID, created.ProjectID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBus_UnhandledEventTypeIsDropped(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan any, 1)

	err := bus.Handle(events.RunCreatedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for work order updates; the message is acked and
	// dropped without disturbing the subscription.
	require.NoError(t, bus.Publish(ctx, "project-1", events.WorkOrderUpdated{
		BaseEvent:   events.NewBaseEvent(events.WorkOrderUpdatedEvent, "project-1"),
		WorkOrderID: "wo-1",
		State:       models.WorkOrderStateFailed,
	}))

	require.NoError(t, bus.Publish(ctx, "project-1", events.RunCreated{
		BaseEvent:   events.NewBaseEvent(events.RunCreatedEvent, "project-1"),
		RunID:       "run-1",
		WorkOrderID: "wo-1",
		Priority:    models.RunPriorityImmediate,
	}))

	select {
	case event := <-received:
		created, ok := event.(*events.RunCreated)
		require.True(t, ok)
		assert.Equal(t, "run-1", created.RunID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	assert.NotEmpty(t, bus.GenerateID())
	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
