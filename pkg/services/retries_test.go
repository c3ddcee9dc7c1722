package services

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BolajiAyodeji/lightning/pkg/limiter"
	"github.com/BolajiAyodeji/lightning/pkg/mocks"
	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/BolajiAyodeji/lightning/pkg/persistence"
	"github.com/BolajiAyodeji/lightning/pkg/persistence/file"
	"github.com/BolajiAyodeji/lightning/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// seedFailedRun creates a work order whose single run executed job-a
// successfully and failed at job-b. Returns the work order, its run (with
// steps attached) and the steps keyed by job id.
func seedFailedRun(t *testing.T, service *WorkOrders, store *file.Persistence, workflow *models.Workflow) (*models.WorkOrder, *models.Run, map[string]*models.Step) {
	t.Helper()

	workOrder, err := service.Create(t.Context(), CreateWorkOrderRequest{
		Workflow: workflow,
		Trigger:  workflow.Triggers[0],
		Dataclip: DataclipInput{Body: json.RawMessage(`{"seed": true}`)},
	})
	require.NoError(t, err)
	require.Len(t, workOrder.Runs, 1)

	run := workOrder.Runs[0]

	intermediate := &models.Dataclip{
		ProjectID: workflow.ProjectID,
		Type:      models.DataclipTypeStepResult,
		Body:      json.RawMessage(`{"from": "job-a"}`),
	}
	err = store.Dataclips().Save(t.Context(), intermediate)
	require.NoError(t, err)

	steps := map[string]*models.Step{
		"job-a": {
			JobID:           "job-a",
			InputDataclipID: workOrder.DataclipID,
			State:           models.StepStateSuccess,
		},
		"job-b": {
			JobID:           "job-b",
			InputDataclipID: intermediate.ID,
			State:           models.StepStateFailed,
		},
	}

	for _, jobID := range []string{"job-a", "job-b"} {
		err = store.Steps().Save(t.Context(), run.ID, steps[jobID])
		require.NoError(t, err)
	}

	run.State = models.RunStateFailed
	_, err = service.UpdateState(t.Context(), run)
	require.NoError(t, err)

	reloaded, err := store.Runs().GetByID(t.Context(), run.ID, persistence.Include{Steps: true})
	require.NoError(t, err)
	require.Len(t, reloaded.Steps, 2)

	return workOrder, reloaded, steps
}

func TestWorkOrders_Retry(t *testing.T) {
	service, store, runQueue := newTestService(t)
	workflow := seedWorkflow(t, store)
	workOrder, run, steps := seedFailedRun(t, service, store, workflow)

	newRun, err := service.Retry(t.Context(), run.ID, steps["job-b"].ID, RetryOptions{
		CreatedBy: strPtr("user-1"),
	})
	require.NoError(t, err)
	require.NotNil(t, newRun)

	assert.NotEqual(t, run.ID, newRun.ID)
	assert.Equal(t, workOrder.ID, newRun.WorkOrderID)
	assert.Equal(t, models.RunStateAvailable, newRun.State)
	assert.Equal(t, models.RunPriorityImmediate, newRun.Priority)
	assert.Equal(t, steps["job-b"].InputDataclipID, newRun.DataclipID)
	require.NotNil(t, newRun.StartingJobID)
	assert.Equal(t, "job-b", *newRun.StartingJobID)
	assert.Nil(t, newRun.StartingTriggerID)
	require.NotNil(t, newRun.CreatedByID)
	assert.Equal(t, "user-1", *newRun.CreatedByID)

	// Only the upstream job-a step carries over; the retry point re-executes.
	require.Len(t, newRun.Steps, 1)
	assert.Equal(t, "job-a", newRun.Steps[0].JobID)

	// The original run is untouched.
	original, err := store.Runs().GetByID(t.Context(), run.ID, persistence.Include{Steps: true})
	require.NoError(t, err)
	assert.Equal(t, models.RunStateFailed, original.State)
	assert.Len(t, original.Steps, 2)

	// The retry run is enqueued after commit.
	entries := runQueue.Entries()
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, newRun.ID, last.Run.ID)
	assert.Equal(t, "project-1", last.ProjectID)

	// The work order now aggregates both runs.
	stored, err := store.WorkOrders().GetByID(t.Context(), workOrder.ID, persistence.Include{Runs: true})
	require.NoError(t, err)
	require.Len(t, stored.Runs, 2)
	assert.Equal(t, models.WorkOrderStateFailed, stored.State)
}

func TestWorkOrders_Retry_ExcludesSiblingBranchSteps(t *testing.T) {
	service, store, _ := newTestService(t)
	workflow := seedWorkflow(t, store)
	_, run, steps := seedFailedRun(t, service, store, workflow)

	// job-d sits on a sibling branch (a -> d); it is not an ancestor of
	// job-b and must re-execute rather than carry over.
	siblingStep := &models.Step{
		JobID:           "job-d",
		InputDataclipID: steps["job-a"].InputDataclipID,
		State:           models.StepStateSuccess,
	}
	err := store.Steps().Save(t.Context(), run.ID, siblingStep)
	require.NoError(t, err)

	newRun, err := service.Retry(t.Context(), run.ID, steps["job-b"].ID, RetryOptions{})
	require.NoError(t, err)

	require.Len(t, newRun.Steps, 1)
	assert.Equal(t, "job-a", newRun.Steps[0].JobID)
}

func TestWorkOrders_Retry_ReanchorsToLatestSnapshot(t *testing.T) {
	service, store, _ := newTestService(t)
	workflow := seedWorkflow(t, store)
	_, run, steps := seedFailedRun(t, service, store, workflow)

	originalSnapshot := run.SnapshotID

	// Edit the workflow: the next snapshot resolution must produce a new
	// version and the retry run must anchor to it.
	workflow.LockVersion++
	workflow.Name = "Order Sync v2"
	err := store.Workflows().Save(t.Context(), workflow)
	require.NoError(t, err)

	newRun, err := service.Retry(t.Context(), run.ID, steps["job-b"].ID, RetryOptions{})
	require.NoError(t, err)

	assert.NotEqual(t, originalSnapshot, newRun.SnapshotID)

	snapshot, err := store.Snapshots().GetByID(t.Context(), newRun.SnapshotID)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, workflow.LockVersion, snapshot.LockVersion)
}

func TestWorkOrders_Retry_WipedDataclip(t *testing.T) {
	service, store, runQueue := newTestService(t)
	workflow := seedWorkflow(t, store)
	workOrder, run, steps := seedFailedRun(t, service, store, workflow)

	// Wipe job-b's input.
	wipedAt := time.Now().UTC()
	dataclip, err := store.Dataclips().GetByID(t.Context(), steps["job-b"].InputDataclipID)
	require.NoError(t, err)
	dataclip.Body = nil
	dataclip.WipedAt = &wipedAt
	err = store.Dataclips().Save(t.Context(), dataclip)
	require.NoError(t, err)

	enqueuedBefore := len(runQueue.Entries())

	_, err = service.Retry(t.Context(), run.ID, steps["job-b"].ID, RetryOptions{})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.ErrorIs(t, err, ErrDataclipWiped)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "input_dataclip", validationErr.Field)

	// No new run exists and nothing was enqueued.
	runs, err := store.Runs().ListByWorkOrder(t.Context(), workOrder.ID, persistence.Include{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Len(t, runQueue.Entries(), enqueuedBefore)
}

func TestWorkOrders_Retry_UnknownRun(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.Retry(t.Context(), "missing", "step", RetryOptions{})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestWorkOrders_Retry_UnknownStep(t *testing.T) {
	service, store, _ := newTestService(t)
	workflow := seedWorkflow(t, store)
	_, run, _ := seedFailedRun(t, service, store, workflow)

	_, err := service.Retry(t.Context(), run.ID, "missing", RetryOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrStepNotFound)
}

func TestWorkOrders_Retry_JobRemovedFromWorkflow(t *testing.T) {
	service, store, _ := newTestService(t)
	workflow := seedWorkflow(t, store)
	_, run, steps := seedFailedRun(t, service, store, workflow)

	// Drop job-b from the workflow before retrying.
	jobs := make([]*models.Job, 0, len(workflow.Jobs))
	for _, job := range workflow.Jobs {
		if job.ID != "job-b" {
			jobs = append(jobs, job)
		}
	}
	workflow.Jobs = jobs
	workflow.LockVersion++
	err := store.Workflows().Save(t.Context(), workflow)
	require.NoError(t, err)

	_, err = service.Retry(t.Context(), run.ID, steps["job-b"].ID, RetryOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestWorkOrders_Retry_AdmissionDenied(t *testing.T) {
	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	bus := &mocks.MockEventPublisher{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	runQueue := queue.NewMemoryQueue()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gate := &mocks.MockLimiter{}
	service, err := NewWorkOrders(store, bus, runQueue, gate, logger)
	require.NoError(t, err)

	workflow := seedWorkflow(t, store)
	workOrder, run, steps := seedFailedRun(t, service, store, workflow)

	denied := &limiter.DeniedError{
		Action:    limiter.ActionNewRun,
		ProjectID: "project-1",
		Requested: 1,
	}
	gate.On("Check", mock.Anything, limiter.Request{
		Action:    limiter.ActionNewRun,
		Amount:    1,
		ProjectID: "project-1",
	}).Return(denied)

	_, err = service.Retry(t.Context(), run.ID, steps["job-b"].ID, RetryOptions{})
	require.Error(t, err)
	assert.True(t, limiter.IsDenied(err))
	assert.Equal(t, denied, err)

	// Denial happens before any write.
	runs, err := store.Runs().ListByWorkOrder(t.Context(), workOrder.ID, persistence.Include{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestWorkOrders_RetryWorkOrders(t *testing.T) {
	service, store, _ := newTestService(t)
	workflow := seedWorkflow(t, store)

	first, firstRun, _ := seedFailedRun(t, service, store, workflow)
	second, secondRun, _ := seedFailedRun(t, service, store, workflow)

	count, err := service.RetryWorkOrders(t.Context(),
		[]string{first.ID, second.ID}, "job-b",
		RetryOptions{ProjectID: "project-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, tc := range []struct {
		workOrderID string
		originalRun string
	}{
		{first.ID, firstRun.ID},
		{second.ID, secondRun.ID},
	} {
		runs, err := store.Runs().ListByWorkOrder(t.Context(), tc.workOrderID, persistence.Include{})
		require.NoError(t, err)
		require.Len(t, runs, 2)

		latest, err := store.Runs().LatestForWorkOrder(t.Context(), tc.workOrderID)
		require.NoError(t, err)
		assert.NotEqual(t, tc.originalRun, latest.ID)
		assert.Equal(t, models.RunPriorityImmediate, latest.Priority)
		require.NotNil(t, latest.StartingJobID)
		assert.Equal(t, "job-b", *latest.StartingJobID)
	}
}

func TestWorkOrders_RetryWorkOrders_TriggerReplayFallback(t *testing.T) {
	service, store, _ := newTestService(t)
	workflow := seedWorkflow(t, store)
	workOrder, run, _ := seedFailedRun(t, service, store, workflow)

	// job-c never executed in this run, so there is no step join for it; the
	// batch falls back to the trigger's entry point (job-a) and retries from
	// the step executed there.
	count, err := service.RetryWorkOrders(t.Context(),
		[]string{workOrder.ID}, "job-c",
		RetryOptions{ProjectID: "project-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	latest, err := store.Runs().LatestForWorkOrder(t.Context(), workOrder.ID)
	require.NoError(t, err)
	assert.NotEqual(t, run.ID, latest.ID)
	require.NotNil(t, latest.StartingJobID)
	assert.Equal(t, "job-a", *latest.StartingJobID)

	// Nothing upstream of the entry point exists, so no steps carry over.
	assert.Empty(t, latest.Steps)
}

func TestWorkOrders_RetryWorkOrders_SkipsWorkOrderWithoutRuns(t *testing.T) {
	service, store, _ := newTestService(t)
	workflow := seedWorkflow(t, store)

	rejected, err := service.Create(t.Context(), CreateWorkOrderRequest{
		Workflow:   workflow,
		Trigger:    workflow.Triggers[0],
		Dataclip:   DataclipInput{Body: json.RawMessage(`{}`)},
		WithoutRun: true,
	})
	require.NoError(t, err)

	retryable, _, _ := seedFailedRun(t, service, store, workflow)

	count, err := service.RetryWorkOrders(t.Context(),
		[]string{rejected.ID, retryable.ID}, "job-b",
		RetryOptions{ProjectID: "project-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWorkOrders_RetryWorkOrders_AdmissionDeniedBlocksBatch(t *testing.T) {
	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	bus := &mocks.MockEventPublisher{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gate := &mocks.MockLimiter{}

	service, err := NewWorkOrders(store, bus, queue.NewMemoryQueue(), gate, logger)
	require.NoError(t, err)

	workflow := seedWorkflow(t, store)
	first, _, _ := seedFailedRun(t, service, store, workflow)
	second, _, _ := seedFailedRun(t, service, store, workflow)

	denied := &limiter.DeniedError{Action: limiter.ActionNewRun, ProjectID: "project-1", Requested: 2}
	gate.On("Check", mock.Anything, limiter.Request{
		Action:    limiter.ActionNewRun,
		Amount:    2,
		ProjectID: "project-1",
	}).Return(denied)

	count, err := service.RetryWorkOrders(t.Context(),
		[]string{first.ID, second.ID}, "job-b",
		RetryOptions{ProjectID: "project-1"})
	require.Error(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, denied, err)

	// Zero new runs exist for the denied batch.
	for _, id := range []string{first.ID, second.ID} {
		runs, err := store.Runs().ListByWorkOrder(t.Context(), id, persistence.Include{})
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	}
}

func TestWorkOrders_RetryRunSteps(t *testing.T) {
	service, store, _ := newTestService(t)
	workflow := seedWorkflow(t, store)

	_, firstRun, firstSteps := seedFailedRun(t, service, store, workflow)
	_, secondRun, secondSteps := seedFailedRun(t, service, store, workflow)

	count, err := service.RetryRunSteps(t.Context(), []RunStepPair{
		{RunID: firstRun.ID, StepID: firstSteps["job-b"].ID},
		{RunID: secondRun.ID, StepID: secondSteps["job-b"].ID},
	}, RetryOptions{ProjectID: "project-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestWorkOrders_RetryRunSteps_DeduplicatesByRun(t *testing.T) {
	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	bus := &mocks.MockEventPublisher{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gate := &mocks.MockLimiter{}
	gate.On("Check", mock.Anything, mock.Anything).Return(nil)

	service, err := NewWorkOrders(store, bus, queue.NewMemoryQueue(), gate, logger)
	require.NoError(t, err)

	workflow := seedWorkflow(t, store)
	workOrder, run, steps := seedFailedRun(t, service, store, workflow)

	// Two pairs for the same run collapse into one retry; the admission
	// check covers one distinct run.
	count, err := service.RetryRunSteps(t.Context(), []RunStepPair{
		{RunID: run.ID, StepID: steps["job-b"].ID},
		{RunID: run.ID, StepID: steps["job-a"].ID},
	}, RetryOptions{ProjectID: "project-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	gate.AssertCalled(t, "Check", mock.Anything, limiter.Request{
		Action:    limiter.ActionNewRun,
		Amount:    1,
		ProjectID: "project-1",
	})

	runs, err := store.Runs().ListByWorkOrder(t.Context(), workOrder.ID, persistence.Include{})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestWorkOrders_RetryRunSteps_EmptyInput(t *testing.T) {
	service, _, _ := newTestService(t)

	count, err := service.RetryRunSteps(t.Context(), nil, RetryOptions{ProjectID: "project-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestWorkOrders_RetryWorkOrders_NoMatches(t *testing.T) {
	service, _, _ := newTestService(t)

	count, err := service.RetryWorkOrders(t.Context(), []string{"missing"}, "job-b", RetryOptions{ProjectID: "project-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// Full lifecycle: create, fail, retry, converge.
func TestWorkOrders_EndToEnd(t *testing.T) {
	service, store, _ := newTestService(t)
	workflow := seedWorkflow(t, store)

	workOrder, err := service.Create(t.Context(), CreateWorkOrderRequest{
		Workflow: workflow,
		Trigger:  workflow.Triggers[0],
		Dataclip: DataclipInput{Body: json.RawMessage(`{"order_id": 1}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderStatePending, workOrder.State)

	run := workOrder.Runs[0]

	step := &models.Step{
		JobID:           "job-a",
		InputDataclipID: workOrder.DataclipID,
		State:           models.StepStateFailed,
	}
	err = store.Steps().Save(t.Context(), run.ID, step)
	require.NoError(t, err)

	run.State = models.RunStateFailed
	updated, err := service.UpdateState(t.Context(), run)
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderStateFailed, updated.State)

	newRun, err := service.Retry(t.Context(), run.ID, step.ID, RetryOptions{CreatedBy: strPtr("user-1")})
	require.NoError(t, err)
	assert.Equal(t, models.RunPriorityImmediate, newRun.Priority)
	assert.Empty(t, newRun.Steps)

	// The retry succeeds this time and the work order converges.
	newRun.State = models.RunStateSuccess
	updated, err = service.UpdateState(t.Context(), newRun)
	require.NoError(t, err)

	// The failed first run still dominates until it is superseded in the
	// precedence table; both runs are part of the aggregate.
	assert.Equal(t, models.WorkOrderStateFailed, updated.State)
	require.Len(t, updated.Runs, 2)
}
