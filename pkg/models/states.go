package models

// RunState represents the lifecycle state of a run as reported by the
// execution engine.
type RunState string

const (
	RunStateAvailable RunState = "available" // Enqueued, waiting for a worker claim
	RunStateClaimed   RunState = "claimed"
	RunStateStarted   RunState = "started"
	RunStateSuccess   RunState = "success"
	RunStateFailed    RunState = "failed"
	RunStateCrashed   RunState = "crashed"
	RunStateCancelled RunState = "cancelled"
	RunStateKilled    RunState = "killed"
	RunStateExhausted RunState = "exhausted"
	RunStateLost      RunState = "lost"
)

// Valid reports whether s is one of the run states the execution engine may
// report. Anything else must be rejected before it reaches state derivation.
func (s RunState) Valid() bool {
	switch s {
	case RunStateAvailable, RunStateClaimed, RunStateStarted, RunStateSuccess,
		RunStateFailed, RunStateCrashed, RunStateCancelled, RunStateKilled,
		RunStateExhausted, RunStateLost:
		return true
	}

	return false
}

// Final reports whether the run can no longer change state.
func (s RunState) Final() bool {
	switch s {
	case RunStateSuccess, RunStateFailed, RunStateCrashed, RunStateCancelled,
		RunStateKilled, RunStateExhausted, RunStateLost:
		return true
	case RunStateAvailable, RunStateClaimed, RunStateStarted:
		return false
	}

	return false
}

// RunPriority controls claim ordering on the execution queue. Retries are
// always enqueued immediate.
type RunPriority string

const (
	RunPriorityNormal    RunPriority = "normal"
	RunPriorityImmediate RunPriority = "immediate"
)

// WorkOrderState is the aggregate state of a work order, derived from the
// states of its runs.
type WorkOrderState string

const (
	WorkOrderStatePending   WorkOrderState = "pending"
	WorkOrderStateRunning   WorkOrderState = "running"
	WorkOrderStateSuccess   WorkOrderState = "success"
	WorkOrderStateFailed    WorkOrderState = "failed"
	WorkOrderStateCrashed   WorkOrderState = "crashed"
	WorkOrderStateCancelled WorkOrderState = "cancelled"
	WorkOrderStateKilled    WorkOrderState = "killed"
	WorkOrderStateExhausted WorkOrderState = "exhausted"
	WorkOrderStateLost      WorkOrderState = "lost"
	WorkOrderStateRejected  WorkOrderState = "rejected"
)

// workOrderStatePrecedence orders run states from most to least pressing.
// The first run state present in the set decides the work order state.
var workOrderStatePrecedence = []struct {
	run       RunState
	workOrder WorkOrderState
}{
	{RunStateCrashed, WorkOrderStateCrashed},
	{RunStateFailed, WorkOrderStateFailed},
	{RunStateKilled, WorkOrderStateKilled},
	{RunStateExhausted, WorkOrderStateExhausted},
	{RunStateLost, WorkOrderStateLost},
	{RunStateCancelled, WorkOrderStateCancelled},
	{RunStateStarted, WorkOrderStateRunning},
	{RunStateClaimed, WorkOrderStateRunning},
}

// DeriveWorkOrderState computes the aggregate state for the given set of
// runs. The result is a pure function of the run states: recomputing from
// the same set always yields the same answer, regardless of order.
func DeriveWorkOrderState(runs []*Run) WorkOrderState {
	if len(runs) == 0 {
		return WorkOrderStatePending
	}

	present := make(map[RunState]bool, len(runs))
	for _, run := range runs {
		present[run.State] = true
	}

	for _, entry := range workOrderStatePrecedence {
		if present[entry.run] {
			return entry.workOrder
		}
	}

	if present[RunStateAvailable] {
		return WorkOrderStatePending
	}

	return WorkOrderStateSuccess
}
