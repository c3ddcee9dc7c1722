package file

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/BolajiAyodeji/lightning/pkg/persistence"
	"github.com/google/uuid"
)

// cloneRecord deep-copies a record so callers never hold pointers into the
// shared state.
func cloneRecord[T any](record *T) (*T, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to clone record: %w", err)
	}

	copied := new(T)

	err = json.Unmarshal(payload, copied)
	if err != nil {
		return nil, fmt.Errorf("failed to clone record: %w", err)
	}

	return copied, nil
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}

	return id.String(), nil
}

type workflowRepository struct {
	s store
}

func (r *workflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	var out *models.Workflow

	err := r.s.view(func(s *state) error {
		workflow, ok := s.Workflows[id]
		if !ok || workflow.DeletedAt != nil {
			return nil
		}

		copied, err := cloneRecord(workflow)
		if err != nil {
			return err
		}

		out = copied

		return nil
	})

	return out, err
}

func (r *workflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	return r.s.update(func(s *state) error {
		now := time.Now().UTC()

		if workflow.ID == "" {
			id, err := newID()
			if err != nil {
				return err
			}

			workflow.ID = id
		}

		if workflow.InsertedAt.IsZero() {
			workflow.InsertedAt = now
		}

		workflow.UpdatedAt = now

		copied, err := cloneRecord(workflow)
		if err != nil {
			return err
		}

		s.Workflows[workflow.ID] = copied

		return nil
	})
}

type snapshotRepository struct {
	s store
}

func (r *snapshotRepository) GetByID(_ context.Context, id string) (*models.Snapshot, error) {
	var out *models.Snapshot

	err := r.s.view(func(s *state) error {
		snapshot, ok := s.Snapshots[id]
		if !ok {
			return nil
		}

		copied, err := cloneRecord(snapshot)
		if err != nil {
			return err
		}

		out = copied

		return nil
	})

	return out, err
}

func (r *snapshotRepository) LatestForWorkflow(_ context.Context, workflowID string, lockVersion int) (*models.Snapshot, error) {
	var out *models.Snapshot

	err := r.s.view(func(s *state) error {
		for _, snapshot := range s.Snapshots {
			if snapshot.WorkflowID != workflowID || snapshot.LockVersion != lockVersion {
				continue
			}

			copied, err := cloneRecord(snapshot)
			if err != nil {
				return err
			}

			out = copied

			return nil
		}

		return nil
	})

	return out, err
}

func (r *snapshotRepository) Save(_ context.Context, snapshot *models.Snapshot) error {
	return r.s.update(func(s *state) error {
		if snapshot.ID == "" {
			id, err := newID()
			if err != nil {
				return err
			}

			snapshot.ID = id
		}

		if snapshot.CreatedAt.IsZero() {
			snapshot.CreatedAt = time.Now().UTC()
		}

		copied, err := cloneRecord(snapshot)
		if err != nil {
			return err
		}

		s.Snapshots[snapshot.ID] = copied

		return nil
	})
}

type dataclipRepository struct {
	s store
}

func (r *dataclipRepository) GetByID(_ context.Context, id string) (*models.Dataclip, error) {
	var out *models.Dataclip

	err := r.s.view(func(s *state) error {
		dataclip, ok := s.Dataclips[id]
		if !ok {
			return nil
		}

		copied, err := cloneRecord(dataclip)
		if err != nil {
			return err
		}

		out = copied

		return nil
	})

	return out, err
}

func (r *dataclipRepository) Save(_ context.Context, dataclip *models.Dataclip) error {
	return r.s.update(func(s *state) error {
		now := time.Now().UTC()

		if dataclip.ID == "" {
			id, err := newID()
			if err != nil {
				return err
			}

			dataclip.ID = id
		}

		if dataclip.InsertedAt.IsZero() {
			dataclip.InsertedAt = now
		}

		dataclip.UpdatedAt = now

		copied, err := cloneRecord(dataclip)
		if err != nil {
			return err
		}

		s.Dataclips[dataclip.ID] = copied

		return nil
	})
}

type workOrderRepository struct {
	s store
}

func (r *workOrderRepository) GetByID(_ context.Context, id string, include persistence.Include) (*models.WorkOrder, error) {
	var out *models.WorkOrder

	err := r.s.view(func(s *state) error {
		workOrder, ok := s.WorkOrders[id]
		if !ok {
			return nil
		}

		copied, err := cloneRecord(workOrder)
		if err != nil {
			return err
		}

		if include.Runs {
			copied.Runs, err = runsOfWorkOrder(s, id, include.Steps)
			if err != nil {
				return err
			}
		}

		out = copied

		return nil
	})

	return out, err
}

func (r *workOrderRepository) List(_ context.Context, query persistence.WorkOrderQuery) ([]*models.WorkOrder, error) {
	out := make([]*models.WorkOrder, 0)

	err := r.s.view(func(s *state) error {
		wanted := make(map[string]bool, len(query.IDs))
		for _, id := range query.IDs {
			wanted[id] = true
		}

		matched := make([]*models.WorkOrder, 0)

		for _, workOrder := range s.WorkOrders {
			if len(wanted) > 0 && !wanted[workOrder.ID] {
				continue
			}

			if query.WorkflowID != "" && workOrder.WorkflowID != query.WorkflowID {
				continue
			}

			if query.ProjectID != "" {
				workflow, ok := s.Workflows[workOrder.WorkflowID]
				if !ok || workflow.ProjectID != query.ProjectID {
					continue
				}
			}

			matched = append(matched, workOrder)
		}

		sort.Slice(matched, func(i, j int) bool {
			if matched[i].InsertedAt.Equal(matched[j].InsertedAt) {
				return matched[i].ID < matched[j].ID
			}

			return matched[i].InsertedAt.Before(matched[j].InsertedAt)
		})

		if query.Offset > 0 {
			if query.Offset >= len(matched) {
				matched = nil
			} else {
				matched = matched[query.Offset:]
			}
		}

		if query.Limit > 0 && query.Limit < len(matched) {
			matched = matched[:query.Limit]
		}

		for _, workOrder := range matched {
			copied, err := cloneRecord(workOrder)
			if err != nil {
				return err
			}

			if query.Include.Runs {
				copied.Runs, err = runsOfWorkOrder(s, copied.ID, query.Include.Steps)
				if err != nil {
					return err
				}
			}

			out = append(out, copied)
		}

		return nil
	})

	return out, err
}

func (r *workOrderRepository) Save(_ context.Context, workOrder *models.WorkOrder) error {
	return r.s.update(func(s *state) error {
		now := time.Now().UTC()

		if workOrder.ID == "" {
			id, err := newID()
			if err != nil {
				return err
			}

			workOrder.ID = id
		}

		if workOrder.InsertedAt.IsZero() {
			workOrder.InsertedAt = now
		}

		if workOrder.LastActivity.IsZero() {
			workOrder.LastActivity = now
		}

		workOrder.UpdatedAt = now

		copied, err := cloneRecord(workOrder)
		if err != nil {
			return err
		}

		copied.Runs = nil
		s.WorkOrders[workOrder.ID] = copied

		return nil
	})
}

func (r *workOrderRepository) UpdateState(_ context.Context, id string, workOrderState models.WorkOrderState, lastActivity time.Time) error {
	return r.s.update(func(s *state) error {
		workOrder, ok := s.WorkOrders[id]
		if !ok {
			return persistence.NewWorkOrderError("UpdateState", id, persistence.ErrWorkOrderNotFound)
		}

		workOrder.State = workOrderState
		workOrder.LastActivity = lastActivity
		workOrder.UpdatedAt = lastActivity

		return nil
	})
}

type runRepository struct {
	s store
}

func (r *runRepository) GetByID(_ context.Context, id string, include persistence.Include) (*models.Run, error) {
	var out *models.Run

	err := r.s.view(func(s *state) error {
		run, ok := s.Runs[id]
		if !ok {
			return nil
		}

		copied, err := cloneRecord(run)
		if err != nil {
			return err
		}

		if include.Steps {
			copied.Steps, err = stepsOfRun(s, id)
			if err != nil {
				return err
			}
		}

		out = copied

		return nil
	})

	return out, err
}

func (r *runRepository) ListByWorkOrder(_ context.Context, workOrderID string, include persistence.Include) ([]*models.Run, error) {
	var out []*models.Run

	err := r.s.view(func(s *state) error {
		runs, err := runsOfWorkOrder(s, workOrderID, include.Steps)
		if err != nil {
			return err
		}

		out = runs

		return nil
	})

	return out, err
}

func (r *runRepository) LatestForWorkOrder(_ context.Context, workOrderID string) (*models.Run, error) {
	var out *models.Run

	err := r.s.view(func(s *state) error {
		runs, err := runsOfWorkOrder(s, workOrderID, true)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			return nil
		}

		out = runs[len(runs)-1]

		return nil
	})

	return out, err
}

func (r *runRepository) Save(_ context.Context, run *models.Run) error {
	return r.s.update(func(s *state) error {
		now := time.Now().UTC()

		if run.ID == "" {
			id, err := newID()
			if err != nil {
				return err
			}

			run.ID = id
		}

		if run.InsertedAt.IsZero() {
			run.InsertedAt = now
		}

		run.UpdatedAt = now

		stepIDs := make([]string, 0, len(run.Steps))

		for _, step := range run.Steps {
			_, ok := s.Steps[step.ID]
			if !ok {
				return persistence.NewRunError("Save", run.ID, persistence.ErrStepNotFound)
			}

			stepIDs = append(stepIDs, step.ID)
		}

		copied, err := cloneRecord(run)
		if err != nil {
			return err
		}

		copied.Steps = nil
		s.Runs[run.ID] = copied
		s.RunSteps[run.ID] = stepIDs

		return nil
	})
}

type stepRepository struct {
	s store
}

func (r *stepRepository) GetByID(_ context.Context, id string) (*models.Step, error) {
	var out *models.Step

	err := r.s.view(func(s *state) error {
		step, ok := s.Steps[id]
		if !ok {
			return nil
		}

		copied, err := cloneRecord(step)
		if err != nil {
			return err
		}

		out = copied

		return nil
	})

	return out, err
}

func (r *stepRepository) ListByRun(_ context.Context, runID string) ([]*models.Step, error) {
	var out []*models.Step

	err := r.s.view(func(s *state) error {
		steps, err := stepsOfRun(s, runID)
		if err != nil {
			return err
		}

		out = steps

		return nil
	})

	return out, err
}

func (r *stepRepository) Save(_ context.Context, runID string, step *models.Step) error {
	return r.s.update(func(s *state) error {
		_, ok := s.Runs[runID]
		if !ok {
			return persistence.NewRunError("SaveStep", runID, persistence.ErrRunNotFound)
		}

		if step.ID == "" {
			id, err := newID()
			if err != nil {
				return err
			}

			step.ID = id
		}

		if step.InsertedAt.IsZero() {
			step.InsertedAt = time.Now().UTC()
		}

		copied, err := cloneRecord(step)
		if err != nil {
			return err
		}

		s.Steps[step.ID] = copied

		for _, existing := range s.RunSteps[runID] {
			if existing == step.ID {
				return nil
			}
		}

		s.RunSteps[runID] = append(s.RunSteps[runID], step.ID)

		return nil
	})
}

// runsOfWorkOrder returns cloned runs of a work order ordered by insertion
// time ascending, id as tiebreak.
func runsOfWorkOrder(s *state, workOrderID string, withSteps bool) ([]*models.Run, error) {
	matched := make([]*models.Run, 0)

	for _, run := range s.Runs {
		if run.WorkOrderID == workOrderID {
			matched = append(matched, run)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].InsertedAt.Equal(matched[j].InsertedAt) {
			return matched[i].ID < matched[j].ID
		}

		return matched[i].InsertedAt.Before(matched[j].InsertedAt)
	})

	out := make([]*models.Run, 0, len(matched))

	for _, run := range matched {
		copied, err := cloneRecord(run)
		if err != nil {
			return nil, err
		}

		if withSteps {
			copied.Steps, err = stepsOfRun(s, run.ID)
			if err != nil {
				return nil, err
			}
		}

		out = append(out, copied)
	}

	return out, nil
}

// stepsOfRun returns cloned steps of a run in join order.
func stepsOfRun(s *state, runID string) ([]*models.Step, error) {
	stepIDs := s.RunSteps[runID]
	out := make([]*models.Step, 0, len(stepIDs))

	for _, stepID := range stepIDs {
		step, ok := s.Steps[stepID]
		if !ok {
			continue
		}

		copied, err := cloneRecord(step)
		if err != nil {
			return nil, err
		}

		out = append(out, copied)
	}

	return out, nil
}
