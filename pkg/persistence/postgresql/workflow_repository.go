package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/google/uuid"
)

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}

	return id.String(), nil
}

// graphColumns marshals the three graph collections of a workflow or
// snapshot for JSONB storage.
func graphColumns(triggers []*models.Trigger, jobs []*models.Job, edges []*models.Edge) ([]byte, []byte, []byte, error) {
	triggersJSON, err := json.Marshal(triggers)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal triggers: %w", err)
	}

	jobsJSON, err := json.Marshal(jobs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal jobs: %w", err)
	}

	edgesJSON, err := json.Marshal(edges)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal edges: %w", err)
	}

	return triggersJSON, jobsJSON, edgesJSON, nil
}

type workflowRepository struct {
	q querier
}

func (r *workflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT id, name, project_id, lock_version, triggers, jobs, edges,
			   inserted_at, updated_at, deleted_at
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL
	`

	var (
		workflow     models.Workflow
		triggersJSON []byte
		jobsJSON     []byte
		edgesJSON    []byte
	)

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.ProjectID,
		&workflow.LockVersion,
		&triggersJSON,
		&jobsJSON,
		&edgesJSON,
		&workflow.InsertedAt,
		&workflow.UpdatedAt,
		&workflow.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	err = unmarshalGraph(triggersJSON, jobsJSON, edgesJSON, &workflow.Triggers, &workflow.Jobs, &workflow.Edges)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}

func (r *workflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
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

	triggersJSON, jobsJSON, edgesJSON, err := graphColumns(workflow.Triggers, workflow.Jobs, workflow.Edges)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflows (
			id, name, project_id, lock_version, triggers, jobs, edges,
			inserted_at, updated_at, deleted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			project_id = EXCLUDED.project_id,
			lock_version = EXCLUDED.lock_version,
			triggers = EXCLUDED.triggers,
			jobs = EXCLUDED.jobs,
			edges = EXCLUDED.edges,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err = r.q.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.ProjectID,
		workflow.LockVersion,
		triggersJSON,
		jobsJSON,
		edgesJSON,
		workflow.InsertedAt,
		workflow.UpdatedAt,
		workflow.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

func unmarshalGraph(triggersJSON, jobsJSON, edgesJSON []byte, triggers *[]*models.Trigger, jobs *[]*models.Job, edges *[]*models.Edge) error {
	err := json.Unmarshal(triggersJSON, triggers)
	if err != nil {
		return fmt.Errorf("failed to unmarshal triggers: %w", err)
	}

	err = json.Unmarshal(jobsJSON, jobs)
	if err != nil {
		return fmt.Errorf("failed to unmarshal jobs: %w", err)
	}

	err = json.Unmarshal(edgesJSON, edges)
	if err != nil {
		return fmt.Errorf("failed to unmarshal edges: %w", err)
	}

	return nil
}
