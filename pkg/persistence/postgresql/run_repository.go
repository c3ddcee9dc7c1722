package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/BolajiAyodeji/lightning/pkg/persistence"
)

type runRepository struct {
	q querier
}

const runColumns = `id, work_order_id, starting_trigger_id, starting_job_id, created_by_id, dataclip_id, snapshot_id, priority, state, inserted_at, updated_at`

func (r *runRepository) GetByID(ctx context.Context, id string, include persistence.Include) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	run, err := scanRun(r.q.QueryRowContext(ctx, query, id))
	if err != nil || run == nil {
		return run, err
	}

	if include.Steps {
		run.Steps, err = stepsForRun(ctx, r.q, run.ID)
		if err != nil {
			return nil, err
		}
	}

	return run, nil
}

func (r *runRepository) ListByWorkOrder(ctx context.Context, workOrderID string, include persistence.Include) ([]*models.Run, error) {
	return runsForWorkOrder(ctx, r.q, workOrderID, include.Steps)
}

func (r *runRepository) LatestForWorkOrder(ctx context.Context, workOrderID string) (*models.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE work_order_id = $1
		ORDER BY inserted_at DESC, id DESC
		LIMIT 1
	`

	run, err := scanRun(r.q.QueryRowContext(ctx, query, workOrderID))
	if err != nil || run == nil {
		return run, err
	}

	run.Steps, err = stepsForRun(ctx, r.q, run.ID)
	if err != nil {
		return nil, err
	}

	return run, nil
}

func (r *runRepository) Save(ctx context.Context, run *models.Run) error {
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

	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			priority = EXCLUDED.priority,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.ExecContext(ctx, query,
		run.ID,
		run.WorkOrderID,
		run.StartingTriggerID,
		run.StartingJobID,
		run.CreatedByID,
		run.DataclipID,
		run.SnapshotID,
		run.Priority,
		run.State,
		run.InsertedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	// Rebuild the step joins from the attached set. Carried-over steps must
	// already exist.
	_, err = r.q.ExecContext(ctx, `DELETE FROM run_steps WHERE run_id = $1`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to clear run steps: %w", err)
	}

	for _, step := range run.Steps {
		var exists bool

		err = r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM steps WHERE id = $1)`, step.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check step %s: %w", step.ID, err)
		}

		if !exists {
			return persistence.NewRunError("Save", run.ID, persistence.ErrStepNotFound)
		}

		_, err = r.q.ExecContext(ctx,
			`INSERT INTO run_steps (run_id, step_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			run.ID, step.ID)
		if err != nil {
			return fmt.Errorf("failed to join step %s: %w", step.ID, err)
		}
	}

	return nil
}

func runsForWorkOrder(ctx context.Context, q querier, workOrderID string, withSteps bool) ([]*models.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE work_order_id = $1
		ORDER BY inserted_at ASC, id ASC
	`

	rows, err := q.QueryContext(ctx, query, workOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*models.Run, 0)

	for rows.Next() {
		run, err := scanRunRow(rows)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	if withSteps {
		for _, run := range runs {
			run.Steps, err = stepsForRun(ctx, q, run.ID)
			if err != nil {
				return nil, err
			}
		}
	}

	return runs, nil
}

func scanRun(row *sql.Row) (*models.Run, error) {
	var run models.Run

	err := row.Scan(
		&run.ID,
		&run.WorkOrderID,
		&run.StartingTriggerID,
		&run.StartingJobID,
		&run.CreatedByID,
		&run.DataclipID,
		&run.SnapshotID,
		&run.Priority,
		&run.State,
		&run.InsertedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	return &run, nil
}

func scanRunRow(rows *sql.Rows) (*models.Run, error) {
	var run models.Run

	err := rows.Scan(
		&run.ID,
		&run.WorkOrderID,
		&run.StartingTriggerID,
		&run.StartingJobID,
		&run.CreatedByID,
		&run.DataclipID,
		&run.SnapshotID,
		&run.Priority,
		&run.State,
		&run.InsertedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	return &run, nil
}
