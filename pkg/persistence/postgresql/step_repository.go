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

type stepRepository struct {
	q querier
}

const stepColumns = `id, job_id, input_dataclip_id, output_dataclip_id, state, started_at, finished_at, inserted_at`

func (r *stepRepository) GetByID(ctx context.Context, id string) (*models.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM steps WHERE id = $1`

	var (
		step    models.Step
		inputID sql.NullString
	)

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&step.ID,
		&step.JobID,
		&inputID,
		&step.OutputDataclipID,
		&step.State,
		&step.StartedAt,
		&step.FinishedAt,
		&step.InsertedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan step: %w", err)
	}

	step.InputDataclipID = inputID.String

	return &step, nil
}

func (r *stepRepository) ListByRun(ctx context.Context, runID string) ([]*models.Step, error) {
	return stepsForRun(ctx, r.q, runID)
}

func (r *stepRepository) Save(ctx context.Context, runID string, step *models.Step) error {
	var runExists bool

	err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM runs WHERE id = $1)`, runID).Scan(&runExists)
	if err != nil {
		return fmt.Errorf("failed to check run %s: %w", runID, err)
	}

	if !runExists {
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

	query := `
		INSERT INTO steps (` + stepColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			output_dataclip_id = EXCLUDED.output_dataclip_id,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at
	`

	_, err = r.q.ExecContext(ctx, query,
		step.ID,
		step.JobID,
		nullableID(step.InputDataclipID),
		step.OutputDataclipID,
		step.State,
		step.StartedAt,
		step.FinishedAt,
		step.InsertedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}

	_, err = r.q.ExecContext(ctx,
		`INSERT INTO run_steps (run_id, step_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		runID, step.ID)
	if err != nil {
		return fmt.Errorf("failed to join step to run: %w", err)
	}

	return nil
}

func stepsForRun(ctx context.Context, q querier, runID string) ([]*models.Step, error) {
	query := `
		SELECT s.id, s.job_id, s.input_dataclip_id, s.output_dataclip_id,
			   s.state, s.started_at, s.finished_at, s.inserted_at
		FROM steps s
		JOIN run_steps rs ON rs.step_id = s.id
		WHERE rs.run_id = $1
		ORDER BY rs.inserted_at ASC, s.id ASC
	`

	rows, err := q.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	steps := make([]*models.Step, 0)

	for rows.Next() {
		var (
			step    models.Step
			inputID sql.NullString
		)

		err = rows.Scan(
			&step.ID,
			&step.JobID,
			&inputID,
			&step.OutputDataclipID,
			&step.State,
			&step.StartedAt,
			&step.FinishedAt,
			&step.InsertedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		step.InputDataclipID = inputID.String
		steps = append(steps, &step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate steps: %w", err)
	}

	return steps, nil
}

// nullableID maps an empty string id to SQL NULL for UUID columns.
func nullableID(id string) any {
	if id == "" {
		return nil
	}

	return id
}
