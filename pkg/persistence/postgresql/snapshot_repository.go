package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BolajiAyodeji/lightning/pkg/models"
)

type snapshotRepository struct {
	q querier
}

const snapshotColumns = `id, workflow_id, name, lock_version, triggers, jobs, edges, created_at`

func (r *snapshotRepository) GetByID(ctx context.Context, id string) (*models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE id = $1`

	return r.scanSnapshot(r.q.QueryRowContext(ctx, query, id))
}

func (r *snapshotRepository) LatestForWorkflow(ctx context.Context, workflowID string, lockVersion int) (*models.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE workflow_id = $1 AND lock_version = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	return r.scanSnapshot(r.q.QueryRowContext(ctx, query, workflowID, lockVersion))
}

func (r *snapshotRepository) Save(ctx context.Context, snapshot *models.Snapshot) error {
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

	triggersJSON, jobsJSON, edgesJSON, err := graphColumns(snapshot.Triggers, snapshot.Jobs, snapshot.Edges)
	if err != nil {
		return err
	}

	// Snapshots are immutable: conflicts on id are left untouched.
	query := `
		INSERT INTO snapshots (` + snapshotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = r.q.ExecContext(ctx, query,
		snapshot.ID,
		snapshot.WorkflowID,
		snapshot.Name,
		snapshot.LockVersion,
		triggersJSON,
		jobsJSON,
		edgesJSON,
		snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

func (r *snapshotRepository) scanSnapshot(row *sql.Row) (*models.Snapshot, error) {
	var (
		snapshot     models.Snapshot
		triggersJSON []byte
		jobsJSON     []byte
		edgesJSON    []byte
	)

	err := row.Scan(
		&snapshot.ID,
		&snapshot.WorkflowID,
		&snapshot.Name,
		&snapshot.LockVersion,
		&triggersJSON,
		&jobsJSON,
		&edgesJSON,
		&snapshot.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	err = unmarshalGraph(triggersJSON, jobsJSON, edgesJSON, &snapshot.Triggers, &snapshot.Jobs, &snapshot.Edges)
	if err != nil {
		return nil, err
	}

	return &snapshot, nil
}
