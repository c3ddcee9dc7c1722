package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BolajiAyodeji/lightning/pkg/models"
)

type dataclipRepository struct {
	q querier
}

func (r *dataclipRepository) GetByID(ctx context.Context, id string) (*models.Dataclip, error) {
	query := `
		SELECT id, project_id, type, body, wiped_at, inserted_at, updated_at
		FROM dataclips
		WHERE id = $1
	`

	var (
		dataclip models.Dataclip
		body     []byte
	)

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&dataclip.ID,
		&dataclip.ProjectID,
		&dataclip.Type,
		&body,
		&dataclip.WipedAt,
		&dataclip.InsertedAt,
		&dataclip.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan dataclip: %w", err)
	}

	dataclip.Body = body

	return &dataclip, nil
}

func (r *dataclipRepository) Save(ctx context.Context, dataclip *models.Dataclip) error {
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

	// A wiped dataclip never stores a body, whatever the caller passed.
	body := []byte(dataclip.Body)
	if dataclip.Wiped() {
		body = nil
	}

	query := `
		INSERT INTO dataclips (id, project_id, type, body, wiped_at, inserted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			type = EXCLUDED.type,
			body = EXCLUDED.body,
			wiped_at = EXCLUDED.wiped_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.ExecContext(ctx, query,
		dataclip.ID,
		dataclip.ProjectID,
		dataclip.Type,
		body,
		dataclip.WipedAt,
		dataclip.InsertedAt,
		dataclip.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save dataclip: %w", err)
	}

	return nil
}
