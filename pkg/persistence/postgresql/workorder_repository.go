package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/BolajiAyodeji/lightning/pkg/persistence"
	"github.com/lib/pq"
)

type workOrderRepository struct {
	q querier
}

const workOrderColumns = `id, workflow_id, trigger_id, dataclip_id, snapshot_id, state, last_activity, inserted_at, updated_at`

func (r *workOrderRepository) GetByID(ctx context.Context, id string, include persistence.Include) (*models.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id = $1`

	workOrder, err := scanWorkOrder(r.q.QueryRowContext(ctx, query, id))
	if err != nil || workOrder == nil {
		return workOrder, err
	}

	if include.Runs {
		workOrder.Runs, err = runsForWorkOrder(ctx, r.q, workOrder.ID, include.Steps)
		if err != nil {
			return nil, err
		}
	}

	return workOrder, nil
}

func (r *workOrderRepository) List(ctx context.Context, query persistence.WorkOrderQuery) ([]*models.WorkOrder, error) {
	var (
		conditions []string
		args       []any
	)

	if len(query.IDs) > 0 {
		args = append(args, pq.Array(query.IDs))
		conditions = append(conditions, "id = ANY($"+strconv.Itoa(len(args))+")")
	}

	if query.WorkflowID != "" {
		args = append(args, query.WorkflowID)
		conditions = append(conditions, "workflow_id = $"+strconv.Itoa(len(args)))
	}

	if query.ProjectID != "" {
		args = append(args, query.ProjectID)
		conditions = append(conditions,
			"workflow_id IN (SELECT id FROM workflows WHERE project_id = $"+strconv.Itoa(len(args))+")")
	}

	sqlQuery := `SELECT ` + workOrderColumns + ` FROM work_orders`
	if len(conditions) > 0 {
		sqlQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	sqlQuery += " ORDER BY inserted_at ASC, id ASC"

	if query.Limit > 0 {
		args = append(args, query.Limit)
		sqlQuery += " LIMIT $" + strconv.Itoa(len(args))
	}

	if query.Offset > 0 {
		args = append(args, query.Offset)
		sqlQuery += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query work orders: %w", err)
	}
	defer rows.Close()

	workOrders := make([]*models.WorkOrder, 0)

	for rows.Next() {
		workOrder, err := scanWorkOrderRow(rows)
		if err != nil {
			return nil, err
		}

		workOrders = append(workOrders, workOrder)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate work orders: %w", err)
	}

	if query.Include.Runs {
		for _, workOrder := range workOrders {
			workOrder.Runs, err = runsForWorkOrder(ctx, r.q, workOrder.ID, query.Include.Steps)
			if err != nil {
				return nil, err
			}
		}
	}

	return workOrders, nil
}

func (r *workOrderRepository) Save(ctx context.Context, workOrder *models.WorkOrder) error {
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

	query := `
		INSERT INTO work_orders (` + workOrderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			last_activity = EXCLUDED.last_activity,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.ExecContext(ctx, query,
		workOrder.ID,
		workOrder.WorkflowID,
		workOrder.TriggerID,
		workOrder.DataclipID,
		workOrder.SnapshotID,
		workOrder.State,
		workOrder.LastActivity,
		workOrder.InsertedAt,
		workOrder.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save work order: %w", err)
	}

	return nil
}

func (r *workOrderRepository) UpdateState(ctx context.Context, id string, state models.WorkOrderState, lastActivity time.Time) error {
	query := `
		UPDATE work_orders
		SET state = $2, last_activity = $3, updated_at = $3
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query, id, state, lastActivity)
	if err != nil {
		return fmt.Errorf("failed to update work order state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}

	if affected == 0 {
		return persistence.NewWorkOrderError("UpdateState", id, persistence.ErrWorkOrderNotFound)
	}

	return nil
}

func scanWorkOrder(row *sql.Row) (*models.WorkOrder, error) {
	var workOrder models.WorkOrder

	err := row.Scan(
		&workOrder.ID,
		&workOrder.WorkflowID,
		&workOrder.TriggerID,
		&workOrder.DataclipID,
		&workOrder.SnapshotID,
		&workOrder.State,
		&workOrder.LastActivity,
		&workOrder.InsertedAt,
		&workOrder.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan work order: %w", err)
	}

	return &workOrder, nil
}

func scanWorkOrderRow(rows *sql.Rows) (*models.WorkOrder, error) {
	var workOrder models.WorkOrder

	err := rows.Scan(
		&workOrder.ID,
		&workOrder.WorkflowID,
		&workOrder.TriggerID,
		&workOrder.DataclipID,
		&workOrder.SnapshotID,
		&workOrder.State,
		&workOrder.LastActivity,
		&workOrder.InsertedAt,
		&workOrder.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan work order: %w", err)
	}

	return &workOrder, nil
}
