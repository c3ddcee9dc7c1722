// Package postgresql provides the PostgreSQL persistence implementation for
// work orders, runs, steps, dataclips, snapshots and workflows.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/BolajiAyodeji/lightning/pkg/persistence"
	"github.com/BolajiAyodeji/lightning/pkg/persistence/sqlbase"
	_ "github.com/lib/pq" // postgres driver
)

// querier is the subset of database operations shared by *sql.DB and
// *sql.Tx, so every repository works both standalone and inside Atomic.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
	repos  repositories
}

// repositories binds the six entity repositories to one querier.
type repositories struct {
	workflows  *workflowRepository
	snapshots  *snapshotRepository
	dataclips  *dataclipRepository
	workOrders *workOrderRepository
	runs       *runRepository
	steps      *stepRepository
}

func newRepositories(q querier) repositories {
	return repositories{
		workflows:  &workflowRepository{q: q},
		snapshots:  &snapshotRepository{q: q},
		dataclips:  &dataclipRepository{q: q},
		workOrders: &workOrderRepository{q: q},
		runs:       &runRepository{q: q},
		steps:      &stepRepository{q: q},
	}
}

func (r repositories) Workflows() persistence.WorkflowRepository   { return r.workflows }
func (r repositories) Snapshots() persistence.SnapshotRepository   { return r.snapshots }
func (r repositories) Dataclips() persistence.DataclipRepository   { return r.dataclips }
func (r repositories) WorkOrders() persistence.WorkOrderRepository { return r.workOrders }
func (r repositories) Runs() persistence.RunRepository             { return r.runs }
func (r repositories) Steps() persistence.StepRepository           { return r.steps }

// NewPersistence connects to PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:     database,
		logger: logger,
		repos:  newRepositories(database),
	}, nil
}

func (p *Persistence) Workflows() persistence.WorkflowRepository   { return p.repos.Workflows() }
func (p *Persistence) Snapshots() persistence.SnapshotRepository   { return p.repos.Snapshots() }
func (p *Persistence) Dataclips() persistence.DataclipRepository   { return p.repos.Dataclips() }
func (p *Persistence) WorkOrders() persistence.WorkOrderRepository { return p.repos.WorkOrders() }
func (p *Persistence) Runs() persistence.RunRepository             { return p.repos.Runs() }
func (p *Persistence) Steps() persistence.StepRepository           { return p.repos.Steps() }

// Atomic runs fn against repositories bound to a single database
// transaction. An error from fn rolls every write back.
func (p *Persistence) Atomic(ctx context.Context, fn func(repos persistence.Repositories) error) error {
	transaction, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = fn(newRepositories(transaction))
	if err != nil {
		rollbackErr := transaction.Rollback()
		if rollbackErr != nil {
			p.logger.ErrorContext(ctx, "failed to roll back transaction", "error", rollbackErr)
		}

		return err
	}

	err = transaction.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
