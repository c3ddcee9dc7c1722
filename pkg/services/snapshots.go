package services

import (
	"context"
	"fmt"

	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/BolajiAyodeji/lightning/pkg/persistence"
)

// EnsureSnapshot returns the snapshot matching the workflow's current lock
// version, capturing one lazily when the workflow has been edited since the
// last snapshot was taken. Runs always anchor to the snapshot current at
// their creation.
func EnsureSnapshot(ctx context.Context, repos persistence.Repositories, workflow *models.Workflow) (*models.Snapshot, error) {
	snapshot, err := repos.Snapshots().LatestForWorkflow(ctx, workflow.ID, workflow.LockVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to look up snapshot for workflow %s: %w", workflow.ID, err)
	}

	if snapshot != nil {
		return snapshot, nil
	}

	snapshot = models.SnapshotOf(workflow)

	err = repos.Snapshots().Save(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to save snapshot for workflow %s: %w", workflow.ID, err)
	}

	return snapshot, nil
}
