package queue

import (
	"context"
	"fmt"

	"github.com/BolajiAyodeji/lightning/pkg/models"
	redis "github.com/redis/go-redis/v9"
)

const defaultStream = "lightning:runs"

// RedisQueue publishes runs onto Redis streams. Immediate-priority runs go
// to a dedicated stream so retries can jump the claim order.
type RedisQueue struct {
	client redis.UniversalClient
	stream string
}

// NewRedisQueue creates a queue from a redis URL.
func NewRedisQueue(url string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return &RedisQueue{
		client: redis.NewClient(opts),
		stream: defaultStream,
	}, nil
}

// NewRedisQueueWithClient creates a queue over an existing client.
func NewRedisQueueWithClient(client redis.UniversalClient) *RedisQueue {
	return &RedisQueue{
		client: client,
		stream: defaultStream,
	}
}

func (q *RedisQueue) streamFor(priority models.RunPriority) string {
	if priority == models.RunPriorityImmediate {
		return q.stream + ":immediate"
	}

	return q.stream
}

func (q *RedisQueue) Enqueue(ctx context.Context, projectID string, run *models.Run) error {
	values := map[string]any{
		"run_id":        run.ID,
		"work_order_id": run.WorkOrderID,
		"project_id":    projectID,
		"dataclip_id":   run.DataclipID,
		"snapshot_id":   run.SnapshotID,
		"priority":      string(run.Priority),
	}

	if run.StartingJobID != nil {
		values["starting_job_id"] = *run.StartingJobID
	}

	if run.StartingTriggerID != nil {
		values["starting_trigger_id"] = *run.StartingTriggerID
	}

	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streamFor(run.Priority),
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue run %s: %w", run.ID, err)
	}

	return nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
