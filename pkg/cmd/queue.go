package cmd

import (
	"fmt"
	"strings"

	"github.com/BolajiAyodeji/lightning/pkg/queue"
)

// NewRunQueue selects a run queue backend from the queue URL. redis:// URLs
// get the Redis-backed queue; an empty URL falls back to the in-memory queue.
func NewRunQueue(queueURL string) (queue.RunQueue, error) {
	if strings.HasPrefix(queueURL, "redis://") {
		redisQueue, err := queue.NewRedisQueue(queueURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis run queue: %w", err)
		}

		return redisQueue, nil
	}

	return queue.NewMemoryQueue(), nil
}
