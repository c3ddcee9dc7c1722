package queue

import (
	"context"
	"sync"

	"github.com/BolajiAyodeji/lightning/pkg/models"
)

// Enqueued is a run captured by the in-memory queue.
type Enqueued struct {
	ProjectID string
	Run       *models.Run
}

// MemoryQueue collects enqueued runs in memory. It backs local development
// and lets tests assert on enqueue order.
type MemoryQueue struct {
	mu      sync.Mutex
	entries []Enqueued
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(_ context.Context, projectID string, run *models.Run) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = append(q.entries, Enqueued{ProjectID: projectID, Run: run})

	return nil
}

// Entries returns a copy of everything enqueued so far.
func (q *MemoryQueue) Entries() []Enqueued {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Enqueued, len(q.entries))
	copy(out, q.entries)

	return out
}

func (q *MemoryQueue) Close() error {
	return nil
}
