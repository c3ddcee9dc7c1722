// Package file provides a file-backed persistence implementation used for
// local development and tests. The whole store is held in memory and flushed
// to a single JSON file; transactions operate on a copy of the state that is
// swapped in only when the transaction function succeeds.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/BolajiAyodeji/lightning/pkg/persistence"
)

const stateFile = "lightning.json"

// state holds every collection, fully normalized: work orders are stored
// without their runs, runs without their steps, and run/step joins as id
// lists in insertion order.
type state struct {
	Workflows  map[string]*models.Workflow  `json:"workflows"`
	Snapshots  map[string]*models.Snapshot  `json:"snapshots"`
	Dataclips  map[string]*models.Dataclip  `json:"dataclips"`
	WorkOrders map[string]*models.WorkOrder `json:"work_orders"`
	Runs       map[string]*models.Run       `json:"runs"`
	RunSteps   map[string][]string          `json:"run_steps"`
	Steps      map[string]*models.Step      `json:"steps"`
}

func newState() *state {
	return &state{
		Workflows:  make(map[string]*models.Workflow),
		Snapshots:  make(map[string]*models.Snapshot),
		Dataclips:  make(map[string]*models.Dataclip),
		WorkOrders: make(map[string]*models.WorkOrder),
		Runs:       make(map[string]*models.Run),
		RunSteps:   make(map[string][]string),
		Steps:      make(map[string]*models.Step),
	}
}

func (s *state) clone() (*state, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot state: %w", err)
	}

	copied := newState()

	err = json.Unmarshal(payload, copied)
	if err != nil {
		return nil, fmt.Errorf("failed to restore state snapshot: %w", err)
	}

	return copied, nil
}

// store abstracts whether repository calls run against the live state (with
// locking and flushing) or against an in-flight transaction copy.
type store interface {
	view(fn func(s *state) error) error
	update(fn func(s *state) error) error
}

// Persistence implements persistence.Persistence on top of a JSON file.
type Persistence struct {
	root  string
	mu    sync.RWMutex
	state *state
}

// NewPersistence creates a file persistence rooted at the given directory,
// loading existing data if present.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	err := os.MkdirAll(cleanRoot, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create persistence root: %w", err)
	}

	p := &Persistence{
		root:  cleanRoot,
		state: newState(),
	}

	err = p.load()
	if err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Persistence) load() error {
	payload, err := os.ReadFile(filepath.Join(p.root, stateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("failed to read state file: %w", err)
	}

	err = json.Unmarshal(payload, p.state)
	if err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}

	return nil
}

func (p *Persistence) flushLocked() error {
	payload, err := json.MarshalIndent(p.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	err = os.WriteFile(filepath.Join(p.root, stateFile), payload, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return nil
}

func (p *Persistence) view(fn func(s *state) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return fn(p.state)
}

func (p *Persistence) update(fn func(s *state) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := fn(p.state)
	if err != nil {
		return err
	}

	return p.flushLocked()
}

// Atomic clones the state, runs fn against repositories bound to the clone,
// and swaps the clone in only when fn succeeds. Any error discards every
// write of the transaction.
func (p *Persistence) Atomic(ctx context.Context, fn func(repos persistence.Repositories) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	work, err := p.state.clone()
	if err != nil {
		return err
	}

	err = fn(&txRepositories{state: work})
	if err != nil {
		return err
	}

	p.state = work

	return p.flushLocked()
}

// HealthCheck verifies the root directory still exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	_, err := os.Stat(p.root)
	if err != nil {
		return fmt.Errorf("persistence root unavailable: %w", err)
	}

	return nil
}

// Close flushes any pending state. File persistence has no connections to
// release.
func (p *Persistence) Close(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushLocked()
}

func (p *Persistence) Workflows() persistence.WorkflowRepository {
	return &workflowRepository{s: p}
}

func (p *Persistence) Snapshots() persistence.SnapshotRepository {
	return &snapshotRepository{s: p}
}

func (p *Persistence) Dataclips() persistence.DataclipRepository {
	return &dataclipRepository{s: p}
}

func (p *Persistence) WorkOrders() persistence.WorkOrderRepository {
	return &workOrderRepository{s: p}
}

func (p *Persistence) Runs() persistence.RunRepository {
	return &runRepository{s: p}
}

func (p *Persistence) Steps() persistence.StepRepository {
	return &stepRepository{s: p}
}

// txRepositories binds the repositories to a transaction copy of the state;
// reads and writes go straight at it without locking or flushing.
type txRepositories struct {
	state *state
}

func (t *txRepositories) view(fn func(s *state) error) error {
	return fn(t.state)
}

func (t *txRepositories) update(fn func(s *state) error) error {
	return fn(t.state)
}

func (t *txRepositories) Workflows() persistence.WorkflowRepository {
	return &workflowRepository{s: t}
}

func (t *txRepositories) Snapshots() persistence.SnapshotRepository {
	return &snapshotRepository{s: t}
}

func (t *txRepositories) Dataclips() persistence.DataclipRepository {
	return &dataclipRepository{s: t}
}

func (t *txRepositories) WorkOrders() persistence.WorkOrderRepository {
	return &workOrderRepository{s: t}
}

func (t *txRepositories) Runs() persistence.RunRepository {
	return &runRepository{s: t}
}

func (t *txRepositories) Steps() persistence.StepRepository {
	return &stepRepository{s: t}
}
