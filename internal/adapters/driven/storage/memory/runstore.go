// Package memory provides in-memory implementations of the driven store
// ports. Used by tests and by deployments that do not need persistence.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
)

// Ensure RunStore implements the interface.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is an in-memory implementation of driven.RunStore.
// All mutations take the store lock, which gives the per-record
// atomicity the orchestrator's completion check relies on.
type RunStore struct {
	mu    sync.RWMutex
	runs  map[string]domain.CollectionRun
	tasks map[string]domain.CollectionTask
	// taskOrder preserves creation order per run.
	taskOrder map[string][]string
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:      make(map[string]domain.CollectionRun),
		tasks:     make(map[string]domain.CollectionTask),
		taskOrder: make(map[string][]string),
	}
}

// CreateRun stores a new run in pending state.
func (s *RunStore) CreateRun(_ context.Context, run *domain.CollectionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

// GetRun retrieves a run by ID.
func (s *RunStore) GetRun(_ context.Context, id string) (*domain.CollectionRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

// ListRuns returns all runs, newest first.
func (s *RunStore) ListRuns(_ context.Context) ([]domain.CollectionRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.CollectionRun, 0, len(s.runs))
	for _, run := range s.runs {
		result = append(result, run)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// ActivateRun atomically stores the run's tasks and moves the run from
// pending to running.
func (s *RunStore) ActivateRun(_ context.Context, runID string, tasks []domain.CollectionTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return domain.ErrNotFound
	}
	if run.Status.Terminal() {
		return domain.ErrRunTerminal
	}

	for i := range tasks {
		s.tasks[tasks[i].ID] = tasks[i]
		s.taskOrder[runID] = append(s.taskOrder[runID], tasks[i].ID)
	}
	run.Status = domain.RunRunning
	run.StartedAt = time.Now().UTC()
	s.runs[runID] = run
	return nil
}

// SaveTask stores or updates a single task.
func (s *RunStore) SaveTask(_ context.Context, task *domain.CollectionTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.tasks[task.ID]; !seen {
		s.taskOrder[task.RunID] = append(s.taskOrder[task.RunID], task.ID)
	}
	s.tasks[task.ID] = *task
	return nil
}

// GetTask retrieves a task by ID.
func (s *RunStore) GetTask(_ context.Context, id string) (*domain.CollectionTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &task, nil
}

// ListTasks returns all tasks for a run in creation order.
func (s *RunStore) ListTasks(_ context.Context, runID string) ([]domain.CollectionTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.taskOrder[runID]
	result := make([]domain.CollectionTask, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.tasks[id])
	}
	return result, nil
}

// FinishRun commits a terminal status for the run. Exactly one caller
// can win: a second terminal transition fails with ErrRunTerminal.
func (s *RunStore) FinishRun(_ context.Context, runID string, status domain.RunStatus, recordCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return domain.ErrNotFound
	}
	if run.Status.Terminal() {
		return domain.ErrRunTerminal
	}
	if !status.Terminal() {
		return domain.ErrInvalidInput
	}

	run.Status = status
	run.RecordCount = recordCount
	run.CompletedAt = time.Now().UTC()
	s.runs[runID] = run
	return nil
}
