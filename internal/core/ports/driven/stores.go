package driven

import (
	"context"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
)

// RunStore persists collection runs and their tasks.
//
// Task status writes must be per-record atomic so the orchestrator's
// all-tasks-terminal check cannot race with a task's own terminal write.
type RunStore interface {
	// CreateRun stores a new run in pending state.
	CreateRun(ctx context.Context, run *domain.CollectionRun) error

	// GetRun retrieves a run by ID. Returns domain.ErrNotFound if absent.
	GetRun(ctx context.Context, id string) (*domain.CollectionRun, error)

	// ListRuns returns all runs, newest first.
	ListRuns(ctx context.Context) ([]domain.CollectionRun, error)

	// ActivateRun atomically stores the run's tasks and moves the run
	// from pending to running. A run is never readable as running with
	// zero tasks stored.
	ActivateRun(ctx context.Context, runID string, tasks []domain.CollectionTask) error

	// SaveTask stores or updates a single task.
	SaveTask(ctx context.Context, task *domain.CollectionTask) error

	// GetTask retrieves a task by ID. Returns domain.ErrNotFound if absent.
	GetTask(ctx context.Context, id string) (*domain.CollectionTask, error)

	// ListTasks returns all tasks for a run in creation order.
	ListTasks(ctx context.Context, runID string) ([]domain.CollectionTask, error)

	// FinishRun commits a terminal status for the run. It fails with
	// domain.ErrRunTerminal if the run is already terminal, which makes
	// concurrent completion checks race-free: exactly one caller wins.
	FinishRun(ctx context.Context, runID string, status domain.RunStatus, recordCount int) error
}

// ContentStore is the durable, append-mostly sink for content records.
type ContentStore interface {
	// SaveRecord appends a record and settles its duplicate status in the
	// same atomic step: when the run already holds a canonical record with
	// the record's fingerprint, the store sets DuplicateOf to that record's
	// ID before committing, otherwise the record becomes the canonical one.
	// Concurrent writers of one fingerprint therefore yield exactly one
	// canonical record. Any caller-set DuplicateOf is overwritten.
	SaveRecord(ctx context.Context, record *domain.ContentRecord) error

	// FindByFingerprint returns the first-seen canonical record with the
	// given fingerprint within a run. Returns domain.ErrNotFound if none.
	FindByFingerprint(ctx context.Context, runID, fingerprint string) (*domain.ContentRecord, error)

	// FindByExternalID returns the record a run already stored for a
	// platform item. Returns domain.ErrNotFound if none. Used to make
	// re-normalisation of the same raw item a no-op.
	FindByExternalID(ctx context.Context, runID, platform, externalID string) (*domain.ContentRecord, error)

	// ListByRun returns all records collected by a run.
	ListByRun(ctx context.Context, runID string) ([]domain.ContentRecord, error)

	// CountByRun returns the number of records collected by a run.
	CountByRun(ctx context.Context, runID string) (int, error)
}

// CredentialPool is the shared, read-only credential source.
// The engine never mutates pooled credentials; Add exists for the
// operator-facing CLI only.
type CredentialPool interface {
	// Active returns the active credentials for the exact (platform,
	// tier) pair, in pool order. No tier fallback happens here.
	Active(ctx context.Context, platform string, tier domain.Tier) ([]domain.Credential, error)

	// List returns every pooled credential.
	List(ctx context.Context) ([]domain.Credential, error)

	// Add inserts a credential into the pool.
	Add(ctx context.Context, cred domain.Credential) error
}

// QueryDesignStore persists query designs for the research layer.
// The orchestrator only reads from it.
type QueryDesignStore interface {
	// Save stores or updates a design.
	Save(ctx context.Context, design domain.QueryDesign) error

	// Get retrieves a design by ID. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.QueryDesign, error)

	// List returns all designs.
	List(ctx context.Context) ([]domain.QueryDesign, error)
}
