package driven

import (
	"context"
	"time"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
)

// TaskSpec is everything a worker needs to execute one collection task.
// The orchestrator resolves tier, credential, and term scope at dispatch
// time and hands the executor a self-contained spec.
type TaskSpec struct {
	// Task is the task record as created at dispatch.
	Task domain.CollectionTask
	// DesignID references the query design the run executes.
	DesignID string
	// Descriptor is the arena's registry entry.
	Descriptor domain.ArenaDescriptor
	// Credential is the resolved credential, nil when the tier needs none.
	Credential *domain.Credential
	// Method selects term-based or actor-based collection.
	Method domain.CollectionMethod
	// Terms is the arena-applicable term subset (term-based collection).
	Terms []domain.SearchTerm
	// Actors is the actor presence list (actor-based collection).
	Actors []domain.ActorPresence
	// DateRange bounds the collection.
	DateRange domain.DateRange
	// Config carries the design's arena-specific settings.
	Config map[string]string
	// Budget is the wall-clock budget. The timer starts when a worker
	// picks the spec up, not when it is queued.
	Budget time.Duration
}

// TaskExecutor runs collection tasks on a bounded worker pool.
type TaskExecutor interface {
	// Submit enqueues a task for execution. It never blocks on worker
	// availability; the pool bounds concurrent execution internally.
	// The context carries run-scoped cancellation.
	Submit(ctx context.Context, spec TaskSpec)

	// Stop waits for in-flight tasks to finish and releases the pool.
	Stop()
}
