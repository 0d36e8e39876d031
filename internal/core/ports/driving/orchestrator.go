package driving

import (
	"context"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
)

// RunRequest is the research layer's request to launch a collection run.
type RunRequest struct {
	// DesignID references the query design to execute.
	DesignID string
	// Mode is batch or live.
	Mode domain.CollectionMode
	// DateRange optionally bounds the collection.
	DateRange domain.DateRange
	// TierOverrides are launch-time per-arena tier overrides. They are
	// the most specific layer of the tier precedence merge.
	TierOverrides map[string]domain.Tier
}

// RunView is the orchestrator's per-run status answer, with one entry
// per task so a researcher can see exactly which error class occurred
// in which arena.
type RunView struct {
	Run   domain.CollectionRun
	Tasks []domain.CollectionTask
}

// RunOrchestrator turns run requests into supervised task sets and owns
// the run/task state machines.
type RunOrchestrator interface {
	// StartRun dispatches a run: one task per enabled arena, tiers and
	// credentials resolved, stub arenas and missing credentials recorded
	// as terminal failed tasks. Returns the run in running state (or a
	// terminal state if every task failed at dispatch).
	StartRun(ctx context.Context, req RunRequest) (*domain.CollectionRun, error)

	// CancelRun cancels a pending or running run and propagates
	// cancellation to its non-terminal tasks. Cancelling an already
	// terminal run is a no-op, not an error.
	CancelRun(ctx context.Context, runID string) error

	// Status returns the run and its tasks.
	Status(ctx context.Context, runID string) (*RunView, error)
}
