package domain

import "time"

// RunStatus is the lifecycle state of a collection run.
//
// State machine: pending → running → {completed, completed_partial,
// failed, cancelled}. Terminal states never transition further.
type RunStatus string

const (
	// RunPending means the run exists but dispatch has not finished.
	RunPending RunStatus = "pending"
	// RunRunning means tasks were created and at least one is not terminal.
	RunRunning RunStatus = "running"
	// RunCompleted means every task completed.
	RunCompleted RunStatus = "completed"
	// RunCompletedPartial means at least one task completed and at least
	// one task terminated in failure.
	RunCompletedPartial RunStatus = "completed_partial"
	// RunFailed means no task completed and at least one failed.
	RunFailed RunStatus = "failed"
	// RunCancelled means the researcher cancelled the run. Cancellation
	// is user intent, not an error, and is distinct from RunFailed.
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether the run status is final.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunCompletedPartial, RunFailed, RunCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a run may move from s to next.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case RunPending:
		return next == RunRunning || next == RunCancelled || next == RunFailed
	case RunRunning:
		return next.Terminal()
	default:
		return false
	}
}

// TaskStatus is the lifecycle state of a collection task.
type TaskStatus string

const (
	// TaskPending means the task is created but not yet handed to a worker.
	TaskPending TaskStatus = "pending"
	// TaskRunning means a worker is executing the task.
	TaskRunning TaskStatus = "running"
	// TaskCompleted means collection finished without error.
	TaskCompleted TaskStatus = "completed"
	// TaskFailed means the task terminated with a classified error.
	TaskFailed TaskStatus = "failed"
	// TaskTimedOut means the task exceeded its wall-clock budget.
	// It is a failure subtype for aggregation purposes.
	TaskTimedOut TaskStatus = "timed_out"
	// TaskCancelled means the task observed run cancellation.
	TaskCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the task status is final.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskTimedOut, TaskCancelled:
		return true
	default:
		return false
	}
}

// Failure reports whether the status is a terminal failure state.
// Cancellation is not a failure.
func (s TaskStatus) Failure() bool {
	return s == TaskFailed || s == TaskTimedOut
}

// ErrorClass classifies why a task failed. It drives both retry policy
// and the per-arena error display researchers use to tell "no credential
// configured" apart from "the external API is down".
type ErrorClass string

const (
	// ErrorClassNone means no error occurred.
	ErrorClassNone ErrorClass = ""
	// ErrorClassCredential covers missing, invalid, or rejected credentials.
	ErrorClassCredential ErrorClass = "credential"
	// ErrorClassRateLimit covers quota and rate limit rejections.
	ErrorClassRateLimit ErrorClass = "rate_limit"
	// ErrorClassTransient covers network and connection failures.
	ErrorClassTransient ErrorClass = "transient"
	// ErrorClassUnsupportedMode covers mode/arena mismatches.
	ErrorClassUnsupportedMode ErrorClass = "unsupported_mode"
	// ErrorClassTimeout covers wall-clock budget expiry.
	ErrorClassTimeout ErrorClass = "timeout"
	// ErrorClassNotImplemented covers stub arenas rejected at dispatch.
	ErrorClassNotImplemented ErrorClass = "not_implemented"
	// ErrorClassInternal covers everything else.
	ErrorClassInternal ErrorClass = "internal"
)

// DateRange bounds a collection request in published time.
// A zero From or To means unbounded on that side.
type DateRange struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether the range is unbounded on both sides.
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether ts falls inside the range.
func (r DateRange) Contains(ts time.Time) bool {
	if !r.From.IsZero() && ts.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && ts.After(r.To) {
		return false
	}
	return true
}

// CollectionRun is one execution of a query design.
// Runs are owned and exclusively mutated by the orchestrator.
type CollectionRun struct {
	// ID is the unique identifier (UUID).
	ID string
	// DesignID references the query design.
	DesignID string
	// Mode is batch or live.
	Mode CollectionMode
	// DateRange bounds the request; may be zero for live runs.
	DateRange DateRange
	// TierOverrides are launch-time per-arena tier overrides. They take
	// precedence over the design's enablement overrides and default tier.
	TierOverrides map[string]Tier
	// Status is the run state machine position.
	Status RunStatus
	// RecordCount is the aggregate number of records produced.
	RecordCount int
	// CreatedAt, StartedAt, CompletedAt bound the run lifecycle.
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// CollectionTask is the unit of work for one arena within one run.
// Exactly one task exists per (run, enabled arena) pair.
type CollectionTask struct {
	// ID is the unique identifier (UUID).
	ID string
	// RunID references the owning run.
	RunID string
	// Platform is the arena's platform id.
	Platform string
	// Tier is the resolved tier the task collects at.
	Tier Tier
	// Status is the task state machine position.
	Status TaskStatus
	// Attempts counts execution attempts including retries.
	Attempts int
	// ErrorClass classifies the terminal failure, if any.
	ErrorClass ErrorClass
	// ErrorDetail is the human-readable failure message. Never empty
	// when the task terminated in a failure state.
	ErrorDetail string
	// RecordsProduced counts content records written by this task.
	RecordsProduced int
	// StartedAt, FinishedAt bound execution (not queueing).
	StartedAt  time.Time
	FinishedAt time.Time
}

// AggregateRunStatus derives a run's terminal status from its tasks.
// It must only be called once every task is terminal; callers guard this
// with the all-terminal check. Cancellation wins if any task was cancelled,
// since a cancelled run is user intent, not an outcome of the tasks.
func AggregateRunStatus(tasks []CollectionTask) RunStatus {
	var completed, failed, cancelled int
	for i := range tasks {
		switch {
		case tasks[i].Status == TaskCompleted:
			completed++
		case tasks[i].Status == TaskCancelled:
			cancelled++
		case tasks[i].Status.Failure():
			failed++
		}
	}
	switch {
	case cancelled > 0:
		return RunCancelled
	case completed > 0 && failed == 0:
		return RunCompleted
	case completed > 0 && failed > 0:
		return RunCompletedPartial
	default:
		return RunFailed
	}
}
