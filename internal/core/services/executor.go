package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
	"github.com/alterPublics/issue-obervatory-sub001/internal/logger"
)

// Ensure Executor implements the interface.
var _ driven.TaskExecutor = (*Executor)(nil)

// TerminalNotifier is told whenever a task reaches a terminal state.
// The run orchestrator implements it to re-evaluate run completion.
type TerminalNotifier interface {
	TaskTerminal(ctx context.Context, task domain.CollectionTask)
}

// ExecutorConfig tunes the worker pool and retry policy.
type ExecutorConfig struct {
	// Workers bounds concurrently executing tasks, independently of how
	// many arenas a run enables.
	Workers int64
	// MaxAttempts caps execution attempts per task (first try included).
	MaxAttempts int
	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration
	// DefaultBudget is the deployment-wide task wall-clock budget, used
	// when the arena descriptor declares no override.
	DefaultBudget time.Duration
}

// withDefaults fills unset fields.
func (c ExecutorConfig) withDefaults() ExecutorConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.DefaultBudget <= 0 {
		c.DefaultBudget = 5 * time.Minute
	}
	return c
}

// Executor runs collection tasks on a bounded worker pool.
//
// The budget timer starts when a worker picks a task up, so queueing
// delay never consumes execution budget. Within a task, retries are
// strictly sequential; across tasks, no ordering is guaranteed.
type Executor struct {
	cfg        ExecutorConfig
	factory    driven.CollectorFactory
	normalizer *Normalizer
	runs       driven.RunStore
	feed       driven.StatusFeed
	notifier   TerminalNotifier

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewExecutor creates a task executor.
func NewExecutor(
	cfg ExecutorConfig,
	factory driven.CollectorFactory,
	normalizer *Normalizer,
	runs driven.RunStore,
	feed driven.StatusFeed,
	notifier TerminalNotifier,
) *Executor {
	cfg = cfg.withDefaults()
	return &Executor{
		cfg:        cfg,
		factory:    factory,
		normalizer: normalizer,
		runs:       runs,
		feed:       feed,
		notifier:   notifier,
		sem:        semaphore.NewWeighted(cfg.Workers),
	}
}

// Submit enqueues a task for execution. Returns immediately; the worker
// pool bounds actual concurrency.
func (e *Executor) Submit(ctx context.Context, spec driven.TaskSpec) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		if err := e.sem.Acquire(ctx, 1); err != nil {
			// Run was cancelled while the task was still queued.
			e.finishTask(ctx, spec.Task, domain.TaskCancelled, domain.ErrorClassNone,
				"cancelled before execution started")
			return
		}
		defer e.sem.Release(1)

		e.execute(ctx, spec)
	}()
}

// Stop waits for all in-flight and queued tasks to finish.
func (e *Executor) Stop() {
	e.wg.Wait()
}

// execute runs one task to a terminal state.
func (e *Executor) execute(ctx context.Context, spec driven.TaskSpec) {
	task := spec.Task
	task.Status = domain.TaskRunning
	task.StartedAt = time.Now().UTC()
	if err := e.runs.SaveTask(ctx, &task); err != nil {
		logger.Warn("save task %s: %v", task.ID, err)
	}
	e.publish(task, "")

	budget := spec.Budget
	if budget <= 0 {
		budget = e.cfg.DefaultBudget
	}
	// The budget covers the whole task lifecycle including retries.
	execCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	var lastErr error
	for {
		task.Attempts++
		var produced int
		produced, lastErr = e.collectOnce(execCtx, spec, &task)
		task.RecordsProduced += produced

		if lastErr == nil {
			e.finishTask(ctx, task, domain.TaskCompleted, domain.ErrorClassNone, "")
			return
		}

		status, class, detail := e.classify(ctx, execCtx, spec, lastErr)
		if !class.Retryable() || task.Attempts >= e.cfg.MaxAttempts {
			e.finishTask(ctx, task, status, class, detail)
			return
		}

		if err := e.backoff(execCtx, task.Attempts, lastErr); err != nil {
			// Cancellation or budget expiry observed at the retry checkpoint.
			status, class, detail = e.classify(ctx, execCtx, spec, lastErr)
			e.finishTask(ctx, task, status, class, detail)
			return
		}
		logger.Debug("retrying task %s (%s), attempt %d: %v",
			task.ID, task.Platform, task.Attempts+1, lastErr)
	}
}

// collectOnce performs a single collection attempt, streaming items
// through the normaliser. Returns the number of records stored.
func (e *Executor) collectOnce(ctx context.Context, spec driven.TaskSpec, task *domain.CollectionTask) (int, error) {
	collector, err := e.factory.Create(ctx, spec.Descriptor, spec.Credential, spec.Config)
	if err != nil {
		return 0, fmt.Errorf("create collector: %w", err)
	}
	defer collector.Close()

	if !collector.SupportsMode(spec.Method) {
		return 0, &domain.UnsupportedModeError{Platform: spec.Descriptor.Platform, Mode: spec.Method}
	}

	req := driven.CollectRequest{
		Method:    spec.Method,
		Terms:     spec.Terms,
		Actors:    spec.Actors,
		DateRange: spec.DateRange,
		Tier:      spec.Task.Tier,
	}
	logger.Debug("task %s (%s): estimated cost %d credits",
		task.ID, spec.Descriptor.Platform, collector.EstimateCost(req))

	var (
		items <-chan domain.RawItem
		errs  <-chan error
	)
	switch spec.Method {
	case domain.MethodActor:
		items, errs = collector.CollectByActors(ctx, spec.Actors, spec.DateRange)
	default:
		items, errs = collector.CollectByTerms(ctx, spec.Terms, spec.DateRange)
	}

	actx := ArenaContext{
		RunID:    task.RunID,
		DesignID: spec.DesignID,
		Platform: spec.Descriptor.Platform,
		Category: spec.Descriptor.Category,
		Method:   spec.Method,
		Terms:    spec.Terms,
	}

	produced := 0
	for {
		select {
		case <-ctx.Done():
			return produced, ctx.Err()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return produced, err
			}

		case item, ok := <-items:
			if !ok {
				return produced, nil // Done - channel closed
			}
			record, stored, err := e.normalizer.Normalize(ctx, item, actx)
			if err != nil {
				if errors.Is(err, ErrNoTermMatch) {
					logger.Debug("skipping %s item %s: %v", actx.Platform, item.ExternalID, err)
					continue
				}
				return produced, err
			}
			// Items re-seen across retry attempts are no-ops, not output.
			if stored {
				produced++
			}
			if record.IsDuplicate() {
				logger.Debug("%s item %s is a duplicate of %s",
					actx.Platform, item.ExternalID, record.DuplicateOf)
			}
		}
	}
}

// classify converts an attempt error into the terminal (status, class,
// detail) triple, distinguishing run cancellation from budget expiry.
// Detail is never empty for a failure state.
func (e *Executor) classify(ctx, execCtx context.Context, spec driven.TaskSpec, err error) (domain.TaskStatus, domain.ErrorClass, string) {
	switch {
	case ctx.Err() != nil:
		// Run-scoped cancellation, not an error.
		return domain.TaskCancelled, domain.ErrorClassNone, "run cancelled"
	case errors.Is(execCtx.Err(), context.DeadlineExceeded) || errors.Is(err, domain.ErrTimeout):
		detail := fmt.Sprintf("task exceeded its %s budget", budgetFor(spec, e.cfg.DefaultBudget))
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			detail = fmt.Sprintf("%s (last error: %v)", detail, err)
		}
		return domain.TaskTimedOut, domain.ErrorClassTimeout, detail
	default:
		class := domain.ClassifyError(err)
		return domain.TaskFailed, class, err.Error()
	}
}

// backoff sleeps before a retry with exponential backoff, honouring a
// platform RetryAfter hint when it is longer. Returns the context error
// if cancellation or budget expiry interrupts the wait.
func (e *Executor) backoff(ctx context.Context, attempt int, cause error) error {
	delay := e.cfg.BackoffBase << (attempt - 1)

	var rateLimited *domain.RateLimitError
	if errors.As(cause, &rateLimited) && rateLimited.RetryAfter > delay {
		delay = rateLimited.RetryAfter
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// finishTask commits a task's terminal state, emits exactly one terminal
// feed event, and notifies the orchestrator.
func (e *Executor) finishTask(ctx context.Context, task domain.CollectionTask, status domain.TaskStatus, class domain.ErrorClass, detail string) {
	task.Status = status
	task.ErrorClass = class
	task.ErrorDetail = detail
	task.FinishedAt = time.Now().UTC()

	// Persist with a background-capable context: the run context may
	// already be cancelled, but the terminal write must still land.
	saveCtx := context.WithoutCancel(ctx)
	if err := e.runs.SaveTask(saveCtx, &task); err != nil {
		logger.Warn("save terminal task %s: %v", task.ID, err)
	}
	e.publish(task, detail)
	if e.notifier != nil {
		e.notifier.TaskTerminal(saveCtx, task)
	}
}

// publish emits a status feed event for the task's current state.
func (e *Executor) publish(task domain.CollectionTask, detail string) {
	if e.feed == nil {
		return
	}
	e.feed.Publish(driven.TaskEvent{
		RunID:    task.RunID,
		TaskID:   task.ID,
		Platform: task.Platform,
		Status:   task.Status,
		Records:  task.RecordsProduced,
		Error:    detail,
		At:       time.Now().UTC(),
	})
}

// budgetFor returns the effective budget for a spec.
func budgetFor(spec driven.TaskSpec, fallback time.Duration) time.Duration {
	if spec.Budget > 0 {
		return spec.Budget
	}
	return fallback
}
