package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driving"
	"github.com/alterPublics/issue-obervatory-sub001/internal/logger"
)

// Ensure RunOrchestrator implements the interfaces.
var (
	_ driving.RunOrchestrator = (*RunOrchestrator)(nil)
	_ TerminalNotifier        = (*RunOrchestrator)(nil)
)

// RunOrchestrator turns run requests into supervised task sets and owns
// the run/task state machines. It is the only component that mutates
// runs and tasks.
type RunOrchestrator struct {
	catalog  driving.ArenaCatalog
	designs  driven.QueryDesignStore
	runs     driven.RunStore
	content  driven.ContentStore
	resolver *CredentialResolver
	feed     driven.StatusFeed

	// defaultBudget is the deployment-wide task budget, overridable per
	// arena descriptor but never per platform at runtime.
	defaultBudget time.Duration

	mu       sync.Mutex
	executor driven.TaskExecutor
	active   map[string]context.CancelFunc
}

// NewRunOrchestrator creates a run orchestrator. The executor is wired
// afterwards via SetExecutor because it needs the orchestrator as its
// terminal notifier.
func NewRunOrchestrator(
	catalog driving.ArenaCatalog,
	designs driven.QueryDesignStore,
	runs driven.RunStore,
	content driven.ContentStore,
	resolver *CredentialResolver,
	feed driven.StatusFeed,
	defaultBudget time.Duration,
) *RunOrchestrator {
	if defaultBudget <= 0 {
		defaultBudget = 5 * time.Minute
	}
	return &RunOrchestrator{
		catalog:       catalog,
		designs:       designs,
		runs:          runs,
		content:       content,
		resolver:      resolver,
		feed:          feed,
		defaultBudget: defaultBudget,
		active:        make(map[string]context.CancelFunc),
	}
}

// SetExecutor wires the task executor.
func (o *RunOrchestrator) SetExecutor(executor driven.TaskExecutor) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.executor = executor
}

// StartRun dispatches a collection run: one task per enabled arena.
//
// Dispatch resolves, per arena, the effective tier (run override >
// enablement override > design default), the credential, and the
// applicable term subset. Arenas that cannot execute — stubs, missing
// credentials, unsupported modes — get their task created directly in a
// terminal failed state with a specific error class instead of entering
// the worker pool. Task creation is atomic with the run's transition to
// running: the run is never readable as running with zero tasks.
func (o *RunOrchestrator) StartRun(ctx context.Context, req driving.RunRequest) (*domain.CollectionRun, error) {
	// Refuse before anything is persisted. Activating a run with no
	// executor would leave it running forever with pending tasks.
	o.mu.Lock()
	executor := o.executor
	o.mu.Unlock()
	if executor == nil {
		return nil, errors.New("start run: no task executor wired")
	}

	design, err := o.designs.Get(ctx, req.DesignID)
	if err != nil {
		return nil, fmt.Errorf("get query design: %w", err)
	}

	enabled := design.EnabledArenas()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("%w: design %s has no enabled arenas", domain.ErrInvalidInput, design.ID)
	}

	run := &domain.CollectionRun{
		ID:            uuid.NewString(),
		DesignID:      design.ID,
		Mode:          req.Mode,
		DateRange:     req.DateRange,
		TierOverrides: req.TierOverrides,
		Status:        domain.RunPending,
		CreatedAt:     time.Now().UTC(),
	}
	if run.Mode == "" {
		run.Mode = domain.ModeBatch
	}
	if err := o.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	tasks := make([]domain.CollectionTask, 0, len(enabled))
	specs := make([]driven.TaskSpec, 0, len(enabled))
	for i := range enabled {
		enablement := enabled[i]
		task, spec := o.dispatchArena(ctx, run, design, &enablement)
		tasks = append(tasks, task)
		if spec != nil {
			specs = append(specs, *spec)
		}
	}

	if err := o.runs.ActivateRun(ctx, run.ID, tasks); err != nil {
		return nil, fmt.Errorf("activate run: %w", err)
	}
	run.Status = domain.RunRunning
	run.StartedAt = time.Now().UTC()
	logger.Info("Run %s dispatched: %d arenas, %d executable", run.ID, len(tasks), len(specs))

	// Emit the terminal events for tasks that failed at dispatch, then
	// settle the run immediately if nothing is executable.
	for i := range tasks {
		if tasks[i].Status.Terminal() {
			o.publish(tasks[i])
		}
	}
	if len(specs) == 0 {
		o.settleRun(ctx, run.ID)
		return o.runs.GetRun(ctx, run.ID)
	}

	// The run outlives the request: execution gets a detached, run-scoped
	// context so one HTTP/CLI caller going away cannot abort collection.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.mu.Lock()
	o.active[run.ID] = cancel
	o.mu.Unlock()

	for i := range specs {
		executor.Submit(runCtx, specs[i])
	}

	return o.runs.GetRun(ctx, run.ID)
}

// dispatchArena prepares the task for one enabled arena. It returns the
// task (terminal if the arena cannot execute) and, for executable tasks,
// the spec to hand to the executor.
func (o *RunOrchestrator) dispatchArena(
	ctx context.Context,
	run *domain.CollectionRun,
	design *domain.QueryDesign,
	enablement *domain.ArenaEnablement,
) (domain.CollectionTask, *driven.TaskSpec) {
	task := domain.CollectionTask{
		ID:       uuid.NewString(),
		RunID:    run.ID,
		Platform: enablement.Platform,
		Status:   domain.TaskPending,
	}

	desc, err := o.catalog.Lookup(enablement.Platform)
	if err != nil {
		return failedAtDispatch(task, domain.ErrorClassInternal, err.Error()), nil
	}

	var runOverride *domain.Tier
	if tier, ok := run.TierOverrides[enablement.Platform]; ok {
		runOverride = &tier
	}
	tier := EffectiveTier(runOverride, enablement, design.DefaultTier)
	task.Tier = tier

	if desc.Stub {
		detail := fmt.Sprintf("arena %s is not implemented yet", desc.Platform)
		return failedAtDispatch(task, domain.ErrorClassNotImplemented, detail), nil
	}
	if !desc.SupportsTier(tier) {
		detail := fmt.Sprintf("arena %s does not support tier %s", desc.Platform, tier)
		return failedAtDispatch(task, domain.ErrorClassInternal, detail), nil
	}
	if !desc.SupportsMode(design.Method) {
		err := &domain.UnsupportedModeError{Platform: desc.Platform, Mode: design.Method}
		return failedAtDispatch(task, domain.ErrorClassUnsupportedMode, err.Error()), nil
	}

	var cred *domain.Credential
	if desc.RequiresCredential(tier) {
		cred, err = o.resolver.Resolve(ctx, desc.Platform, tier)
		if err != nil {
			// Missing credentials never reach the worker pool; the task
			// is terminal at dispatch with a credential classification.
			return failedAtDispatch(task, domain.ClassifyError(err), err.Error()), nil
		}
	}

	terms := ApplicableTerms(design.Terms, desc.Platform)
	if design.Method == domain.MethodTerm && len(terms) == 0 {
		detail := fmt.Sprintf("no search term applies to arena %s", desc.Platform)
		return failedAtDispatch(task, domain.ErrorClassInternal, detail), nil
	}

	budget := desc.TaskBudget
	if budget <= 0 {
		budget = o.defaultBudget
	}
	spec := &driven.TaskSpec{
		Task:       task,
		DesignID:   design.ID,
		Descriptor: *desc,
		Credential: cred,
		Method:     design.Method,
		Terms:      terms,
		Actors:     actorsFor(design.Actors, desc.Platform),
		DateRange:  run.DateRange,
		Config:     enablement.Config,
		Budget:     budget,
	}
	return task, spec
}

// CancelRun cancels a pending or running run. Idempotent: cancelling an
// already terminal run is a no-op, not an error.
func (o *RunOrchestrator) CancelRun(ctx context.Context, runID string) error {
	run, err := o.runs.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run.Status.Terminal() {
		return nil
	}

	o.mu.Lock()
	cancel, ok := o.active[runID]
	o.mu.Unlock()

	if ok {
		// In-flight tasks observe the signal at their next retry or
		// channel checkpoint and settle the run through TaskTerminal.
		cancel()
		logger.Info("Run %s: cancellation signalled", runID)
		return nil
	}

	// No live execution context (e.g. after a restart): settle directly.
	tasks, err := o.runs.ListTasks(ctx, runID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	for i := range tasks {
		if tasks[i].Status.Terminal() {
			continue
		}
		tasks[i].Status = domain.TaskCancelled
		tasks[i].ErrorDetail = "run cancelled"
		tasks[i].FinishedAt = time.Now().UTC()
		if err := o.runs.SaveTask(ctx, &tasks[i]); err != nil {
			return fmt.Errorf("cancel task %s: %w", tasks[i].ID, err)
		}
		o.publish(tasks[i])
	}
	o.settleRun(ctx, runID)
	return nil
}

// Status returns the run and its tasks.
func (o *RunOrchestrator) Status(ctx context.Context, runID string) (*driving.RunView, error) {
	run, err := o.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	tasks, err := o.runs.ListTasks(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return &driving.RunView{Run: *run, Tasks: tasks}, nil
}

// TaskTerminal is called by the executor whenever a task reaches a
// terminal state. It re-evaluates whether the whole run is terminal.
func (o *RunOrchestrator) TaskTerminal(ctx context.Context, task domain.CollectionTask) {
	o.settleRun(ctx, task.RunID)
}

// settleRun commits the run's terminal status once every task is
// terminal. Safe under concurrent task completions: FinishRun accepts
// exactly one terminal transition, so double-settling is harmless.
func (o *RunOrchestrator) settleRun(ctx context.Context, runID string) {
	tasks, err := o.runs.ListTasks(ctx, runID)
	if err != nil {
		logger.Warn("settle run %s: list tasks: %v", runID, err)
		return
	}
	for i := range tasks {
		if !tasks[i].Status.Terminal() {
			return
		}
	}

	status := domain.AggregateRunStatus(tasks)
	count, err := o.content.CountByRun(ctx, runID)
	if err != nil {
		logger.Warn("settle run %s: count records: %v", runID, err)
	}

	err = o.runs.FinishRun(ctx, runID, status, count)
	switch {
	case errors.Is(err, domain.ErrRunTerminal):
		return // Another completion check won the race.
	case err != nil:
		logger.Warn("settle run %s: %v", runID, err)
		return
	}

	o.mu.Lock()
	if cancel, ok := o.active[runID]; ok {
		cancel()
		delete(o.active, runID)
	}
	o.mu.Unlock()
	logger.Info("Run %s finished: %s, %d records", runID, status, count)
}

// publish emits a feed event for a task the orchestrator settled itself.
func (o *RunOrchestrator) publish(task domain.CollectionTask) {
	if o.feed == nil {
		return
	}
	o.feed.Publish(driven.TaskEvent{
		RunID:    task.RunID,
		TaskID:   task.ID,
		Platform: task.Platform,
		Status:   task.Status,
		Records:  task.RecordsProduced,
		Error:    task.ErrorDetail,
		At:       time.Now().UTC(),
	})
}

// failedAtDispatch marks a task terminal before it ever entered the pool.
func failedAtDispatch(task domain.CollectionTask, class domain.ErrorClass, detail string) domain.CollectionTask {
	task.Status = domain.TaskFailed
	task.ErrorClass = class
	task.ErrorDetail = detail
	task.FinishedAt = time.Now().UTC()
	return task
}

// actorsFor filters actor presences down to one platform.
func actorsFor(actors []domain.ActorPresence, platform string) []domain.ActorPresence {
	result := make([]domain.ActorPresence, 0, len(actors))
	for _, a := range actors {
		if a.Platform == platform {
			result = append(result, a)
		}
	}
	return result
}
