package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alterPublics/issue-obervatory-sub001/internal/adapters/driven/feed"
	"github.com/alterPublics/issue-obervatory-sub001/internal/adapters/driven/storage/memory"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driving"
)

// orchestratorEnv wires a full orchestrator on in-memory adapters with
// a real executor and scriptable collectors.
type orchestratorEnv struct {
	orchestrator *RunOrchestrator
	executor     *Executor
	registry     *ArenaRegistry
	designs      *memory.DesignStore
	runs         *memory.RunStore
	content      *memory.ContentStore
	pool         *memory.CredentialPool
	factory      *fakeFactory
	feed         *feed.Broadcast
}

func newOrchestratorEnv(t *testing.T) *orchestratorEnv {
	t.Helper()
	env := &orchestratorEnv{
		registry: NewArenaRegistry(),
		designs:  memory.NewDesignStore(),
		runs:     memory.NewRunStore(),
		content:  memory.NewContentStore(),
		pool:     memory.NewCredentialPool(),
		factory:  newFakeFactory(),
		feed:     feed.NewBroadcast(),
	}
	t.Cleanup(env.feed.Close)

	resolver := NewCredentialResolver(env.pool)
	env.orchestrator = NewRunOrchestrator(
		env.registry, env.designs, env.runs, env.content, resolver, env.feed, time.Minute)
	env.executor = NewExecutor(
		ExecutorConfig{Workers: 4, MaxAttempts: 1, BackoffBase: time.Millisecond},
		env.factory, NewNormalizer(env.content), env.runs, env.feed, env.orchestrator)
	env.orchestrator.SetExecutor(env.executor)
	return env
}

// register adds a descriptor to the catalog, failing the test on error.
func (env *orchestratorEnv) register(t *testing.T, desc domain.ArenaDescriptor) {
	t.Helper()
	require.NoError(t, env.registry.Register(desc))
}

// design saves a term-mode query design enabling the given platforms.
func (env *orchestratorEnv) design(t *testing.T, id string, platforms ...string) *domain.QueryDesign {
	t.Helper()
	arenas := make([]domain.ArenaEnablement, 0, len(platforms))
	for _, p := range platforms {
		arenas = append(arenas, domain.ArenaEnablement{Platform: p, Enabled: true})
	}
	design := domain.QueryDesign{
		ID:          id,
		Name:        "test design",
		DefaultTier: domain.TierFree,
		Method:      domain.MethodTerm,
		Terms:       []domain.SearchTerm{{Text: "climate", Type: domain.TermKeyword}},
		Arenas:      arenas,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, env.designs.Save(context.Background(), design))
	return &design
}

// waitRunTerminal blocks until the run commits a terminal status.
func (env *orchestratorEnv) waitRunTerminal(t *testing.T, runID string) *domain.CollectionRun {
	t.Helper()
	var run *domain.CollectionRun
	require.Eventually(t, func() bool {
		got, err := env.runs.GetRun(context.Background(), runID)
		if err != nil || !got.Status.Terminal() {
			return false
		}
		run = got
		return true
	}, 5*time.Second, 10*time.Millisecond)
	return run
}

func (env *orchestratorEnv) taskFor(t *testing.T, runID, platform string) domain.CollectionTask {
	t.Helper()
	tasks, err := env.runs.ListTasks(context.Background(), runID)
	require.NoError(t, err)
	for _, task := range tasks {
		if task.Platform == platform {
			return task
		}
	}
	t.Fatalf("no task for platform %s in run %s", platform, runID)
	return domain.CollectionTask{}
}

// credentialedArena requires a credential at every tier it supports.
func credentialedArena(platform string) domain.ArenaDescriptor {
	desc := termArena(platform)
	desc.Credentials = map[domain.Tier]domain.CredentialRequirement{
		domain.TierFree: domain.CredentialRequired,
	}
	return desc
}

func TestRunOrchestrator_MixedOutcomesYieldPartialCompletion(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newOrchestratorEnv(t)

	// Arena A delivers ten records.
	env.register(t, termArena("bluesky"))
	items := make([]domain.RawItem, 10)
	for i := range items {
		items[i] = rawPost("bluesky", string(rune('a'+i)), "climate post")
	}
	env.factory.addStatic("bluesky", &fakeCollector{
		platform: "bluesky",
		modes:    []domain.CollectionMethod{domain.MethodTerm},
		items:    items,
	})

	// Arena B needs a credential and the pool has none.
	env.register(t, credentialedArena("reddit"))

	// Arena C hangs past its budget.
	slow := termArena("youtube")
	slow.TaskBudget = 50 * time.Millisecond
	env.register(t, slow)
	env.factory.addStatic("youtube", &fakeCollector{
		platform: "youtube",
		modes:    []domain.CollectionMethod{domain.MethodTerm},
		delay:    10 * time.Second,
	})

	design := env.design(t, "design-1", "bluesky", "reddit", "youtube")

	run, err := env.orchestrator.StartRun(context.Background(),
		driving.RunRequest{DesignID: design.ID})
	require.NoError(t, err)

	final := env.waitRunTerminal(t, run.ID)
	env.executor.Stop()

	assert.Equal(t, domain.RunCompletedPartial, final.Status)
	assert.Equal(t, 10, final.RecordCount)

	a := env.taskFor(t, run.ID, "bluesky")
	assert.Equal(t, domain.TaskCompleted, a.Status)
	assert.Equal(t, 10, a.RecordsProduced)

	b := env.taskFor(t, run.ID, "reddit")
	assert.Equal(t, domain.TaskFailed, b.Status)
	assert.Equal(t, domain.ErrorClassCredential, b.ErrorClass)
	assert.NotEmpty(t, b.ErrorDetail)

	c := env.taskFor(t, run.ID, "youtube")
	assert.Equal(t, domain.TaskTimedOut, c.Status)
	assert.Equal(t, domain.ErrorClassTimeout, c.ErrorClass)
}

func TestRunOrchestrator_CredentialFailureIsolatedPerArena(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newOrchestratorEnv(t)
	env.register(t, termArena("bluesky"))
	env.factory.addStatic("bluesky", &fakeCollector{
		platform: "bluesky",
		modes:    []domain.CollectionMethod{domain.MethodTerm},
		items:    []domain.RawItem{rawPost("bluesky", "p1", "climate post")},
	})
	env.register(t, credentialedArena("reddit"))

	design := env.design(t, "design-1", "bluesky", "reddit")
	run, err := env.orchestrator.StartRun(context.Background(),
		driving.RunRequest{DesignID: design.ID})
	require.NoError(t, err)

	final := env.waitRunTerminal(t, run.ID)
	env.executor.Stop()

	// The missing reddit credential never touches the bluesky task.
	assert.Equal(t, domain.RunCompletedPartial, final.Status)
	assert.Equal(t, domain.TaskCompleted, env.taskFor(t, run.ID, "bluesky").Status)
	assert.Equal(t, domain.TaskFailed, env.taskFor(t, run.ID, "reddit").Status)
}

func TestRunOrchestrator_CancelRunCancelsRunningTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newOrchestratorEnv(t)
	for _, platform := range []string{"bluesky", "reddit"} {
		env.register(t, termArena(platform))
		env.factory.addStatic(platform, &fakeCollector{
			platform: platform,
			modes:    []domain.CollectionMethod{domain.MethodTerm},
			delay:    10 * time.Second,
		})
	}

	design := env.design(t, "design-1", "bluesky", "reddit")
	run, err := env.orchestrator.StartRun(context.Background(),
		driving.RunRequest{DesignID: design.ID})
	require.NoError(t, err)

	// Wait for both tasks to actually be running before cancelling.
	require.Eventually(t, func() bool {
		tasks, err := env.runs.ListTasks(context.Background(), run.ID)
		if err != nil || len(tasks) != 2 {
			return false
		}
		for _, task := range tasks {
			if task.Status != domain.TaskRunning {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, env.orchestrator.CancelRun(context.Background(), run.ID))

	final := env.waitRunTerminal(t, run.ID)
	env.executor.Stop()

	assert.Equal(t, domain.RunCancelled, final.Status)
	for _, platform := range []string{"bluesky", "reddit"} {
		task := env.taskFor(t, run.ID, platform)
		assert.Equal(t, domain.TaskCancelled, task.Status)
		assert.Equal(t, domain.ErrorClassNone, task.ErrorClass)
	}
}

func TestRunOrchestrator_CancelIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newOrchestratorEnv(t)
	env.register(t, termArena("bluesky"))
	env.factory.addStatic("bluesky", &fakeCollector{
		platform: "bluesky",
		modes:    []domain.CollectionMethod{domain.MethodTerm},
		items:    []domain.RawItem{rawPost("bluesky", "p1", "climate post")},
	})

	design := env.design(t, "design-1", "bluesky")
	run, err := env.orchestrator.StartRun(context.Background(),
		driving.RunRequest{DesignID: design.ID})
	require.NoError(t, err)

	final := env.waitRunTerminal(t, run.ID)
	env.executor.Stop()
	require.Equal(t, domain.RunCompleted, final.Status)

	// Cancelling a completed run is a no-op and does not disturb it.
	require.NoError(t, env.orchestrator.CancelRun(context.Background(), run.ID))
	after, err := env.runs.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, after.Status)
}

func TestRunOrchestrator_StubArenaFailsImmediately(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newOrchestratorEnv(t)
	stub := termArena("webarchive")
	stub.Stub = true
	env.register(t, stub)

	design := env.design(t, "design-1", "webarchive")
	run, err := env.orchestrator.StartRun(context.Background(),
		driving.RunRequest{DesignID: design.ID})
	require.NoError(t, err)

	// No executable arena: the run settles synchronously.
	assert.Equal(t, domain.RunFailed, run.Status)

	task := env.taskFor(t, run.ID, "webarchive")
	assert.Equal(t, domain.TaskFailed, task.Status)
	assert.Equal(t, domain.ErrorClassNotImplemented, task.ErrorClass)
	assert.Contains(t, task.ErrorDetail, "not implemented")
	assert.Equal(t, 0, env.factory.callCount("webarchive"),
		"stub arenas never reach the worker pool")
}

func TestRunOrchestrator_NoEnabledArenasRejected(t *testing.T) {
	env := newOrchestratorEnv(t)

	design := domain.QueryDesign{
		ID:          "design-1",
		DefaultTier: domain.TierFree,
		Method:      domain.MethodTerm,
		Terms:       []domain.SearchTerm{{Text: "climate"}},
		Arenas:      []domain.ArenaEnablement{{Platform: "bluesky", Enabled: false}},
	}
	require.NoError(t, env.designs.Save(context.Background(), design))

	_, err := env.orchestrator.StartRun(context.Background(),
		driving.RunRequest{DesignID: design.ID})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRunOrchestrator_UnknownDesignRejected(t *testing.T) {
	env := newOrchestratorEnv(t)

	_, err := env.orchestrator.StartRun(context.Background(),
		driving.RunRequest{DesignID: "missing"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunOrchestrator_StartRunRefusedWithoutExecutor(t *testing.T) {
	env := newOrchestratorEnv(t)
	env.register(t, termArena("bluesky"))
	design := env.design(t, "design-1", "bluesky")

	unwired := NewRunOrchestrator(
		env.registry, env.designs, env.runs, env.content,
		NewCredentialResolver(env.pool), env.feed, time.Minute)

	_, err := unwired.StartRun(context.Background(),
		driving.RunRequest{DesignID: design.ID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no task executor")

	// The refusal happens before anything is persisted, so no run is
	// ever left activated with no one to execute its tasks.
	runs, err := env.runs.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunOrchestrator_RunTierOverrideWinsOverDesignDefault(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newOrchestratorEnv(t)
	desc := termArena("bluesky")
	desc.Tiers = []domain.Tier{domain.TierFree, domain.TierPremium}
	desc.Credentials = map[domain.Tier]domain.CredentialRequirement{
		domain.TierFree:    domain.CredentialNone,
		domain.TierPremium: domain.CredentialNone,
	}
	env.register(t, desc)
	env.factory.addStatic("bluesky", &fakeCollector{
		platform: "bluesky",
		modes:    []domain.CollectionMethod{domain.MethodTerm},
		items:    []domain.RawItem{rawPost("bluesky", "p1", "climate post")},
	})

	design := env.design(t, "design-1", "bluesky")
	run, err := env.orchestrator.StartRun(context.Background(), driving.RunRequest{
		DesignID:      design.ID,
		TierOverrides: map[string]domain.Tier{"bluesky": domain.TierPremium},
	})
	require.NoError(t, err)

	env.waitRunTerminal(t, run.ID)
	env.executor.Stop()

	task := env.taskFor(t, run.ID, "bluesky")
	assert.Equal(t, domain.TierPremium, task.Tier)
	assert.Equal(t, domain.TaskCompleted, task.Status)
}

func TestRunOrchestrator_UnsupportedTierFailsAtDispatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newOrchestratorEnv(t)
	env.register(t, termArena("bluesky")) // free tier only

	design := env.design(t, "design-1", "bluesky")
	run, err := env.orchestrator.StartRun(context.Background(), driving.RunRequest{
		DesignID:      design.ID,
		TierOverrides: map[string]domain.Tier{"bluesky": domain.TierPremium},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RunFailed, run.Status)
	task := env.taskFor(t, run.ID, "bluesky")
	assert.Equal(t, domain.TaskFailed, task.Status)
	assert.Contains(t, task.ErrorDetail, "does not support tier")
}

func TestRunOrchestrator_RunTerminalOnlyWhenAllTasksTerminal(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newOrchestratorEnv(t)
	env.register(t, termArena("bluesky"))
	env.factory.addStatic("bluesky", &fakeCollector{
		platform: "bluesky",
		modes:    []domain.CollectionMethod{domain.MethodTerm},
		items:    []domain.RawItem{rawPost("bluesky", "p1", "climate post")},
	})
	env.register(t, termArena("reddit"))
	env.factory.addStatic("reddit", &fakeCollector{
		platform: "reddit",
		modes:    []domain.CollectionMethod{domain.MethodTerm},
		items:    []domain.RawItem{rawPost("reddit", "p1", "climate post")},
		delay:    150 * time.Millisecond,
	})

	design := env.design(t, "design-1", "bluesky", "reddit")
	run, err := env.orchestrator.StartRun(context.Background(),
		driving.RunRequest{DesignID: design.ID})
	require.NoError(t, err)

	// While the slow arena is still collecting, the run must stay
	// running even though the fast arena already completed.
	require.Eventually(t, func() bool {
		return env.taskFor(t, run.ID, "bluesky").Status == domain.TaskCompleted
	}, 5*time.Second, 10*time.Millisecond)
	mid, err := env.runs.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, mid.Status)

	final := env.waitRunTerminal(t, run.ID)
	env.executor.Stop()
	assert.Equal(t, domain.RunCompleted, final.Status)
	assert.Equal(t, 2, final.RecordCount)
}

func TestRunOrchestrator_StatusReturnsRunAndTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newOrchestratorEnv(t)
	env.register(t, termArena("bluesky"))
	env.factory.addStatic("bluesky", &fakeCollector{
		platform: "bluesky",
		modes:    []domain.CollectionMethod{domain.MethodTerm},
		items:    []domain.RawItem{rawPost("bluesky", "p1", "climate post")},
	})

	design := env.design(t, "design-1", "bluesky")
	run, err := env.orchestrator.StartRun(context.Background(),
		driving.RunRequest{DesignID: design.ID})
	require.NoError(t, err)
	env.waitRunTerminal(t, run.ID)
	env.executor.Stop()

	view, err := env.orchestrator.Status(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, view.Run.ID)
	require.Len(t, view.Tasks, 1)
	assert.Equal(t, "bluesky", view.Tasks[0].Platform)

	_, err = env.orchestrator.Status(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunOrchestrator_FeedCarriesTerminalEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newOrchestratorEnv(t)
	env.register(t, termArena("bluesky"))
	env.factory.addStatic("bluesky", &fakeCollector{
		platform: "bluesky",
		modes:    []domain.CollectionMethod{domain.MethodTerm},
		items:    []domain.RawItem{rawPost("bluesky", "p1", "climate post")},
	})

	events, cancel := env.feed.Subscribe()
	defer cancel()

	design := env.design(t, "design-1", "bluesky")
	run, err := env.orchestrator.StartRun(context.Background(),
		driving.RunRequest{DesignID: design.ID})
	require.NoError(t, err)
	env.waitRunTerminal(t, run.ID)
	env.executor.Stop()

	var terminal int
	deadline := time.After(2 * time.Second)
	for terminal == 0 {
		select {
		case event := <-events:
			if event.RunID == run.ID && event.Terminal() {
				terminal++
				assert.Equal(t, domain.TaskCompleted, event.Status)
				assert.Equal(t, 1, event.Records)
			}
		case <-deadline:
			t.Fatal("no terminal task event observed on the feed")
		}
	}
}
