package cli

import (
	"bytes"
	"context"
	"sync"

	"github.com/alterPublics/issue-obervatory-sub001/internal/adapters/driven/feed"
	"github.com/alterPublics/issue-obervatory-sub001/internal/adapters/driven/storage/memory"
	"github.com/alterPublics/issue-obervatory-sub001/internal/arenas"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driving"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/services"
)

// fakeOrchestrator records requests and serves canned views.
type fakeOrchestrator struct {
	mu        sync.Mutex
	requests  []driving.RunRequest
	cancelled []string
	startErr  error
	view      *driving.RunView
}

var _ driving.RunOrchestrator = (*fakeOrchestrator)(nil)

func (f *fakeOrchestrator) StartRun(_ context.Context, req driving.RunRequest) (*domain.CollectionRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.requests = append(f.requests, req)
	// Terminal so that start commands return without streaming.
	return &domain.CollectionRun{ID: "run-1", DesignID: req.DesignID, Mode: req.Mode, Status: domain.RunCompleted}, nil
}

func (f *fakeOrchestrator) CancelRun(_ context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, runID)
	return nil
}

func (f *fakeOrchestrator) Status(_ context.Context, runID string) (*driving.RunView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.view == nil {
		return nil, domain.ErrNotFound
	}
	view := *f.view
	return &view, nil
}

func (f *fakeOrchestrator) setView(view driving.RunView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.view = &view
}

// testEnv wires the commands to in-memory services.
type testEnv struct {
	orchestrator *fakeOrchestrator
	designs      *memory.DesignStore
	runs         *memory.RunStore
	credentials  *memory.CredentialPool
	feed         *feed.Broadcast
}

func setupTestServices() (*testEnv, func()) {
	registry := services.NewArenaRegistry()
	for _, desc := range arenas.Descriptors() {
		_ = registry.Register(desc)
	}

	env := &testEnv{
		orchestrator: &fakeOrchestrator{},
		designs:      memory.NewDesignStore(),
		runs:         memory.NewRunStore(),
		credentials:  memory.NewCredentialPool(),
		feed:         feed.NewBroadcast(),
	}
	Configure(Services{
		Catalog:      registry,
		Orchestrator: env.orchestrator,
		Runs:         env.runs,
		Designs:      env.designs,
		Credentials:  env.credentials,
		Feed:         env.feed,
	})

	cleanup := func() {
		env.feed.Close()
		Configure(Services{})
	}
	return env, cleanup
}

// execute runs the root command with args and returns combined output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(nil)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
