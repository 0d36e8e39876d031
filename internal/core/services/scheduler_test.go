package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alterPublics/issue-obervatory-sub001/internal/adapters/driven/storage/memory"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driving"
)

// recordingOrchestrator captures StartRun requests issued by the
// scheduler.
type recordingOrchestrator struct {
	mu       sync.Mutex
	requests []driving.RunRequest
}

var _ driving.RunOrchestrator = (*recordingOrchestrator)(nil)

func (o *recordingOrchestrator) StartRun(_ context.Context, req driving.RunRequest) (*domain.CollectionRun, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, req)
	return &domain.CollectionRun{ID: "run-" + req.DesignID, Status: domain.RunRunning}, nil
}

func (o *recordingOrchestrator) CancelRun(context.Context, string) error { return nil }

func (o *recordingOrchestrator) Status(context.Context, string) (*driving.RunView, error) {
	return nil, domain.ErrNotFound
}

func (o *recordingOrchestrator) started() []driving.RunRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := make([]driving.RunRequest, len(o.requests))
	copy(result, o.requests)
	return result
}

func (o *recordingOrchestrator) countFor(designID string) int {
	n := 0
	for _, req := range o.started() {
		if req.DesignID == designID {
			n++
		}
	}
	return n
}

func saveDesign(t *testing.T, store *memory.DesignStore, id string, interval time.Duration) {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), domain.QueryDesign{
		ID:           id,
		DefaultTier:  domain.TierFree,
		Method:       domain.MethodTerm,
		Terms:        []domain.SearchTerm{{Text: "climate"}},
		Arenas:       []domain.ArenaEnablement{{Platform: "bluesky", Enabled: true}},
		LiveInterval: interval,
	}))
}

func TestLiveScheduler_DispatchesDueDesignsInLiveMode(t *testing.T) {
	defer goleak.VerifyNone(t)

	designs := memory.NewDesignStore()
	saveDesign(t, designs, "tracked", 10*time.Millisecond)
	saveDesign(t, designs, "batch-only", 0) // no live interval

	orch := &recordingOrchestrator{}
	scheduler := NewLiveScheduler(designs, orch, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = scheduler.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return orch.countFor("tracked") >= 2
	}, 5*time.Second, 5*time.Millisecond, "due design is re-dispatched each interval")
	scheduler.Stop()
	<-done

	for _, req := range orch.started() {
		assert.Equal(t, "tracked", req.DesignID)
		assert.Equal(t, domain.ModeLive, req.Mode)
	}
	assert.Zero(t, orch.countFor("batch-only"),
		"designs without a live interval are never scheduled")
}

func TestLiveScheduler_RespectsInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	designs := memory.NewDesignStore()
	saveDesign(t, designs, "slow", time.Hour)

	orch := &recordingOrchestrator{}
	scheduler := NewLiveScheduler(designs, orch, time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = scheduler.Start(context.Background())
		close(done)
	}()

	// The first dispatch happens immediately; the hour-long interval
	// prevents any further one however often the scheduler ticks.
	require.Eventually(t, func() bool {
		return orch.countFor("slow") == 1
	}, 5*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	scheduler.Stop()
	<-done

	assert.Equal(t, 1, orch.countFor("slow"))
}

func TestLiveScheduler_StopIsIdempotentAndWaits(t *testing.T) {
	defer goleak.VerifyNone(t)

	designs := memory.NewDesignStore()
	saveDesign(t, designs, "tracked", time.Millisecond)

	orch := &recordingOrchestrator{}
	scheduler := NewLiveScheduler(designs, orch, time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = scheduler.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return orch.countFor("tracked") >= 1
	}, 5*time.Second, time.Millisecond)

	scheduler.Stop()
	scheduler.Stop() // second call is a no-op

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler loop did not exit after Stop")
	}
}

func TestLiveScheduler_ContextCancellationStopsLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	designs := memory.NewDesignStore()
	orch := &recordingOrchestrator{}
	scheduler := NewLiveScheduler(designs, orch, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler loop did not observe context cancellation")
	}
}
