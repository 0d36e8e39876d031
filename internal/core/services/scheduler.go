package services

import (
	"context"
	"sync"
	"time"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driving"
	"github.com/alterPublics/issue-obervatory-sub001/internal/logger"
)

// LiveScheduler re-dispatches live-tracking query designs at their
// configured interval. Each tick creates a fresh live-mode collection
// run; batch runs are never touched.
type LiveScheduler struct {
	designs      driven.QueryDesignStore
	orchestrator driving.RunOrchestrator
	tick         time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	nextRun map[string]time.Time
}

// NewLiveScheduler creates a scheduler checking for due designs every
// tick. A zero tick defaults to one minute.
func NewLiveScheduler(designs driven.QueryDesignStore, orchestrator driving.RunOrchestrator, tick time.Duration) *LiveScheduler {
	if tick <= 0 {
		tick = time.Minute
	}
	return &LiveScheduler{
		designs:      designs,
		orchestrator: orchestrator,
		tick:         tick,
		nextRun:      make(map[string]time.Time),
	}
}

// Start begins the scheduler loop. Blocks until Stop is called or the
// context is cancelled.
func (s *LiveScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.dispatchDue(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// Stop shuts the scheduler down and waits for in-flight dispatches.
func (s *LiveScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

// dispatchDue launches a live run for every design whose interval has
// elapsed.
func (s *LiveScheduler) dispatchDue(ctx context.Context) {
	designs, err := s.designs.List(ctx)
	if err != nil {
		logger.Warn("scheduler: list designs: %v", err)
		return
	}

	now := time.Now()
	for i := range designs {
		design := designs[i]
		if design.LiveInterval <= 0 {
			continue
		}

		s.mu.Lock()
		next, seen := s.nextRun[design.ID]
		if seen && now.Before(next) {
			s.mu.Unlock()
			continue
		}
		s.nextRun[design.ID] = now.Add(design.LiveInterval)
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			run, err := s.orchestrator.StartRun(ctx, driving.RunRequest{
				DesignID: design.ID,
				Mode:     domain.ModeLive,
			})
			if err != nil {
				logger.Warn("scheduler: start live run for design %s: %v", design.ID, err)
				return
			}
			logger.Info("scheduler: live run %s started for design %s", run.ID, design.ID)
		}()
	}
}
