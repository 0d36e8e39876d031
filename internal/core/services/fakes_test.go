package services

import (
	"context"
	"sync"
	"time"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
)

// fakeCollector is a scriptable collector for executor and orchestrator
// tests.
type fakeCollector struct {
	platform string
	modes    []domain.CollectionMethod
	items    []domain.RawItem
	// err is emitted on the error channel after the items.
	err error
	// delay is slept before anything is emitted, to trigger timeouts.
	delay  time.Duration
	health driven.Health

	mu     sync.Mutex
	closed bool
}

var _ driven.Collector = (*fakeCollector)(nil)

func (c *fakeCollector) Platform() string { return c.platform }

func (c *fakeCollector) SupportsMode(mode domain.CollectionMethod) bool {
	for _, m := range c.modes {
		if m == mode {
			return true
		}
	}
	return false
}

func (c *fakeCollector) CollectByTerms(ctx context.Context, _ []domain.SearchTerm, _ domain.DateRange) (<-chan domain.RawItem, <-chan error) {
	return c.stream(ctx)
}

func (c *fakeCollector) CollectByActors(ctx context.Context, _ []domain.ActorPresence, _ domain.DateRange) (<-chan domain.RawItem, <-chan error) {
	return c.stream(ctx)
}

func (c *fakeCollector) stream(ctx context.Context) (<-chan domain.RawItem, <-chan error) {
	items := make(chan domain.RawItem)
	errs := make(chan error, 1)
	go func() {
		defer close(items)
		defer close(errs)

		if c.delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.delay):
			}
		}
		for _, item := range c.items {
			select {
			case <-ctx.Done():
				return
			case items <- item:
			}
		}
		if c.err != nil {
			errs <- c.err
		}
	}()
	return items, errs
}

func (c *fakeCollector) EstimateCost(driven.CollectRequest) int { return len(c.items) }

func (c *fakeCollector) HealthCheck(context.Context) driven.Health {
	if c.health == "" {
		return driven.HealthOK
	}
	return c.health
}

func (c *fakeCollector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// fakeFactory returns a scripted collector per platform, counting calls
// so retry behaviour can be asserted.
type fakeFactory struct {
	mu         sync.Mutex
	calls      map[string]int
	collectors map[string]func(call int) *fakeCollector
}

var _ driven.CollectorFactory = (*fakeFactory)(nil)

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		calls:      make(map[string]int),
		collectors: make(map[string]func(call int) *fakeCollector),
	}
}

func (f *fakeFactory) add(platform string, build func(call int) *fakeCollector) {
	f.collectors[platform] = build
}

// addStatic registers a collector that behaves the same on every attempt.
func (f *fakeFactory) addStatic(platform string, c *fakeCollector) {
	f.add(platform, func(int) *fakeCollector { return c })
}

func (f *fakeFactory) Create(_ context.Context, desc domain.ArenaDescriptor, _ *domain.Credential, _ map[string]string) (driven.Collector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	build, ok := f.collectors[desc.Platform]
	if !ok {
		return nil, &domain.UnknownArenaError{Platform: desc.Platform}
	}
	f.calls[desc.Platform]++
	return build(f.calls[desc.Platform]), nil
}

func (f *fakeFactory) callCount(platform string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[platform]
}

// termArena builds a descriptor for a term-capable arena without
// credential requirements.
func termArena(platform string) domain.ArenaDescriptor {
	return domain.ArenaDescriptor{
		Platform: platform,
		Name:     platform,
		Category: "social",
		Tiers:    []domain.Tier{domain.TierFree},
		Credentials: map[domain.Tier]domain.CredentialRequirement{
			domain.TierFree: domain.CredentialNone,
		},
		Modes: []domain.CollectionMethod{domain.MethodTerm, domain.MethodActor},
	}
}

// rawPost builds a minimal raw item mentioning the given term.
func rawPost(platform, id, text string) domain.RawItem {
	return domain.RawItem{
		Platform:    platform,
		ExternalID:  id,
		ContentType: "post",
		Body:        text,
		URL:         "https://" + platform + ".example/" + id,
		Author:      "author-" + id,
		PublishedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}
