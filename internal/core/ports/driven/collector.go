package driven

import (
	"context"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
)

// Health is the result of a collector health check.
type Health string

const (
	// HealthOK means the platform is fully reachable.
	HealthOK Health = "ok"
	// HealthDegraded means the platform responds but with reduced service.
	HealthDegraded Health = "degraded"
	// HealthDown means the platform is unreachable.
	HealthDown Health = "down"
)

// CollectRequest describes a pending collection for cost estimation.
// Estimates are pre-flight display only, never authoritative for billing.
type CollectRequest struct {
	Method    domain.CollectionMethod
	Terms     []domain.SearchTerm
	Actors    []domain.ActorPresence
	DateRange domain.DateRange
	Tier      domain.Tier
}

// Collector fetches raw items from one arena.
// Each arena integration (bluesky, reddit, youtube, ...) implements this
// interface; the task executor is its only consumer. Implementations
// convert platform payloads to domain.RawItem and surface platform
// failures as errors on the error channel — classification into the
// task error taxonomy happens at the executor boundary.
type Collector interface {
	// Platform returns the arena's platform id.
	Platform() string

	// SupportsMode reports whether the collection method is available.
	// The executor rejects unsupported modes before any network call.
	SupportsMode(mode domain.CollectionMethod) bool

	// CollectByTerms streams items matching the given terms within the
	// date range. The channels are closed when the collection is done;
	// pagination is handled internally. A fresh call restarts collection.
	CollectByTerms(ctx context.Context, terms []domain.SearchTerm, dateRange domain.DateRange) (<-chan domain.RawItem, <-chan error)

	// CollectByActors streams items published by the given actor
	// presences within the date range.
	CollectByActors(ctx context.Context, actors []domain.ActorPresence, dateRange domain.DateRange) (<-chan domain.RawItem, <-chan error)

	// EstimateCost returns a credit estimate for the request.
	EstimateCost(req CollectRequest) int

	// HealthCheck probes the platform with a lightweight request.
	HealthCheck(ctx context.Context) Health

	// Close releases resources.
	Close() error
}

// CollectorFactory builds a collector for a registered arena.
// The credential is the one resolved for the task's tier; nil when the
// tier requires none. Config carries the design's arena-specific settings.
type CollectorFactory interface {
	Create(ctx context.Context, desc domain.ArenaDescriptor, cred *domain.Credential, config map[string]string) (Collector, error)
}
