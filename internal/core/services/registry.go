package services

import (
	"sort"
	"sync"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driving"
)

// Ensure ArenaRegistry implements the interface.
var _ driving.ArenaCatalog = (*ArenaRegistry)(nil)

// ArenaRegistry is the static catalog of collector capabilities.
//
// The catalog is keyed strictly by globally-unique platform id, never by
// display category: two search engines are two entries. Registration of
// an existing platform id fails instead of overwriting, so the catalog
// can never silently undercount.
//
// The registry is constructed once at process start and dependency-
// injected; after startup it is read-only.
type ArenaRegistry struct {
	mu     sync.RWMutex
	arenas map[string]domain.ArenaDescriptor
}

// NewArenaRegistry creates an empty registry.
func NewArenaRegistry() *ArenaRegistry {
	return &ArenaRegistry{arenas: make(map[string]domain.ArenaDescriptor)}
}

// Register adds a descriptor to the catalog.
// Fails with *domain.DuplicateArenaError if the platform id exists.
func (r *ArenaRegistry) Register(desc domain.ArenaDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if desc.Platform == "" {
		return domain.ErrInvalidInput
	}
	if _, exists := r.arenas[desc.Platform]; exists {
		return &domain.DuplicateArenaError{Platform: desc.Platform}
	}
	r.arenas[desc.Platform] = desc
	return nil
}

// Lookup returns the descriptor for a platform id.
// Fails with *domain.UnknownArenaError for unregistered platforms, never
// a bare not-found that callers would have to probe for.
func (r *ArenaRegistry) Lookup(platform string) (*domain.ArenaDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.arenas[platform]
	if !ok {
		return nil, &domain.UnknownArenaError{Platform: platform}
	}
	return &desc, nil
}

// ListAll returns every registered descriptor, ordered by platform id.
func (r *ArenaRegistry) ListAll() []domain.ArenaDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.ArenaDescriptor, 0, len(r.arenas))
	for _, desc := range r.arenas {
		result = append(result, desc)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Platform < result[j].Platform
	})
	return result
}
