package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
)

// Ensure DesignStore implements the interface.
var _ driven.QueryDesignStore = (*DesignStore)(nil)

// DesignStore is an in-memory implementation of driven.QueryDesignStore.
type DesignStore struct {
	mu      sync.RWMutex
	designs map[string]domain.QueryDesign
}

// NewDesignStore creates a new in-memory design store.
func NewDesignStore() *DesignStore {
	return &DesignStore{designs: make(map[string]domain.QueryDesign)}
}

// Save stores or updates a design.
func (s *DesignStore) Save(_ context.Context, design domain.QueryDesign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.designs[design.ID] = design
	return nil
}

// Get retrieves a design by ID.
func (s *DesignStore) Get(_ context.Context, id string) (*domain.QueryDesign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	design, ok := s.designs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &design, nil
}

// List returns all designs ordered by name.
func (s *DesignStore) List(_ context.Context) ([]domain.QueryDesign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.QueryDesign, 0, len(s.designs))
	for _, design := range s.designs {
		result = append(result, design)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}
