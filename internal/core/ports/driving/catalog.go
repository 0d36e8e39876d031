package driving

import "github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"

// ArenaCatalog exposes the static arena registry.
type ArenaCatalog interface {
	// Lookup returns the descriptor for a platform id. Fails with a
	// typed *domain.UnknownArenaError for unregistered platforms.
	Lookup(platform string) (*domain.ArenaDescriptor, error)

	// ListAll returns every registered descriptor, ordered by platform id.
	ListAll() []domain.ArenaDescriptor
}
