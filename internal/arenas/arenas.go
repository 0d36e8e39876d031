// Package arenas declares the built-in arena catalogue and the factory
// that turns a registry descriptor into a live collector.
package arenas

import (
	"context"
	"fmt"

	"github.com/alterPublics/issue-obervatory-sub001/internal/arenas/bluesky"
	"github.com/alterPublics/issue-obervatory-sub001/internal/arenas/reddit"
	"github.com/alterPublics/issue-obervatory-sub001/internal/arenas/youtube"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
)

// Descriptors returns the built-in arena catalogue, ready to register.
func Descriptors() []domain.ArenaDescriptor {
	return []domain.ArenaDescriptor{
		{
			Platform: bluesky.PlatformID,
			Name:     "Bluesky",
			Category: "social",
			Tiers:    []domain.Tier{domain.TierFree},
			Credentials: map[domain.Tier]domain.CredentialRequirement{
				domain.TierFree: domain.CredentialNone,
			},
			Modes: []domain.CollectionMethod{domain.MethodTerm, domain.MethodActor},
			ConfigKeys: []domain.ConfigKey{
				{Key: "base_url", Label: "AppView URL", Description: "Alternative AppView endpoint", Default: bluesky.DefaultBaseURL},
			},
		},
		{
			Platform: reddit.PlatformID,
			Name:     "Reddit",
			Category: "social",
			Tiers:    []domain.Tier{domain.TierFree, domain.TierPremium},
			Credentials: map[domain.Tier]domain.CredentialRequirement{
				domain.TierFree:    domain.CredentialRequired,
				domain.TierPremium: domain.CredentialRequired,
			},
			Modes: []domain.CollectionMethod{domain.MethodTerm},
			ConfigKeys: []domain.ConfigKey{
				{Key: "subreddits", Label: "Subreddits", Description: "Plus-separated subreddits to scope the search (e.g. denmark+copenhagen)"},
			},
		},
		{
			Platform: youtube.PlatformID,
			Name:     "YouTube",
			Category: "social",
			Tiers:    []domain.Tier{domain.TierFree},
			Credentials: map[domain.Tier]domain.CredentialRequirement{
				domain.TierFree: domain.CredentialRequired,
			},
			Modes: []domain.CollectionMethod{domain.MethodTerm, domain.MethodActor},
		},
		{
			Platform: "webarchive",
			Name:     "Web Archive",
			Category: "archive",
			Tiers:    []domain.Tier{domain.TierFree},
			Credentials: map[domain.Tier]domain.CredentialRequirement{
				domain.TierFree: domain.CredentialNone,
			},
			Modes: []domain.CollectionMethod{domain.MethodTerm},
			Stub:  true,
		},
	}
}

// Ensure Factory implements the interface.
var _ driven.CollectorFactory = (*Factory)(nil)

// Factory builds collectors for the built-in arenas.
type Factory struct{}

// NewFactory creates the built-in collector factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create instantiates the collector for the descriptor's platform.
func (f *Factory) Create(ctx context.Context, desc domain.ArenaDescriptor, cred *domain.Credential, config map[string]string) (driven.Collector, error) {
	switch desc.Platform {
	case bluesky.PlatformID:
		return bluesky.New(config), nil
	case reddit.PlatformID:
		return reddit.New(ctx, cred, config)
	case youtube.PlatformID:
		return youtube.New(ctx, cred, config)
	default:
		return nil, fmt.Errorf("building collector: %w", &domain.UnknownArenaError{Platform: desc.Platform})
	}
}
