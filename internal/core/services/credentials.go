package services

import (
	"context"
	"fmt"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
)

// CredentialResolver maps (platform, tier) to an active pooled credential.
//
// Resolution only considers credentials explicitly active for the exact
// pair. There is no implicit fallback to a lower tier: silently degrading
// collection quality erodes trust in the declared tier, so the resolver
// fails loudly and the orchestrator decides policy.
type CredentialResolver struct {
	pool driven.CredentialPool
}

// NewCredentialResolver creates a resolver over a credential pool.
func NewCredentialResolver(pool driven.CredentialPool) *CredentialResolver {
	return &CredentialResolver{pool: pool}
}

// Resolve returns an active credential for the exact (platform, tier)
// pair, or a *domain.NoCredentialAvailableError.
func (r *CredentialResolver) Resolve(ctx context.Context, platform string, tier domain.Tier) (*domain.Credential, error) {
	creds, err := r.pool.Active(ctx, platform, tier)
	if err != nil {
		return nil, fmt.Errorf("query credential pool: %w", err)
	}
	for i := range creds {
		if creds[i].Usable() {
			return &creds[i], nil
		}
	}
	return nil, &domain.NoCredentialAvailableError{Platform: platform, Tier: tier}
}

// EffectiveTier merges the three tier override layers for one arena,
// most specific layer winning on conflict:
//
//  1. runOverride — per-arena override set at launch time, may be nil
//  2. enablement.TierOverride — stored on the design's arena enablement
//  3. defaultTier — the design's default
func EffectiveTier(runOverride *domain.Tier, enablement *domain.ArenaEnablement, defaultTier domain.Tier) domain.Tier {
	if runOverride != nil {
		return *runOverride
	}
	if enablement != nil && enablement.TierOverride != nil {
		return *enablement.TierOverride
	}
	return defaultTier
}
