package main

import (
	"context"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
)

// Ensure layeredPool implements the interface.
var _ driven.CredentialPool = (*layeredPool)(nil)

// layeredPool combines the hot-reloaded credentials file with the
// store-backed pool. File credentials come first in pool order; Add
// always writes to the store so CLI-added credentials persist.
type layeredPool struct {
	file  driven.CredentialPool
	store driven.CredentialPool
}

func (p *layeredPool) Active(ctx context.Context, platform string, tier domain.Tier) ([]domain.Credential, error) {
	fromFile, err := p.file.Active(ctx, platform, tier)
	if err != nil {
		return nil, err
	}
	fromStore, err := p.store.Active(ctx, platform, tier)
	if err != nil {
		return nil, err
	}
	return append(fromFile, fromStore...), nil
}

func (p *layeredPool) List(ctx context.Context) ([]domain.Credential, error) {
	fromFile, err := p.file.List(ctx)
	if err != nil {
		return nil, err
	}
	fromStore, err := p.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return append(fromFile, fromStore...), nil
}

func (p *layeredPool) Add(ctx context.Context, cred domain.Credential) error {
	return p.store.Add(ctx, cred)
}
