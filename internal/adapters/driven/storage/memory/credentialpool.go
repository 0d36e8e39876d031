package memory

import (
	"context"
	"sync"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
)

// Ensure CredentialPool implements the interface.
var _ driven.CredentialPool = (*CredentialPool)(nil)

// CredentialPool is an in-memory implementation of driven.CredentialPool.
// Reads take a shared lock so many concurrent tasks can resolve at once.
type CredentialPool struct {
	mu    sync.RWMutex
	creds []domain.Credential
}

// NewCredentialPool creates an empty in-memory credential pool.
func NewCredentialPool() *CredentialPool {
	return &CredentialPool{}
}

// Active returns the active credentials for the exact (platform, tier)
// pair in pool order.
func (p *CredentialPool) Active(_ context.Context, platform string, tier domain.Tier) ([]domain.Credential, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var result []domain.Credential
	for _, c := range p.creds {
		if c.Platform == platform && c.Tier == tier && c.Status == domain.CredentialActive {
			result = append(result, c)
		}
	}
	return result, nil
}

// List returns every pooled credential.
func (p *CredentialPool) List(_ context.Context) ([]domain.Credential, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]domain.Credential, len(p.creds))
	copy(result, p.creds)
	return result, nil
}

// Add inserts a credential into the pool.
func (p *CredentialPool) Add(_ context.Context, cred domain.Credential) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creds = append(p.creds, cred)
	return nil
}

// Replace swaps the whole pool contents. Used by the file loader when
// the credentials file changes on disk.
func (p *CredentialPool) Replace(creds []domain.Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creds = make([]domain.Credential, len(creds))
	copy(p.creds, creds)
}
