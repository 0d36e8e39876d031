package domain

import "time"

// CredentialStatus is the lifecycle state of a pooled credential.
type CredentialStatus string

const (
	// CredentialActive means the credential may be handed to tasks.
	CredentialActive CredentialStatus = "active"
	// CredentialExpired means the credential's validity window has passed.
	CredentialExpired CredentialStatus = "expired"
	// CredentialRevoked means the credential was withdrawn by an operator.
	CredentialRevoked CredentialStatus = "revoked"
)

// Credential is one entry in the credential pool, keyed by (platform, tier).
// The orchestration engine only ever reads credentials; the pool owns them.
type Credential struct {
	// ID is the unique identifier (UUID).
	ID string
	// Platform is the arena this credential is valid for.
	Platform string
	// Tier is the exact tier this credential unlocks. There is no
	// implicit fallback to a lower tier during resolution.
	Tier Tier
	// Secret is the opaque secret payload (API key, token, key:secret pair).
	// Its internal format is interpreted only by the arena's collector.
	Secret string
	// Status gates resolution: only active credentials resolve.
	Status CredentialStatus
	// Label is an optional operator-facing note ("research account 2").
	Label string
	// CreatedAt is when the credential entered the pool.
	CreatedAt time.Time
}

// Usable reports whether the credential may be handed to a task.
func (c *Credential) Usable() bool {
	return c.Status == CredentialActive && c.Secret != ""
}
