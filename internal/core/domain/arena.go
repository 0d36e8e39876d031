package domain

import (
	"fmt"
	"time"
)

// Tier is the quality/cost level at which an arena is collected.
// Tiers are ordered: free < medium < premium.
type Tier int

const (
	// TierFree is the zero-cost tier (public endpoints, limited quotas).
	TierFree Tier = iota
	// TierMedium is the standard paid tier.
	TierMedium
	// TierPremium is the highest-quality paid tier.
	TierPremium
)

// String returns the tier's wire/storage representation.
func (t Tier) String() string {
	switch t {
	case TierFree:
		return "free"
	case TierMedium:
		return "medium"
	case TierPremium:
		return "premium"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier converts a stored tier string back to a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "free":
		return TierFree, nil
	case "medium":
		return TierMedium, nil
	case "premium":
		return TierPremium, nil
	default:
		return TierFree, fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, s)
	}
}

// CollectionMode distinguishes one-off batch runs from recurring live tracking.
type CollectionMode string

const (
	// ModeBatch is a single execution over a fixed date range.
	ModeBatch CollectionMode = "batch"
	// ModeLive is a recurring execution driven by the scheduler.
	ModeLive CollectionMode = "live"
)

// CollectionMethod selects how content is gathered from an arena.
type CollectionMethod string

const (
	// MethodTerm collects content matching search terms.
	MethodTerm CollectionMethod = "term"
	// MethodActor collects content published by tracked actors.
	MethodActor CollectionMethod = "actor"
)

// CredentialRequirement declares whether a tier needs a credential.
type CredentialRequirement string

const (
	// CredentialNone means the tier works without any credential.
	CredentialNone CredentialRequirement = "none"
	// CredentialRequired means a credential must resolve for the tier.
	CredentialRequired CredentialRequirement = "required"
)

// ConfigKey describes a custom configuration field an arena accepts.
type ConfigKey struct {
	// Key is the configuration key name.
	Key string
	// Label is the human-readable label for display.
	Label string
	// Description explains what this field is for.
	Description string
	// Default is the default value for this field.
	Default string
	// Required indicates the field must be provided.
	Required bool
}

// ArenaDescriptor is a registry entry describing one external data source.
// Descriptors are immutable after registration.
//
// Platform is the globally unique registry key. Category is a display
// attribute only and is never unique: two arenas in the same category
// (e.g. two search engines) are distinct registry entries.
type ArenaDescriptor struct {
	// Platform is the globally unique platform identifier (e.g. "bluesky").
	Platform string
	// Name is the human-readable display name.
	Name string
	// Category groups arenas for display ("social", "search", "news", "archive").
	Category string
	// Tiers lists the tiers this arena supports, in ascending order.
	Tiers []Tier
	// Credentials maps each supported tier to its credential requirement.
	Credentials map[Tier]CredentialRequirement
	// Modes lists the collection methods this arena supports.
	Modes []CollectionMethod
	// ConfigKeys lists arena-specific configuration fields.
	ConfigKeys []ConfigKey
	// TaskBudget overrides the deployment-wide task wall-clock budget.
	// Zero means use the deployment default.
	TaskBudget time.Duration
	// Stub marks an arena that is declared but not yet implemented.
	// Stub arenas are rejected at dispatch time.
	Stub bool
}

// SupportsTier reports whether the arena supports the given tier.
func (a *ArenaDescriptor) SupportsTier(tier Tier) bool {
	for _, t := range a.Tiers {
		if t == tier {
			return true
		}
	}
	return false
}

// SupportsMode reports whether the arena supports the given collection method.
func (a *ArenaDescriptor) SupportsMode(mode CollectionMethod) bool {
	for _, m := range a.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// RequiresCredential reports whether collecting at the given tier needs a credential.
func (a *ArenaDescriptor) RequiresCredential(tier Tier) bool {
	return a.Credentials[tier] == CredentialRequired
}
