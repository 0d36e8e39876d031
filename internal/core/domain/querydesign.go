package domain

import "time"

// TermType distinguishes kinds of search terms.
type TermType string

const (
	// TermKeyword is a plain keyword or phrase.
	TermKeyword TermType = "keyword"
	// TermHashtag is a hashtag (collectors may strip or add the '#').
	TermHashtag TermType = "hashtag"
	// TermPhrase is an exact phrase match.
	TermPhrase TermType = "phrase"
)

// SearchTerm is one term in a query design.
//
// TargetArenas scopes where the term applies: an empty set means the term
// applies to every enabled arena, a non-empty set restricts it to exactly
// those platform ids. Scoping is evaluated per-arena at dispatch time so
// arena enablement can change independently of term definitions.
type SearchTerm struct {
	// Text is the term text as entered by the researcher.
	Text string
	// Type is the kind of term.
	Type TermType
	// GroupID optionally joins terms into a boolean OR-group.
	// Empty means the term stands alone.
	GroupID string
	// TargetArenas restricts the term to specific platform ids.
	// Empty means "all enabled arenas".
	TargetArenas []string
}

// AppliesTo reports whether the term applies to the given platform.
func (t *SearchTerm) AppliesTo(platform string) bool {
	if len(t.TargetArenas) == 0 {
		return true
	}
	for _, p := range t.TargetArenas {
		if p == platform {
			return true
		}
	}
	return false
}

// ArenaEnablement switches one arena on or off for a query design,
// optionally overriding the design's default tier for that arena.
type ArenaEnablement struct {
	// Platform is the arena's platform id.
	Platform string
	// Enabled controls whether the arena participates in runs.
	Enabled bool
	// TierOverride overrides the design's default tier for this arena.
	// Nil means no override.
	TierOverride *Tier
	// Config contains arena-specific settings for this design.
	Config map[string]string
}

// QueryDesign is a researcher's declarative collection request.
// It is owned by the research layer and read-only during a run.
type QueryDesign struct {
	// ID is the unique identifier (UUID).
	ID string
	// Name is the human-readable design name.
	Name string
	// DefaultTier is the tier used for arenas without an override.
	DefaultTier Tier
	// Method selects term-based or actor-based collection.
	Method CollectionMethod
	// Terms are the search terms, in researcher-defined order.
	Terms []SearchTerm
	// Actors are the tracked actor presences for actor-based collection.
	Actors []ActorPresence
	// Arenas lists the per-arena enablement entries.
	Arenas []ArenaEnablement
	// LiveInterval is how often the scheduler re-dispatches live runs.
	// Zero disables live tracking for this design.
	LiveInterval time.Duration
	// CreatedAt is when the design was created.
	CreatedAt time.Time
}

// EnabledArenas returns the enablement entries that are switched on,
// preserving design order.
func (d *QueryDesign) EnabledArenas() []ArenaEnablement {
	result := make([]ArenaEnablement, 0, len(d.Arenas))
	for _, a := range d.Arenas {
		if a.Enabled {
			result = append(result, a)
		}
	}
	return result
}

// Enablement returns the enablement entry for a platform, or nil.
func (d *QueryDesign) Enablement(platform string) *ArenaEnablement {
	for i := range d.Arenas {
		if d.Arenas[i].Platform == platform {
			return &d.Arenas[i]
		}
	}
	return nil
}
