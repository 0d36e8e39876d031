package domain

import "time"

// ContentRecord is the canonical unit of collected content.
// Records are produced by the normalisation pipeline and thereafter
// owned by the content store; duplicates are marked, never deleted.
type ContentRecord struct {
	// ID is the unique identifier (UUID).
	ID string
	// RunID references the run that collected the record.
	RunID string
	// DesignID references the query design.
	DesignID string
	// Platform is the source arena's platform id.
	Platform string
	// ExternalID is the platform's own identifier for the item.
	ExternalID string
	// Category is the arena's display category at collection time.
	Category string
	// ContentType describes the item ("post", "article", "video", "comment").
	ContentType string
	// Title is the normalised title, empty for platforms without titles.
	Title string
	// Body is the normalised text content.
	Body string
	// URL is the canonical link.
	URL string
	// Author identifies the author on the platform.
	Author string
	// PublishedAt is when the item was published on the platform.
	PublishedAt time.Time
	// CollectedAt is when the engine stored the record.
	CollectedAt time.Time
	// Language is the BCP-47 language tag, if known.
	Language string
	// MatchedTerms lists the search terms that caused inclusion of this
	// record on this platform. Never empty for term-based collection:
	// downstream consumers read it as the inclusion justification.
	MatchedTerms []string
	// Fingerprint is the stable content hash used for dedup within a run.
	Fingerprint string
	// DuplicateOf references the first-seen record with the same
	// fingerprint in the same run. Empty for canonical records.
	DuplicateOf string
}

// IsDuplicate reports whether the record was marked as a duplicate.
func (r *ContentRecord) IsDuplicate() bool {
	return r.DuplicateOf != ""
}
