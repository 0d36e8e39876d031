package domain

import "time"

// RawItem is one item emitted by a collector before normalisation.
// Collectors map their platform's payload onto these fields; anything
// that does not fit goes into Metadata.
type RawItem struct {
	// Platform is the arena that produced the item.
	Platform string
	// ExternalID is the platform's own identifier for the item.
	ExternalID string
	// ContentType describes the item ("post", "article", "video", "comment").
	ContentType string
	// Title is the item title, empty for platforms without titles.
	Title string
	// Body is the main text content.
	Body string
	// URL is the canonical link to the item.
	URL string
	// Author identifies the author on the platform (handle or id).
	Author string
	// PublishedAt is when the platform says the item was published.
	PublishedAt time.Time
	// Language is the declared or detected BCP-47 language tag, if any.
	Language string
	// Metadata carries collector-specific key-value pairs.
	Metadata map[string]any
}

// ActorPresence identifies a tracked actor's account on one platform.
// Used for actor-based collection.
type ActorPresence struct {
	// ActorID identifies the actor in the research layer.
	ActorID string
	// Platform is the arena's platform id.
	Platform string
	// Handle is the actor's account handle or external id on the platform.
	Handle string
}
