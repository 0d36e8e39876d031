package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
)

// ErrNoTermMatch indicates a term-collected item satisfied none of the
// applicable terms. Such items are skipped: MatchedTerms is the record's
// inclusion justification and must never be empty for term-based
// collection, so an unmatchable item cannot be stored.
var ErrNoTermMatch = errors.New("item matches no applicable term")

// ArenaContext carries the per-task context the normaliser needs to
// attribute a raw item: which run and design collected it, from which
// arena, by which method, against which applicable term subset.
type ArenaContext struct {
	RunID    string
	DesignID string
	Platform string
	Category string
	Method   domain.CollectionMethod
	// Terms is the arena-applicable subset computed at dispatch time.
	Terms []domain.SearchTerm
}

// Normalizer maps raw collector output into canonical content records,
// computes content fingerprints, and marks within-run duplicates without
// deleting anything.
//
// Deduplication state is scoped per run, so concurrent runs never
// contend on each other's index.
type Normalizer struct {
	store driven.ContentStore
}

// NewNormalizer creates a normaliser writing to the given content store.
func NewNormalizer(store driven.ContentStore) *Normalizer {
	return &Normalizer{store: store}
}

// Normalize converts one raw item into a stored content record. The
// second return value reports whether a new record was written; it is
// false when the run had already stored the item and Normalize returned
// the existing record instead.
//
// Normalisation is idempotent: the same raw item yields the same
// fingerprint, and re-normalising an item the run already stored is a
// no-op. Within a run the first record with a fingerprint is canonical;
// later items sharing it are stored with DuplicateOf pointing at the
// canonical record. That decision belongs to the content store, which
// settles it atomically with the write.
func (n *Normalizer) Normalize(ctx context.Context, raw domain.RawItem, actx ArenaContext) (*domain.ContentRecord, bool, error) {
	// Re-processing the same platform item is a no-op.
	if raw.ExternalID != "" {
		existing, err := n.store.FindByExternalID(ctx, actx.RunID, actx.Platform, raw.ExternalID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, false, fmt.Errorf("look up external id: %w", err)
		}
	}

	matched := MatchTerms(raw, actx.Terms)
	if actx.Method == domain.MethodTerm && len(matched) == 0 {
		return nil, false, fmt.Errorf("%w: %s item %s", ErrNoTermMatch, actx.Platform, raw.ExternalID)
	}

	record := &domain.ContentRecord{
		ID:           uuid.NewString(),
		RunID:        actx.RunID,
		DesignID:     actx.DesignID,
		Platform:     actx.Platform,
		ExternalID:   raw.ExternalID,
		Category:     actx.Category,
		ContentType:  raw.ContentType,
		Title:        strings.TrimSpace(raw.Title),
		Body:         strings.TrimSpace(raw.Body),
		URL:          strings.TrimSpace(raw.URL),
		Author:       raw.Author,
		PublishedAt:  raw.PublishedAt,
		CollectedAt:  time.Now().UTC(),
		Language:     raw.Language,
		MatchedTerms: matched,
		Fingerprint:  Fingerprint(raw.Title, raw.Body, raw.URL),
	}

	// The store marks the record a duplicate of the first-seen canonical
	// record, never a deletion. SaveRecord populates DuplicateOf.
	if err := n.store.SaveRecord(ctx, record); err != nil {
		return nil, false, fmt.Errorf("save record: %w", err)
	}
	return record, true, nil
}

// MatchTerms returns the texts of the terms the item satisfies, in term
// order. Matching is case-insensitive over title and body; hashtag terms
// match with or without their leading '#'.
func MatchTerms(raw domain.RawItem, terms []domain.SearchTerm) []string {
	haystack := strings.ToLower(raw.Title + "\n" + raw.Body)

	var matched []string
	for _, term := range terms {
		needle := strings.ToLower(strings.TrimSpace(term.Text))
		if needle == "" {
			continue
		}
		if term.Type == domain.TermHashtag {
			tag := strings.TrimPrefix(needle, "#")
			if strings.Contains(haystack, "#"+tag) || strings.Contains(haystack, tag) {
				matched = append(matched, term.Text)
			}
			continue
		}
		if strings.Contains(haystack, needle) {
			matched = append(matched, term.Text)
		}
	}
	return matched
}

// Fingerprint computes the stable content hash used for within-run
// deduplication: xxh3-128 over whitespace-collapsed, lowercased text
// plus the URL. Independent of collection order.
func Fingerprint(title, body, url string) string {
	canon := canonicalise(title) + "\n" + canonicalise(body) + "\n" + strings.TrimSpace(url)
	h := xxh3.Hash128([]byte(canon))
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}

// canonicalise lowercases and collapses runs of whitespace so that
// cosmetic formatting differences do not defeat deduplication.
func canonicalise(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
