package memory

import (
	"context"
	"sync"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
)

// Ensure ContentStore implements the interface.
var _ driven.ContentStore = (*ContentStore)(nil)

// ContentStore is an in-memory implementation of driven.ContentStore.
// Append-mostly and safe for concurrent writers.
type ContentStore struct {
	mu      sync.RWMutex
	records []domain.ContentRecord
	// canonical indexes first-seen non-duplicate records per run:
	// runID -> fingerprint -> record index.
	canonical map[string]map[string]int
	// external indexes records per run by platform item:
	// runID -> platform + "\x00" + externalID -> record index.
	external map[string]map[string]int
}

// NewContentStore creates a new in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{
		canonical: make(map[string]map[string]int),
		external:  make(map[string]map[string]int),
	}
}

// SaveRecord appends a record, settling DuplicateOf under the store
// lock so concurrent same-fingerprint writers agree on one canonical
// record.
func (s *ContentStore) SaveRecord(_ context.Context, record *domain.ContentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.DuplicateOf = ""
	if record.Fingerprint != "" {
		byFP, ok := s.canonical[record.RunID]
		if !ok {
			byFP = make(map[string]int)
			s.canonical[record.RunID] = byFP
		}
		// First write wins for the canonical record.
		if idx, seen := byFP[record.Fingerprint]; seen {
			record.DuplicateOf = s.records[idx].ID
		} else {
			byFP[record.Fingerprint] = len(s.records)
		}
	}

	idx := len(s.records)
	s.records = append(s.records, *record)
	if record.ExternalID != "" {
		byExt, ok := s.external[record.RunID]
		if !ok {
			byExt = make(map[string]int)
			s.external[record.RunID] = byExt
		}
		key := record.Platform + "\x00" + record.ExternalID
		if _, seen := byExt[key]; !seen {
			byExt[key] = idx
		}
	}
	return nil
}

// FindByFingerprint returns the canonical record for a fingerprint
// within a run.
func (s *ContentStore) FindByFingerprint(_ context.Context, runID, fingerprint string) (*domain.ContentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byFP, ok := s.canonical[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	idx, ok := byFP[fingerprint]
	if !ok {
		return nil, domain.ErrNotFound
	}
	record := s.records[idx]
	return &record, nil
}

// FindByExternalID returns the record a run already stored for a
// platform item.
func (s *ContentStore) FindByExternalID(_ context.Context, runID, platform, externalID string) (*domain.ContentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byExt, ok := s.external[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	idx, ok := byExt[platform+"\x00"+externalID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	record := s.records[idx]
	return &record, nil
}

// ListByRun returns all records collected by a run, in insertion order.
func (s *ContentStore) ListByRun(_ context.Context, runID string) ([]domain.ContentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.ContentRecord
	for i := range s.records {
		if s.records[i].RunID == runID {
			result = append(result, s.records[i])
		}
	}
	return result, nil
}

// CountByRun returns the number of records collected by a run.
func (s *ContentStore) CountByRun(_ context.Context, runID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for i := range s.records {
		if s.records[i].RunID == runID {
			count++
		}
	}
	return count, nil
}
