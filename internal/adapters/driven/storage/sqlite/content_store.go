package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
)

// contentStore implements driven.ContentStore.
type contentStore struct {
	store *Store
}

var _ driven.ContentStore = (*contentStore)(nil)

const contentColumns = `id, run_id, design_id, platform, external_id, category,
	content_type, title, body, url, author, published_at, collected_at,
	language, matched_terms, fingerprint, duplicate_of`

// SaveRecord appends a record. Duplicates are stored alongside their
// canonical record, marked via duplicate_of, never dropped. The
// duplicate_of assignment happens inside the INSERT itself, so two
// writers racing on one fingerprint still produce a single canonical
// record.
func (s *contentStore) SaveRecord(ctx context.Context, record *domain.ContentRecord) error {
	termsJSON, err := json.Marshal(record.MatchedTerms)
	if err != nil {
		return fmt.Errorf("marshalling matched terms: %w", err)
	}
	if record.CollectedAt.IsZero() {
		record.CollectedAt = time.Now().UTC()
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO content_records (`+contentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			COALESCE((SELECT id FROM content_records
				WHERE run_id = ? AND fingerprint = ?
					AND fingerprint != '' AND duplicate_of = ''
				ORDER BY rowid LIMIT 1), ''))
	`, record.ID, record.RunID, record.DesignID, record.Platform,
		record.ExternalID, record.Category, record.ContentType,
		record.Title, record.Body, record.URL, record.Author,
		nullTime(record.PublishedAt), record.CollectedAt, record.Language,
		string(termsJSON), record.Fingerprint,
		record.RunID, record.Fingerprint)
	if err != nil {
		return fmt.Errorf("saving content record: %w", err)
	}

	row := s.store.db.QueryRowContext(ctx,
		"SELECT duplicate_of FROM content_records WHERE id = ?", record.ID)
	if err := row.Scan(&record.DuplicateOf); err != nil {
		return fmt.Errorf("reading back duplicate status: %w", err)
	}
	return nil
}

// FindByFingerprint returns the canonical record for a fingerprint
// within a run. The first stored non-duplicate wins.
func (s *contentStore) FindByFingerprint(ctx context.Context, runID, fingerprint string) (*domain.ContentRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+contentColumns+` FROM content_records
		WHERE run_id = ? AND fingerprint = ? AND duplicate_of = ''
		ORDER BY rowid LIMIT 1
	`, runID, fingerprint)
	return scanContentRecord(row)
}

// FindByExternalID returns the record a run already stored for a
// platform item.
func (s *contentStore) FindByExternalID(ctx context.Context, runID, platform, externalID string) (*domain.ContentRecord, error) {
	if externalID == "" {
		return nil, domain.ErrNotFound
	}
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+contentColumns+` FROM content_records
		WHERE run_id = ? AND platform = ? AND external_id = ?
		ORDER BY rowid LIMIT 1
	`, runID, platform, externalID)
	return scanContentRecord(row)
}

// ListByRun returns all records collected by a run, in insertion order.
func (s *contentStore) ListByRun(ctx context.Context, runID string) ([]domain.ContentRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+contentColumns+` FROM content_records
		WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying content records: %w", err)
	}
	defer rows.Close()

	var records []domain.ContentRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		record, err := scanContentRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating content records: %w", err)
	}
	return records, nil
}

// CountByRun returns the number of records collected by a run.
func (s *contentStore) CountByRun(ctx context.Context, runID string) (int, error) {
	var count int
	row := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM content_records WHERE run_id = ?", runID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting content records: %w", err)
	}
	return count, nil
}

func scanContentRecord(row rowScanner) (*domain.ContentRecord, error) {
	var record domain.ContentRecord
	var termsJSON string
	var publishedAt, collectedAt sql.NullTime
	if err := row.Scan(&record.ID, &record.RunID, &record.DesignID,
		&record.Platform, &record.ExternalID, &record.Category,
		&record.ContentType, &record.Title, &record.Body, &record.URL,
		&record.Author, &publishedAt, &collectedAt, &record.Language,
		&termsJSON, &record.Fingerprint, &record.DuplicateOf); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning content record: %w", err)
	}

	if err := json.Unmarshal([]byte(termsJSON), &record.MatchedTerms); err != nil {
		return nil, fmt.Errorf("unmarshaling matched terms: %w", err)
	}
	record.PublishedAt = timeOf(publishedAt)
	record.CollectedAt = timeOf(collectedAt)
	return &record, nil
}
