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

// designStore implements driven.QueryDesignStore.
type designStore struct {
	store *Store
}

var _ driven.QueryDesignStore = (*designStore)(nil)

const designColumns = `id, name, default_tier, method, terms, actors, arenas,
	live_interval_seconds, created_at`

// Save stores or updates a query design.
func (s *designStore) Save(ctx context.Context, design domain.QueryDesign) error {
	termsJSON, err := json.Marshal(design.Terms)
	if err != nil {
		return fmt.Errorf("marshalling terms: %w", err)
	}
	actorsJSON, err := json.Marshal(design.Actors)
	if err != nil {
		return fmt.Errorf("marshalling actors: %w", err)
	}
	arenasJSON, err := json.Marshal(design.Arenas)
	if err != nil {
		return fmt.Errorf("marshalling arenas: %w", err)
	}
	if design.CreatedAt.IsZero() {
		design.CreatedAt = time.Now().UTC()
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO query_designs (`+designColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			default_tier = excluded.default_tier,
			method = excluded.method,
			terms = excluded.terms,
			actors = excluded.actors,
			arenas = excluded.arenas,
			live_interval_seconds = excluded.live_interval_seconds
	`, design.ID, design.Name, int(design.DefaultTier), design.Method,
		string(termsJSON), string(actorsJSON), string(arenasJSON),
		int64(design.LiveInterval/time.Second), design.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving query design: %w", err)
	}
	return nil
}

// Get retrieves a query design by ID.
func (s *designStore) Get(ctx context.Context, id string) (*domain.QueryDesign, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+designColumns+` FROM query_designs WHERE id = ?
	`, id)
	return scanDesign(row)
}

// List returns all query designs.
func (s *designStore) List(ctx context.Context) ([]domain.QueryDesign, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+designColumns+` FROM query_designs ORDER BY created_at, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("querying query designs: %w", err)
	}
	defer rows.Close()

	var designs []domain.QueryDesign //nolint:prealloc // size unknown from query
	for rows.Next() {
		design, err := scanDesign(rows)
		if err != nil {
			return nil, err
		}
		designs = append(designs, *design)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query designs: %w", err)
	}
	return designs, nil
}

func scanDesign(row rowScanner) (*domain.QueryDesign, error) {
	var design domain.QueryDesign
	var defaultTier int
	var termsJSON, actorsJSON, arenasJSON string
	var intervalSeconds int64
	var createdAt sql.NullTime
	if err := row.Scan(&design.ID, &design.Name, &defaultTier, &design.Method,
		&termsJSON, &actorsJSON, &arenasJSON, &intervalSeconds, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning query design: %w", err)
	}

	if err := json.Unmarshal([]byte(termsJSON), &design.Terms); err != nil {
		return nil, fmt.Errorf("unmarshaling terms: %w", err)
	}
	if err := json.Unmarshal([]byte(actorsJSON), &design.Actors); err != nil {
		return nil, fmt.Errorf("unmarshaling actors: %w", err)
	}
	if err := json.Unmarshal([]byte(arenasJSON), &design.Arenas); err != nil {
		return nil, fmt.Errorf("unmarshaling arenas: %w", err)
	}
	design.DefaultTier = domain.Tier(defaultTier)
	design.LiveInterval = time.Duration(intervalSeconds) * time.Second
	design.CreatedAt = timeOf(createdAt)
	return &design, nil
}

// credentialPool implements driven.CredentialPool.
type credentialPool struct {
	store *Store
}

var _ driven.CredentialPool = (*credentialPool)(nil)

const credentialColumns = `id, platform, tier, secret, status, label, created_at`

// Active returns the usable credentials for an exact (platform, tier)
// pair. There is no fallback to other tiers.
func (p *credentialPool) Active(ctx context.Context, platform string, tier domain.Tier) ([]domain.Credential, error) {
	rows, err := p.store.db.QueryContext(ctx, `
		SELECT `+credentialColumns+` FROM credentials
		WHERE platform = ? AND tier = ? AND status = ? AND secret != ''
		ORDER BY created_at, rowid
	`, platform, int(tier), domain.CredentialActive)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()
	return collectCredentials(rows)
}

// List returns all credentials in the pool.
func (p *credentialPool) List(ctx context.Context) ([]domain.Credential, error) {
	rows, err := p.store.db.QueryContext(ctx, `
		SELECT `+credentialColumns+` FROM credentials ORDER BY created_at, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()
	return collectCredentials(rows)
}

// Add stores a credential.
func (p *credentialPool) Add(ctx context.Context, cred domain.Credential) error {
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}
	_, err := p.store.db.ExecContext(ctx, `
		INSERT INTO credentials (`+credentialColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			platform = excluded.platform,
			tier = excluded.tier,
			secret = excluded.secret,
			status = excluded.status,
			label = excluded.label
	`, cred.ID, cred.Platform, int(cred.Tier), cred.Secret, cred.Status,
		cred.Label, cred.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	return nil
}

func collectCredentials(rows *sql.Rows) ([]domain.Credential, error) {
	var creds []domain.Credential //nolint:prealloc // size unknown from query
	for rows.Next() {
		var cred domain.Credential
		var tier int
		var createdAt sql.NullTime
		if err := rows.Scan(&cred.ID, &cred.Platform, &tier, &cred.Secret,
			&cred.Status, &cred.Label, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		cred.Tier = domain.Tier(tier)
		cred.CreatedAt = timeOf(createdAt)
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credentials: %w", err)
	}
	return creds, nil
}
