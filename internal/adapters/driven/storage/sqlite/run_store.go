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

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

const runColumns = `id, design_id, mode, date_from, date_to, tier_overrides,
	status, record_count, created_at, started_at, completed_at`

// CreateRun stores a new run.
func (s *runStore) CreateRun(ctx context.Context, run *domain.CollectionRun) error {
	overridesJSON, err := json.Marshal(run.TierOverrides)
	if err != nil {
		return fmt.Errorf("marshalling tier overrides: %w", err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.DesignID, run.Mode,
		nullTime(run.DateRange.From), nullTime(run.DateRange.To),
		string(overridesJSON), run.Status, run.RecordCount,
		run.CreatedAt, nullTime(run.StartedAt), nullTime(run.CompletedAt))
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *runStore) GetRun(ctx context.Context, id string) (*domain.CollectionRun, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM runs WHERE id = ?
	`, id)
	return scanRun(row)
}

// ListRuns returns all runs, newest first.
func (s *runStore) ListRuns(ctx context.Context) ([]domain.CollectionRun, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.CollectionRun //nolint:prealloc // size unknown from query
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// ActivateRun atomically stores the run's tasks and moves the run from
// pending to running.
func (s *runStore) ActivateRun(ctx context.Context, runID string, tasks []domain.CollectionTask) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var status domain.RunStatus
	row := tx.QueryRowContext(ctx, "SELECT status FROM runs WHERE id = ?", runID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("reading run status: %w", err)
	}
	if status.Terminal() {
		return domain.ErrRunTerminal
	}

	for i := range tasks {
		if err := upsertTask(ctx, tx, &tasks[i]); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE runs SET status = ?, started_at = ? WHERE id = ?
	`, domain.RunRunning, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("activating run: %w", err)
	}

	return tx.Commit()
}

// SaveTask stores or updates a single task.
func (s *runStore) SaveTask(ctx context.Context, task *domain.CollectionTask) error {
	return upsertTask(ctx, s.store.db, task)
}

// GetTask retrieves a task by ID.
func (s *runStore) GetTask(ctx context.Context, id string) (*domain.CollectionTask, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = ?
	`, id)
	return scanTask(row)
}

// ListTasks returns all tasks for a run in creation order.
func (s *runStore) ListTasks(ctx context.Context, runID string) ([]domain.CollectionTask, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.CollectionTask //nolint:prealloc // size unknown from query
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

// FinishRun commits a terminal status for the run. Exactly one caller
// can win: the guarded UPDATE leaves terminal rows untouched, so a
// second terminal transition fails with ErrRunTerminal.
func (s *runStore) FinishRun(ctx context.Context, runID string, status domain.RunStatus, recordCount int) error {
	if !status.Terminal() {
		return domain.ErrInvalidInput
	}

	result, err := s.store.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, record_count = ?, completed_at = ?
		WHERE id = ? AND status IN (?, ?)
	`, status, recordCount, time.Now().UTC(), runID, domain.RunPending, domain.RunRunning)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Nothing updated: either the run is unknown or already terminal.
	var existing domain.RunStatus
	row := s.store.db.QueryRowContext(ctx, "SELECT status FROM runs WHERE id = ?", runID)
	if err := row.Scan(&existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("reading run status: %w", err)
	}
	return domain.ErrRunTerminal
}

const taskColumns = `id, run_id, platform, tier, status, attempts,
	error_class, error_detail, records_produced, started_at, finished_at`

// execer covers both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertTask(ctx context.Context, db execer, task *domain.CollectionTask) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			attempts = excluded.attempts,
			error_class = excluded.error_class,
			error_detail = excluded.error_detail,
			records_produced = excluded.records_produced,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`, task.ID, task.RunID, task.Platform, int(task.Tier), task.Status,
		task.Attempts, task.ErrorClass, task.ErrorDetail, task.RecordsProduced,
		nullTime(task.StartedAt), nullTime(task.FinishedAt))
	if err != nil {
		return fmt.Errorf("saving task: %w", err)
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.CollectionRun, error) {
	var run domain.CollectionRun
	var overridesJSON string
	var dateFrom, dateTo, createdAt, startedAt, completedAt sql.NullTime
	if err := row.Scan(&run.ID, &run.DesignID, &run.Mode, &dateFrom, &dateTo,
		&overridesJSON, &run.Status, &run.RecordCount,
		&createdAt, &startedAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	if err := json.Unmarshal([]byte(overridesJSON), &run.TierOverrides); err != nil {
		return nil, fmt.Errorf("unmarshaling tier overrides: %w", err)
	}
	run.DateRange = domain.DateRange{From: timeOf(dateFrom), To: timeOf(dateTo)}
	run.CreatedAt = timeOf(createdAt)
	run.StartedAt = timeOf(startedAt)
	run.CompletedAt = timeOf(completedAt)
	return &run, nil
}

func scanTask(row rowScanner) (*domain.CollectionTask, error) {
	var task domain.CollectionTask
	var tier int
	var startedAt, finishedAt sql.NullTime
	if err := row.Scan(&task.ID, &task.RunID, &task.Platform, &tier,
		&task.Status, &task.Attempts, &task.ErrorClass, &task.ErrorDetail,
		&task.RecordsProduced, &startedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}
	task.Tier = domain.Tier(tier)
	task.StartedAt = timeOf(startedAt)
	task.FinishedAt = timeOf(finishedAt)
	return &task, nil
}
