package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Checkpoint/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS scenario_runs (
	run_id        UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT '',
	success       BOOLEAN NOT NULL,
	state         TEXT NOT NULL,
	aborted       BOOLEAN NOT NULL DEFAULT FALSE,
	passed        INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0,
	skipped       INTEGER NOT NULL DEFAULT 0,
	error_kind    TEXT,
	error_message TEXT,
	started_at    TIMESTAMPTZ NOT NULL,
	elapsed_ms    BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scenario_runs_started_at ON scenario_runs(started_at DESC);
CREATE TABLE IF NOT EXISTS step_results (
	run_id        UUID NOT NULL REFERENCES scenario_runs(run_id) ON DELETE CASCADE,
	step_index    INTEGER NOT NULL,
	step_id       TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL,
	status        TEXT NOT NULL,
	success       BOOLEAN NOT NULL,
	elapsed_ms    BIGINT NOT NULL,
	error_kind    TEXT,
	error_message TEXT,
	mismatches    JSONB NOT NULL DEFAULT '[]',
	PRIMARY KEY (run_id, step_index)
);
`

// PostgresStore — история запусков в PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore создаёт PostgresStore поверх готового пула.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate создаёт таблицы, если их нет.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate history schema: %w", err)
	}
	return nil
}

// SaveResult реализует Store.
func (s *PostgresStore) SaveResult(ctx context.Context, result *domain.ScenarioResult) error {
	rec := newRunRecord(result)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO scenario_runs (run_id, name, source, success, state, aborted,
		                           passed, failed, skipped, error_kind, error_message,
		                           started_at, elapsed_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = tx.Exec(ctx, query,
		rec.RunID,
		rec.Name,
		rec.Source,
		rec.Success,
		string(rec.State),
		rec.Aborted,
		rec.Passed,
		rec.Failed,
		rec.Skipped,
		nullString(rec.ErrorKind),
		nullString(rec.ErrorMessage),
		rec.StartedAt,
		rec.Elapsed.Milliseconds(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: run %s", ErrAlreadyExists, rec.RunID)
		}
		return fmt.Errorf("insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, step := range rec.Steps {
		mismatches, err := marshalMismatches(step.Mismatches)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO step_results (run_id, step_index, step_id, name, status, success,
			                          elapsed_ms, error_kind, error_message, mismatches)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			rec.RunID,
			step.Index,
			step.ID,
			step.Name,
			string(step.Status),
			step.Success,
			step.Elapsed.Milliseconds(),
			nullString(step.ErrorKind),
			nullString(step.ErrorMessage),
			mismatches,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert steps: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Record реализует report.Sink.
func (s *PostgresStore) Record(ctx context.Context, result *domain.ScenarioResult) error {
	return s.SaveResult(ctx, result)
}

// GetRun реализует Store.
func (s *PostgresStore) GetRun(ctx context.Context, runID uuid.UUID) (*RunRecord, error) {
	query := `
		SELECT run_id, name, source, success, state, aborted, passed, failed, skipped,
		       error_kind, error_message, started_at, elapsed_ms
		FROM scenario_runs
		WHERE run_id = $1
	`
	rec, err := scanPostgresRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT step_index, step_id, name, status, success, elapsed_ms,
		       error_kind, error_message, mismatches
		FROM step_results
		WHERE run_id = $1
		ORDER BY step_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			step            StepRecord
			status          string
			elapsedMS       int64
			errKind, errMsg *string
			mismatches      []byte
		)
		if err := rows.Scan(&step.Index, &step.ID, &step.Name, &status, &step.Success,
			&elapsedMS, &errKind, &errMsg, &mismatches); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		step.Status = domain.StepStatus(status)
		step.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		step.ErrorKind = derefString(errKind)
		step.ErrorMessage = derefString(errMsg)
		if step.Mismatches, err = unmarshalMismatches(mismatches); err != nil {
			return nil, err
		}
		rec.Steps = append(rec.Steps, step)
	}
	return rec, rows.Err()
}

// ListRecent реализует Store.
func (s *PostgresStore) ListRecent(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	query := `
		SELECT run_id, name, source, success, state, aborted, passed, failed, skipped,
		       error_kind, error_message, started_at, elapsed_ms
		FROM scenario_runs
		WHERE ($1::text IS NULL OR name = $1)
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, nullString(filter.Name), filter.limit())
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanPostgresRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *rec)
	}
	return runs, rows.Err()
}

// Close реализует Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPostgresRun(row pgx.Row) (*RunRecord, error) {
	var (
		rec             RunRecord
		state           string
		errKind, errMsg *string
		elapsedMS       int64
	)
	err := row.Scan(
		&rec.RunID,
		&rec.Name,
		&rec.Source,
		&rec.Success,
		&state,
		&rec.Aborted,
		&rec.Passed,
		&rec.Failed,
		&rec.Skipped,
		&errKind,
		&errMsg,
		&rec.StartedAt,
		&elapsedMS,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	rec.State = domain.ScenarioState(state)
	rec.ErrorKind = derefString(errKind)
	rec.ErrorMessage = derefString(errMsg)
	rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return &rec, nil
}

// nullString конвертирует пустую строку в nil для NULL в БД.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
