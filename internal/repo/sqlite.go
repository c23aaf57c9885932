package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/shaiso/Checkpoint/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS scenario_runs (
	run_id             TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	source             TEXT NOT NULL DEFAULT '',
	success            INTEGER NOT NULL,
	state              TEXT NOT NULL,
	aborted            INTEGER NOT NULL DEFAULT 0,
	passed             INTEGER NOT NULL DEFAULT 0,
	failed             INTEGER NOT NULL DEFAULT 0,
	skipped            INTEGER NOT NULL DEFAULT 0,
	error_kind         TEXT NOT NULL DEFAULT '',
	error_message      TEXT NOT NULL DEFAULT '',
	started_at_unix_ms INTEGER NOT NULL,
	elapsed_ms         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scenario_runs_started_at ON scenario_runs(started_at_unix_ms DESC);
CREATE TABLE IF NOT EXISTS step_results (
	run_id        TEXT NOT NULL REFERENCES scenario_runs(run_id) ON DELETE CASCADE,
	step_index    INTEGER NOT NULL,
	step_id       TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL,
	status        TEXT NOT NULL,
	success       INTEGER NOT NULL,
	elapsed_ms    INTEGER NOT NULL,
	error_kind    TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	mismatches    TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (run_id, step_index)
);`

// SQLiteStore — история запусков в локальном файле SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore открывает (или создаёт) файл БД и схему.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	path := filepath.Clean(dbPath)
	if path == "" || path == "." {
		return nil, fmt.Errorf("%w: invalid sqlite path %q", ErrInvalidDSN, dbPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Параллельные сценарии пишут через одно соединение.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}
	return store, nil
}

// SaveResult реализует Store.
func (s *SQLiteStore) SaveResult(ctx context.Context, result *domain.ScenarioResult) error {
	rec := newRunRecord(result)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO scenario_runs (
	run_id, name, source, success, state, aborted, passed, failed, skipped,
	error_kind, error_message, started_at_unix_ms, elapsed_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID.String(),
		rec.Name,
		rec.Source,
		rec.Success,
		string(rec.State),
		rec.Aborted,
		rec.Passed,
		rec.Failed,
		rec.Skipped,
		rec.ErrorKind,
		rec.ErrorMessage,
		timeToUnixMS(rec.StartedAt),
		rec.Elapsed.Milliseconds(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: run %s", ErrAlreadyExists, rec.RunID)
		}
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO step_results (
	run_id, step_index, step_id, name, status, success,
	elapsed_ms, error_kind, error_message, mismatches
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare steps insert: %w", err)
	}
	defer stmt.Close()

	for _, step := range rec.Steps {
		mismatches, err := marshalMismatches(step.Mismatches)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			rec.RunID.String(),
			step.Index,
			step.ID,
			step.Name,
			string(step.Status),
			step.Success,
			step.Elapsed.Milliseconds(),
			step.ErrorKind,
			step.ErrorMessage,
			string(mismatches),
		)
		if err != nil {
			return fmt.Errorf("insert step %d: %w", step.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Record реализует report.Sink.
func (s *SQLiteStore) Record(ctx context.Context, result *domain.ScenarioResult) error {
	return s.SaveResult(ctx, result)
}

// GetRun реализует Store.
func (s *SQLiteStore) GetRun(ctx context.Context, runID uuid.UUID) (*RunRecord, error) {
	rec, err := scanSQLiteRun(s.db.QueryRowContext(ctx, `
SELECT run_id, name, source, success, state, aborted, passed, failed, skipped,
       error_kind, error_message, started_at_unix_ms, elapsed_ms
FROM scenario_runs
WHERE run_id = ?`, runID.String()))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT step_index, step_id, name, status, success, elapsed_ms,
       error_kind, error_message, mismatches
FROM step_results
WHERE run_id = ?
ORDER BY step_index`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			step       StepRecord
			status     string
			elapsedMS  int64
			mismatches string
		)
		if err := rows.Scan(&step.Index, &step.ID, &step.Name, &status, &step.Success,
			&elapsedMS, &step.ErrorKind, &step.ErrorMessage, &mismatches); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		step.Status = domain.StepStatus(status)
		step.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if step.Mismatches, err = unmarshalMismatches([]byte(mismatches)); err != nil {
			return nil, err
		}
		rec.Steps = append(rec.Steps, step)
	}
	return rec, rows.Err()
}

// ListRecent реализует Store.
func (s *SQLiteStore) ListRecent(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, name, source, success, state, aborted, passed, failed, skipped,
       error_kind, error_message, started_at_unix_ms, elapsed_ms
FROM scenario_runs
WHERE (? = '' OR name = ?)
ORDER BY started_at_unix_ms DESC
LIMIT ?`, filter.Name, filter.Name, filter.limit())
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *rec)
	}
	return runs, rows.Err()
}

// Close реализует Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row rowScanner) (*RunRecord, error) {
	var (
		rec                  RunRecord
		runID, state         string
		startedMS, elapsedMS int64
	)
	err := row.Scan(
		&runID,
		&rec.Name,
		&rec.Source,
		&rec.Success,
		&state,
		&rec.Aborted,
		&rec.Passed,
		&rec.Failed,
		&rec.Skipped,
		&rec.ErrorKind,
		&rec.ErrorMessage,
		&startedMS,
		&elapsedMS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if rec.RunID, err = uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("parse run_id: %w", err)
	}
	rec.State = domain.ScenarioState(state)
	rec.StartedAt = unixMSToTime(startedMS)
	rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return &rec, nil
}

func timeToUnixMS(ts time.Time) int64 {
	if ts.IsZero() {
		return 0
	}
	return ts.UTC().UnixMilli()
}

func unixMSToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
