package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Checkpoint/internal/domain"
)

// Store — история запусков сценариев.
//
// Реализации: PostgresStore (pgx) и SQLiteStore (modernc.org/sqlite).
// Store удовлетворяет report.Sink через Record.
type Store interface {
	// SaveResult сохраняет результат сценария и его шаги в одной транзакции.
	SaveResult(ctx context.Context, result *domain.ScenarioResult) error

	// Record — синоним SaveResult для report.Sink.
	Record(ctx context.Context, result *domain.ScenarioResult) error

	// GetRun возвращает запуск по run_id вместе с шагами.
	GetRun(ctx context.Context, runID uuid.UUID) (*RunRecord, error)

	// ListRecent возвращает последние запуски (новые первыми), без шагов.
	ListRecent(ctx context.Context, filter RunFilter) ([]RunRecord, error)

	// Close освобождает соединения.
	Close() error
}

// RunRecord — сохранённый запуск сценария.
type RunRecord struct {
	RunID        uuid.UUID
	Name         string
	Source       string
	Success      bool
	State        domain.ScenarioState
	Aborted      bool
	Passed       int
	Failed       int
	Skipped      int
	ErrorKind    string
	ErrorMessage string
	StartedAt    time.Time
	Elapsed      time.Duration
	Steps        []StepRecord
}

// StepRecord — сохранённый результат шага.
type StepRecord struct {
	Index        int
	ID           string
	Name         string
	Status       domain.StepStatus
	Success      bool
	Elapsed      time.Duration
	ErrorKind    string
	ErrorMessage string
	Mismatches   []domain.Mismatch
}

// RunFilter — параметры выборки истории.
type RunFilter struct {
	Name  string // точное имя сценария, "" — все
	Limit int    // <= 0 — DefaultLimit
}

// DefaultLimit — размер выборки ListRecent по умолчанию.
const DefaultLimit = 20

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultLimit
	}
	return f.Limit
}

// Open открывает хранилище по DSN.
//
// postgres:// и postgresql:// — PostgreSQL. sqlite://<path>,
// file:<path> или просто путь к файлу — SQLite.
func Open(ctx context.Context, dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return nil, fmt.Errorf("%w: empty", ErrInvalidDSN)

	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		pool, err := NewPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		store := NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil

	case strings.Contains(dsn, "://") && !strings.HasPrefix(dsn, "sqlite://"):
		return nil, fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidDSN, dsn)

	default:
		path := strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "file:")
		return NewSQLiteStore(ctx, path)
	}
}

// newRunRecord строит запись из результата сценария.
func newRunRecord(r *domain.ScenarioResult) RunRecord {
	passed, failed, skipped := r.Counts()
	rec := RunRecord{
		RunID:     r.RunID,
		Name:      r.Name,
		Source:    r.Source,
		Success:   r.Success,
		State:     r.State,
		Aborted:   r.Aborted,
		Passed:    passed,
		Failed:    failed,
		Skipped:   skipped,
		StartedAt: r.StartedAt.UTC(),
		Elapsed:   r.Elapsed,
	}
	if r.Error != nil {
		rec.ErrorKind = string(r.Error.Kind)
		rec.ErrorMessage = r.Error.Message
	}
	for _, s := range r.Steps {
		step := StepRecord{
			Index:      s.Index,
			ID:         s.ID,
			Name:       s.Name,
			Status:     s.Status,
			Success:    s.Success,
			Elapsed:    s.Elapsed,
			Mismatches: s.Mismatches,
		}
		if s.Error != nil {
			step.ErrorKind = string(s.Error.Kind)
			step.ErrorMessage = s.Error.Message
		}
		rec.Steps = append(rec.Steps, step)
	}
	return rec
}

func marshalMismatches(m []domain.Mismatch) ([]byte, error) {
	if len(m) == 0 {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal mismatches: %w", err)
	}
	return data, nil
}

func unmarshalMismatches(data []byte) ([]domain.Mismatch, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m []domain.Mismatch
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal mismatches: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
