package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Checkpoint/internal/domain"
)

// Sink — получатель результатов сценариев (история запусков, очередь событий).
type Sink interface {
	// Record сохраняет или публикует результат сценария.
	Record(ctx context.Context, result *domain.ScenarioResult) error
}

// SinkFunc — адаптер функции к Sink.
type SinkFunc func(ctx context.Context, result *domain.ScenarioResult) error

// Record реализует Sink.
func (f SinkFunc) Record(ctx context.Context, result *domain.ScenarioResult) error {
	return f(ctx, result)
}

// MultiSink передаёт результат во все sink'и.
// Ошибка одного sink'а не мешает остальным.
type MultiSink []Sink

// Record реализует Sink.
func (m MultiSink) Record(ctx context.Context, result *domain.ScenarioResult) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordAll передаёт в sink все результаты по порядку.
func RecordAll(ctx context.Context, sink Sink, results []*domain.ScenarioResult) error {
	var errs []error
	for _, r := range results {
		if r == nil {
			continue
		}
		if err := sink.Record(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("record %q: %w", r.Name, err))
		}
	}
	return errors.Join(errs...)
}
