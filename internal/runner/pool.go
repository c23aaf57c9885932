package runner

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Checkpoint/internal/domain"
)

// DefaultWorkers — количество одновременно выполняемых сценариев по умолчанию.
const DefaultWorkers = 4

// Pool — параллельное выполнение независимых сценариев.
//
// Шаги внутри сценария всегда выполняются последовательно;
// параллельны только сценарии, у каждого свой Scope.
type Pool struct {
	exec    *Executor
	workers int

	// OnResult вызывается после завершения каждого сценария.
	// Может вызываться из нескольких горутин одновременно.
	OnResult func(*domain.ScenarioResult)
}

// NewPool создаёт пул. workers <= 0 — DefaultWorkers.
func NewPool(exec *Executor, workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{exec: exec, workers: workers}
}

// Workers возвращает размер пула.
func (p *Pool) Workers() int {
	return p.workers
}

// Run выполняет сценарии и возвращает результаты в порядке входа.
func (p *Pool) Run(ctx context.Context, scenarios []*domain.Scenario) []*domain.ScenarioResult {
	results := make([]*domain.ScenarioResult, len(scenarios))

	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, sc := range scenarios {
		g.Go(func() error {
			res := p.exec.Run(ctx, sc)
			results[i] = res
			if p.OnResult != nil {
				p.OnResult(res)
			}
			return nil
		})
	}

	// Executor не возвращает ошибок: сбой сценария — часть результата.
	_ = g.Wait()

	return results
}
