package runner

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Checkpoint/internal/domain"
	"github.com/shaiso/Checkpoint/internal/engine"
)

// RunState — состояние выполнения одного сценария.
//
// RunState создаётся в начале Run и принадлежит одной горутине,
// поэтому блокировки не нужны.
//
// Содержит:
//   - Scope с переменными и outputs шагов
//   - Накопленные результаты шагов
//   - Состояние автомата RUNNING → ABORTED → COMPLETED
type RunState struct {
	// Scenario — выполняемый сценарий.
	Scenario *domain.Scenario

	// Scope — переменные выполнения.
	Scope *engine.Scope

	// RunID — идентификатор выполнения.
	RunID uuid.UUID

	// StartedAt — время начала.
	StartedAt time.Time

	// abortedAt — индекс шага, после которого выполнение прервано (-1 — не прервано).
	abortedAt int

	state domain.ScenarioState
	steps []domain.StepResult
}

// NewRunState создаёт RunState в состоянии RUNNING.
func NewRunState(sc *domain.Scenario) *RunState {
	return &RunState{
		Scenario:  sc,
		Scope:     engine.NewScope(sc.Vars),
		RunID:     uuid.New(),
		StartedAt: time.Now(),
		abortedAt: -1,
		state:     domain.ScenarioStateRunning,
		steps:     make([]domain.StepResult, 0, len(sc.Steps)),
	}
}

// State возвращает текущее состояние.
func (s *RunState) State() domain.ScenarioState {
	return s.state
}

// IsRunning проверяет, что следующие шаги нужно выполнять.
func (s *RunState) IsRunning() bool {
	return s.state == domain.ScenarioStateRunning
}

// Record добавляет результат шага.
func (s *RunState) Record(res domain.StepResult) {
	s.steps = append(s.steps, res)
}

// Abort переводит RUNNING → ABORTED после упавшего шага.
func (s *RunState) Abort(stepIndex int) {
	if s.state != domain.ScenarioStateRunning {
		return
	}
	s.state = domain.ScenarioStateAborted
	s.abortedAt = stepIndex
}

// AbortedAt возвращает индекс шага, прервавшего выполнение.
func (s *RunState) AbortedAt() (int, bool) {
	return s.abortedAt, s.abortedAt >= 0
}

// Complete завершает выполнение и строит ScenarioResult.
func (s *RunState) Complete() *domain.ScenarioResult {
	aborted := s.state == domain.ScenarioStateAborted
	s.state = domain.ScenarioStateCompleted

	success := len(s.steps) > 0
	for i := range s.steps {
		if !s.steps[i].Success {
			success = false
			break
		}
	}

	return &domain.ScenarioResult{
		RunID:     s.RunID,
		Name:      s.Scenario.Name,
		Source:    s.Scenario.Source,
		Steps:     s.steps,
		Success:   success,
		State:     s.state,
		Aborted:   aborted,
		StartedAt: s.StartedAt,
		Elapsed:   time.Since(s.StartedAt),
	}
}
