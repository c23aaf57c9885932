package engine

import (
	"maps"
	"os"
)

// Scope — область видимости переменных одного выполнения сценария.
//
// Используется при разрешении placeholder'ов:
//   - {{ name }} / {{ vars.name }}     — плоские переменные (vars + save)
//   - {{ steps.<id>.outputs.path }}    — захваченный ответ шага с id
//   - {{ env.NAME }}                   — переменные окружения процесса
//
// Scope принадлежит одному выполнению и не разделяется между горутинами.
type Scope struct {
	// Vars — плоские переменные.
	Vars map[string]any `json:"vars"`

	// Steps — outputs шагов с id, записываются только после успеха шага.
	Steps map[string]*StepOutputs `json:"steps"`

	// LookupEnv — источник переменных окружения (default: os.LookupEnv).
	LookupEnv func(string) (string, bool) `json:"-"`
}

// StepOutputs — захваченный ответ шага для использования в шаблонах.
type StepOutputs struct {
	// Outputs — распарсенное тело ответа целиком (или сгруппированные SSE события).
	Outputs any `json:"outputs"`
}

// NewScope создаёт Scope с копией начальных переменных.
func NewScope(vars map[string]any) *Scope {
	s := &Scope{
		Vars:      make(map[string]any, len(vars)),
		Steps:     make(map[string]*StepOutputs),
		LookupEnv: os.LookupEnv,
	}
	maps.Copy(s.Vars, vars)
	return s
}

// Set записывает плоскую переменную.
func (s *Scope) Set(name string, value any) {
	s.Vars[name] = value
}

// Get возвращает плоскую переменную.
func (s *Scope) Get(name string) (any, bool) {
	v, ok := s.Vars[name]
	return v, ok
}

// AddStepOutputs сохраняет outputs шага.
func (s *Scope) AddStepOutputs(stepID string, outputs any) {
	s.Steps[stepID] = &StepOutputs{Outputs: outputs}
}

func (s *Scope) lookupEnv(name string) (string, bool) {
	if s.LookupEnv == nil {
		return os.LookupEnv(name)
	}
	return s.LookupEnv(name)
}
