package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StepError — структурированная ошибка шага.
type StepError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Error реализует интерфейс error.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewStepError создаёт StepError.
func NewStepError(kind ErrorKind, format string, args ...any) *StepError {
	return &StepError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Mismatch — одно несовпадение ожидания с фактическим ответом.
type Mismatch struct {
	// Kind — вид проверки.
	Kind AssertionKind `json:"kind"`

	// Target — что проверялось: JSON path, имя заголовка, подстрока, matcher.
	Target string `json:"target,omitempty"`

	// Expected — ожидаемое значение.
	Expected any `json:"expected,omitempty"`

	// Actual — фактическое значение, либо "missing" / "absent" / "not a collection".
	Actual any `json:"actual,omitempty"`

	// Message — человекочитаемое описание.
	Message string `json:"message"`
}

// String возвращает Message.
func (m Mismatch) String() string {
	return m.Message
}

// RequestInfo — запрос в том виде, в каком он был отправлен.
type RequestInfo struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// ResponseInfo — захваченный ответ.
type ResponseInfo struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// StepResult — результат выполнения одного шага.
type StepResult struct {
	Index      int           `json:"index"`
	ID         string        `json:"id,omitempty"`
	Name       string        `json:"name"`
	Status     StepStatus    `json:"status"`
	Success    bool          `json:"success"`
	Elapsed    time.Duration `json:"elapsed"`
	Error      *StepError    `json:"error,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Mismatches []Mismatch    `json:"mismatches,omitempty"`
	Request    *RequestInfo  `json:"request,omitempty"`
	Response   *ResponseInfo `json:"response,omitempty"`
}

// ScenarioResult — результат выполнения сценария.
//
// Success — конъюнкция успехов шагов. Шаги, пропущенные из-за
// прерывания, не считаются успешными; пропущенные по condition — успешны.
type ScenarioResult struct {
	RunID     uuid.UUID     `json:"run_id"`
	Name      string        `json:"name"`
	Source    string        `json:"source,omitempty"`
	Steps     []StepResult  `json:"steps"`
	Success   bool          `json:"success"`
	State     ScenarioState `json:"state"`
	Aborted   bool          `json:"aborted"`
	Error     *StepError    `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Counts возвращает количество шагов по статусам.
func (r *ScenarioResult) Counts() (passed, failed, skipped int) {
	for i := range r.Steps {
		switch r.Steps[i].Status {
		case StepStatusPassed:
			passed++
		case StepStatusFailed:
			failed++
		case StepStatusSkipped:
			skipped++
		}
	}
	return passed, failed, skipped
}

// NewLoadFailure создаёт результат для файла, который не удалось загрузить.
func NewLoadFailure(source string, err error) *ScenarioResult {
	return &ScenarioResult{
		RunID:     uuid.New(),
		Name:      source,
		Source:    source,
		State:     ScenarioStateCompleted,
		Error:     &StepError{Kind: ErrorKindParse, Message: err.Error()},
		StartedAt: time.Now(),
	}
}

// AllSucceeded проверяет, что все сценарии успешны.
func AllSucceeded(results []*ScenarioResult) bool {
	for _, r := range results {
		if r == nil || !r.Success {
			return false
		}
	}
	return true
}
