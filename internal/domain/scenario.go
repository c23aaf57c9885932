package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTimeout — таймаут запроса, если в config не задан свой.
const DefaultTimeout = 30 * time.Second

// Scenario — каноническое представление сценария.
//
// Оба формата файлов (inline YAML и Markdown с fenced-блоками)
// приводятся loader'ом к этой структуре. После загрузки сценарий
// не изменяется: всё изменяемое состояние живёт в engine.Scope.
type Scenario struct {
	// Name — имя сценария, обязательное.
	Name string `yaml:"name" json:"name"`

	// Description — описание для людей.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Tags — теги для фильтрации (--tag).
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// Config — настройки, общие для всех шагов.
	Config Config `yaml:"config,omitempty" json:"config"`

	// Vars — начальные переменные сценария.
	Vars map[string]any `yaml:"vars,omitempty" json:"vars,omitempty"`

	// Steps — шаги в порядке выполнения.
	Steps []Step `yaml:"steps" json:"steps"`

	// Source — путь к файлу, из которого загружен сценарий.
	Source string `yaml:"-" json:"source,omitempty"`
}

// HasTag проверяет наличие тега (без учёта регистра).
func (s *Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Config — настройки выполнения сценария.
type Config struct {
	// BaseURL — префикс для относительных URL запросов.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// Headers — заголовки для каждого запроса. Заголовки шага имеют приоритет.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// Timeout — таймаут одного запроса (default: 30s).
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// ContinueOnFailure — продолжать выполнение после упавшего шага.
	ContinueOnFailure bool `yaml:"continue_on_failure,omitempty" json:"continue_on_failure,omitempty"`
}

// EffectiveTimeout возвращает таймаут с учётом значения по умолчанию.
func (c Config) EffectiveTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.Timeout)
}

// Step — один шаг сценария: запрос, ожидания и сохранение значений.
type Step struct {
	// ID — необязательный идентификатор для ссылок {{ steps.<id>.outputs.* }}.
	ID string `yaml:"id,omitempty" json:"id,omitempty"`

	// Name — отображаемое имя шага.
	Name string `yaml:"name" json:"name"`

	// Description — описание шага.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Request — HTTP запрос.
	Request Request `yaml:"request" json:"request"`

	// Expect — ожидания к ответу.
	Expect Expectation `yaml:"expect,omitempty" json:"expect"`

	// Save — имя переменной → JSON path в теле ответа.
	Save map[string]string `yaml:"save,omitempty" json:"save,omitempty"`

	// Condition — шаблон; шаг выполняется, только если он даёт true.
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`

	// Include — вложенный сценарий вместо запроса.
	Include *Include `yaml:"include,omitempty" json:"include,omitempty"`
}

// Include — выполнение другого файла сценария как одного шага.
//
// Request и Expect у такого шага не задаются. Save разрешается
// по outputs вложенного сценария: {"success": bool, "vars": {...}}.
type Include struct {
	// Path — путь к файлу, относительный к файлу текущего сценария.
	Path string `yaml:"path" json:"path"`

	// Vars — переменные вложенного сценария, перекрывают его vars.
	Vars map[string]any `yaml:"vars,omitempty" json:"vars,omitempty"`
}

// Label возвращает имя шага для отчётов.
func (s *Step) Label(index int) string {
	switch {
	case s.Name != "":
		return s.Name
	case s.ID != "":
		return s.ID
	default:
		return fmt.Sprintf("step %d", index+1)
	}
}

// Request — описание HTTP запроса. Все строковые поля поддерживают шаблоны.
type Request struct {
	Method  string            `yaml:"method" json:"method"`
	URL     string            `yaml:"url" json:"url"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Query   map[string]string `yaml:"query,omitempty" json:"query,omitempty"`
	Body    any               `yaml:"body,omitempty" json:"body,omitempty"`
}

// Expectation — набор проверок ответа.
//
// Каждое поле — отдельный вид проверки. Отсутствующие виды не проверяются.
type Expectation struct {
	Status      *int              `yaml:"status,omitempty" json:"status,omitempty"`
	JSON        map[string]any    `yaml:"json,omitempty" json:"json,omitempty"`
	JSONLengths map[string]int    `yaml:"json_lengths,omitempty" json:"json_lengths,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Contains    []string          `yaml:"contains,omitempty" json:"contains,omitempty"`
	SSE         *SSEExpectation   `yaml:"sse,omitempty" json:"sse,omitempty"`

	// JSONEq — полное равенство тела; лишние поля ответа тоже ошибка.
	JSONEq any `yaml:"json_eq,omitempty" json:"json_eq,omitempty"`

	// JSONIgnoreFields — пути, исключённые из json_eq ("items.*.id").
	JSONIgnoreFields []string `yaml:"json_ignore_fields,omitempty" json:"json_ignore_fields,omitempty"`
}

// IsEmpty возвращает true, если не объявлено ни одной проверки.
func (e *Expectation) IsEmpty() bool {
	return e.Status == nil && len(e.JSON) == 0 && len(e.JSONLengths) == 0 &&
		len(e.Headers) == 0 && len(e.Contains) == 0 && e.SSE == nil && e.JSONEq == nil
}

// SSEExpectation — ожидаемая последовательность событий event-stream.
type SSEExpectation struct {
	// Events — matcher'ы в порядке ожидания.
	Events []EventMatcher `yaml:"events,omitempty" json:"events,omitempty"`

	// HasEvents — имена событий, которые должны встретиться в любом месте потока.
	HasEvents []string `yaml:"has_events,omitempty" json:"has_events,omitempty"`

	// HasNoEvents — имена событий, которых не должно быть.
	// Поток читается до конца или до истечения ожидания.
	HasNoEvents []string `yaml:"has_no_events,omitempty" json:"has_no_events,omitempty"`

	// Timeout — сколько ждать все события (default: таймаут шага).
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// EventMatcher — условие на один кадр event-stream.
// Пустые поля не проверяются.
type EventMatcher struct {
	// Event — имя события (поле event:).
	Event string `yaml:"event,omitempty" json:"event,omitempty"`

	// Data — точное совпадение payload (поле data:).
	Data string `yaml:"data,omitempty" json:"data,omitempty"`

	// Contains — подстрока в payload.
	Contains string `yaml:"contains,omitempty" json:"contains,omitempty"`

	// JSON — JSON path → ожидаемое значение в распарсенном payload.
	JSON map[string]any `yaml:"json,omitempty" json:"json,omitempty"`

	// DataEq — полное равенство распарсенного payload.
	DataEq any `yaml:"data_eq,omitempty" json:"data_eq,omitempty"`

	// IgnoreFields — пути, исключённые из data_eq.
	IgnoreFields []string `yaml:"ignore_fields,omitempty" json:"ignore_fields,omitempty"`

	// DataExists — пути, которые должны существовать в payload.
	DataExists []string `yaml:"data_exists,omitempty" json:"data_exists,omitempty"`

	// Save — имя переменной → путь в payload совпавшего кадра.
	Save map[string]string `yaml:"save,omitempty" json:"save,omitempty"`
}

// String описывает matcher для сообщений об ошибках.
func (m EventMatcher) String() string {
	var parts []string
	if m.Event != "" {
		parts = append(parts, fmt.Sprintf("event=%q", m.Event))
	}
	if m.Data != "" {
		parts = append(parts, fmt.Sprintf("data=%q", m.Data))
	}
	if m.Contains != "" {
		parts = append(parts, fmt.Sprintf("contains=%q", m.Contains))
	}
	if len(m.JSON) > 0 {
		parts = append(parts, fmt.Sprintf("json=%v", m.JSON))
	}
	if m.DataEq != nil {
		parts = append(parts, "data_eq")
	}
	if len(m.DataExists) > 0 {
		parts = append(parts, fmt.Sprintf("data_exists=%v", m.DataExists))
	}
	if len(parts) == 0 {
		return "any event"
	}
	return strings.Join(parts, " ")
}

// Duration — time.Duration с YAML-форматом сценариев.
//
// Целое или дробное число трактуется как секунды ("timeout: 10"),
// строка — как Go duration ("timeout: 1500ms").
type Duration time.Duration

// UnmarshalYAML реализует yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}

	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		*d = 0
		return nil
	}

	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if secs < 0 {
			return fmt.Errorf("line %d: duration must not be negative", value.Line)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", value.Line, raw)
	}
	if parsed < 0 {
		return fmt.Errorf("line %d: duration must not be negative", value.Line)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML реализует yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// String возвращает duration в формате Go.
func (d Duration) String() string {
	return time.Duration(d).String()
}
