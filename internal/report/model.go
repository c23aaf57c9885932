package report

import (
	"time"

	"github.com/shaiso/Checkpoint/internal/domain"
	"github.com/shaiso/Checkpoint/internal/engine"
)

// Document — сериализуемый отчёт о запуске. Длительности в миллисекундах.
type Document struct {
	Summary   Summary          `json:"summary" yaml:"summary"`
	Scenarios []ScenarioReport `json:"scenarios" yaml:"scenarios"`
}

// Summary — итоги по всем сценариям.
type Summary struct {
	Total      int   `json:"total" yaml:"total"`
	Passed     int   `json:"passed" yaml:"passed"`
	Failed     int   `json:"failed" yaml:"failed"`
	Success    bool  `json:"success" yaml:"success"`
	DurationMS int64 `json:"duration_ms" yaml:"duration_ms"`
}

// ScenarioReport — результат одного сценария.
type ScenarioReport struct {
	RunID      string       `json:"run_id" yaml:"run_id"`
	Name       string       `json:"name" yaml:"name"`
	Source     string       `json:"source,omitempty" yaml:"source,omitempty"`
	Success    bool         `json:"success" yaml:"success"`
	State      string       `json:"state" yaml:"state"`
	Aborted    bool         `json:"aborted" yaml:"aborted"`
	Error      *ErrorReport `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at" yaml:"started_at"`
	DurationMS int64        `json:"duration_ms" yaml:"duration_ms"`
	Steps      []StepReport `json:"steps" yaml:"steps"`
}

// StepReport — результат одного шага.
type StepReport struct {
	Index      int              `json:"index" yaml:"index"`
	ID         string           `json:"id,omitempty" yaml:"id,omitempty"`
	Name       string           `json:"name" yaml:"name"`
	Status     string           `json:"status" yaml:"status"`
	Success    bool             `json:"success" yaml:"success"`
	DurationMS int64            `json:"duration_ms" yaml:"duration_ms"`
	Error      *ErrorReport     `json:"error,omitempty" yaml:"error,omitempty"`
	Mismatches []MismatchReport `json:"mismatches,omitempty" yaml:"mismatches,omitempty"`
	Request    *RequestReport   `json:"request,omitempty" yaml:"request,omitempty"`
	Response   *ResponseReport  `json:"response,omitempty" yaml:"response,omitempty"`
}

// ErrorReport — ошибка шага или сценария.
type ErrorReport struct {
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

// MismatchReport — одно несовпадение.
type MismatchReport struct {
	Kind     string `json:"kind" yaml:"kind"`
	Target   string `json:"target,omitempty" yaml:"target,omitempty"`
	Expected any    `json:"expected,omitempty" yaml:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty" yaml:"actual,omitempty"`
	Message  string `json:"message" yaml:"message"`
}

// RequestReport — отправленный запрос.
type RequestReport struct {
	Method  string            `json:"method" yaml:"method"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"`
}

// ResponseReport — полученный ответ.
type ResponseReport struct {
	Status  int               `json:"status" yaml:"status"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"`
}

// Build строит Document из результатов.
func Build(results []*domain.ScenarioResult) *Document {
	doc := &Document{
		Scenarios: make([]ScenarioReport, 0, len(results)),
	}

	var total time.Duration
	for _, r := range results {
		if r == nil {
			continue
		}
		doc.Scenarios = append(doc.Scenarios, scenarioReport(r))
		total += r.Elapsed
		if r.Success {
			doc.Summary.Passed++
		} else {
			doc.Summary.Failed++
		}
	}
	doc.Summary.Total = len(doc.Scenarios)
	doc.Summary.Success = domain.AllSucceeded(results)
	doc.Summary.DurationMS = total.Milliseconds()

	return doc
}

func scenarioReport(r *domain.ScenarioResult) ScenarioReport {
	sr := ScenarioReport{
		RunID:      r.RunID.String(),
		Name:       r.Name,
		Source:     r.Source,
		Success:    r.Success,
		State:      string(r.State),
		Aborted:    r.Aborted,
		Error:      errorReport(r.Error),
		StartedAt:  r.StartedAt,
		DurationMS: r.Elapsed.Milliseconds(),
		Steps:      make([]StepReport, 0, len(r.Steps)),
	}

	for _, s := range r.Steps {
		step := StepReport{
			Index:      s.Index,
			ID:         s.ID,
			Name:       s.Name,
			Status:     string(s.Status),
			Success:    s.Success,
			DurationMS: s.Elapsed.Milliseconds(),
			Error:      errorReport(s.Error),
		}
		for _, m := range s.Mismatches {
			step.Mismatches = append(step.Mismatches, MismatchReport{
				Kind:     string(m.Kind),
				Target:   m.Target,
				Expected: engine.Normalize(m.Expected),
				Actual:   engine.Normalize(m.Actual),
				Message:  m.Message,
			})
		}
		if s.Request != nil {
			step.Request = &RequestReport{
				Method:  s.Request.Method,
				URL:     s.Request.URL,
				Headers: s.Request.Headers,
				Body:    s.Request.Body,
			}
		}
		if s.Response != nil {
			step.Response = &ResponseReport{
				Status:  s.Response.Status,
				Headers: s.Response.Headers,
				Body:    s.Response.Body,
			}
		}
		sr.Steps = append(sr.Steps, step)
	}

	return sr
}

func errorReport(e *domain.StepError) *ErrorReport {
	if e == nil {
		return nil
	}
	return &ErrorReport{Kind: string(e.Kind), Message: e.Message}
}
