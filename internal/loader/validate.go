package loader

import (
	"fmt"
	"strings"

	"github.com/shaiso/Checkpoint/internal/domain"
	"github.com/shaiso/Checkpoint/internal/engine"
)

// Допустимые HTTP методы.
var validMethods = map[string]bool{
	"GET":     true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"PATCH":   true,
	"HEAD":    true,
	"OPTIONS": true,
}

// validate проверяет и нормализует загруженный сценарий.
//
// Проверяет:
//   - Наличие имени и шагов
//   - Уникальность ID шагов
//   - Наличие URL и корректность метода (или include)
//   - Ожидания (status, save, json_eq, sse)
//   - Ссылки steps.<id> на объявленные шаги
//
// origins — источники шагов для Markdown (nil для inline).
func validate(sc *domain.Scenario, origins []stepOrigin) error {
	sc.Name = strings.TrimSpace(sc.Name)
	if sc.Name == "" {
		return &ParseError{Field: "name", Message: "scenario name is required", Err: ErrMissingName}
	}
	if len(sc.Steps) == 0 {
		return &ParseError{Field: "steps", Message: "scenario must contain at least one step", Err: ErrNoSteps}
	}

	stepIDs := make(map[string]bool)
	for i := range sc.Steps {
		if err := validateStep(&sc.Steps[i], i, stepIDs); err != nil {
			return locate(err, origins, i)
		}
	}

	if err := checkReferences(engine.ReferencesIn(sc.Config.Headers), stepIDs, "config.headers"); err != nil {
		return err
	}
	if err := checkReferences(engine.References(sc.Config.BaseURL), stepIDs, "config.base_url"); err != nil {
		return err
	}

	for i := range sc.Steps {
		for field, value := range stepTemplates(&sc.Steps[i]) {
			prefix := fmt.Sprintf("steps[%d].%s", i, field)
			if err := checkReferences(engine.ReferencesIn(value), stepIDs, prefix); err != nil {
				return locate(err, origins, i)
			}
		}
	}

	return nil
}

// validateStep валидирует один шаг.
// stepIDs — уже встреченные ID шагов (для проверки уникальности).
func validateStep(step *domain.Step, index int, stepIDs map[string]bool) error {
	field := func(name string) string {
		return fmt.Sprintf("steps[%d].%s", index, name)
	}

	step.ID = strings.TrimSpace(step.ID)
	if step.ID != "" {
		if stepIDs[step.ID] {
			return NewParseError(field("id"), fmt.Sprintf("duplicate step ID: %s", step.ID), ErrDuplicateStepID)
		}
		stepIDs[step.ID] = true
	}

	if step.Name == "" {
		step.Name = step.Label(index)
	}

	if step.Include != nil {
		if err := validateInclude(step, field); err != nil {
			return err
		}
	} else if err := validateRequest(step, field); err != nil {
		return err
	}

	if st := step.Expect.Status; st != nil && (*st < 100 || *st > 599) {
		return NewParseError(field("expect.status"),
			fmt.Sprintf("status %d is out of range", *st), ErrInvalidExpectation)
	}

	for name, n := range step.Expect.JSONLengths {
		if n < 0 {
			return NewParseError(field("expect.json_lengths"),
				fmt.Sprintf("negative length for %s", name), ErrInvalidExpectation)
		}
	}

	for name, path := range step.Save {
		if strings.TrimSpace(name) == "" {
			return NewParseError(field("save"), "save name is empty", ErrInvalidExpectation)
		}
		if strings.TrimSpace(path) == "" {
			return NewParseError(field("save."+name), "save path is empty", ErrInvalidExpectation)
		}
	}

	if step.Expect.JSONEq == nil && len(step.Expect.JSONIgnoreFields) > 0 {
		return NewParseError(field("expect.json_ignore_fields"), "json_ignore_fields requires json_eq", ErrInvalidExpectation)
	}

	if sse := step.Expect.SSE; sse != nil {
		if err := validateSSE(sse, field); err != nil {
			return err
		}
	}

	return nil
}

func validateRequest(step *domain.Step, field func(string) string) error {
	if strings.TrimSpace(step.Request.URL) == "" {
		return NewParseError(field("request.url"), "request url is required", ErrMissingURL)
	}

	method := strings.ToUpper(strings.TrimSpace(step.Request.Method))
	if method == "" {
		method = "GET"
	}
	if !validMethods[method] {
		return NewParseError(field("request.method"),
			fmt.Sprintf("unsupported method: %s", step.Request.Method), ErrInvalidMethod)
	}
	step.Request.Method = method
	return nil
}

// validateInclude: include заменяет запрос, поэтому request и expect запрещены.
func validateInclude(step *domain.Step, field func(string) string) error {
	if strings.TrimSpace(step.Include.Path) == "" {
		return NewParseError(field("include.path"), "include path is required", ErrInvalidInclude)
	}
	if step.Request.URL != "" || step.Request.Method != "" || step.Request.Body != nil ||
		len(step.Request.Headers) > 0 || len(step.Request.Query) > 0 {
		return NewParseError(field("include"), "include step cannot declare a request", ErrInvalidInclude)
	}
	if !step.Expect.IsEmpty() {
		return NewParseError(field("include"), "include step cannot declare expectations", ErrInvalidInclude)
	}
	return nil
}

func validateSSE(sse *domain.SSEExpectation, field func(string) string) error {
	if len(sse.Events) == 0 && len(sse.HasEvents) == 0 && len(sse.HasNoEvents) == 0 {
		return NewParseError(field("expect.sse"), "sse expectation declares no events", ErrInvalidExpectation)
	}

	for _, name := range sse.HasNoEvents {
		for _, required := range sse.HasEvents {
			if name == required {
				return NewParseError(field("expect.sse"),
					fmt.Sprintf("event %q is both required and forbidden", name), ErrInvalidExpectation)
			}
		}
	}

	for i, m := range sse.Events {
		prefix := fmt.Sprintf("expect.sse.events[%d]", i)
		if m.DataEq == nil && len(m.IgnoreFields) > 0 {
			return NewParseError(field(prefix+".ignore_fields"), "ignore_fields requires data_eq", ErrInvalidExpectation)
		}
		for name, path := range m.Save {
			if strings.TrimSpace(name) == "" || strings.TrimSpace(path) == "" {
				return NewParseError(field(prefix+".save"), "save name and path must not be empty", ErrInvalidExpectation)
			}
		}
	}
	return nil
}

// stepTemplates возвращает все значения шага, которые проходят через шаблоны.
func stepTemplates(step *domain.Step) map[string]any {
	fields := map[string]any{
		"request.url":     step.Request.URL,
		"request.headers": step.Request.Headers,
		"request.query":   step.Request.Query,
		"request.body":    step.Request.Body,
		"expect.json":     step.Expect.JSON,
		"expect.headers":  step.Expect.Headers,
		"expect.contains": step.Expect.Contains,
		"expect.json_eq":  step.Expect.JSONEq,
		"condition":       step.Condition,
	}
	if step.Include != nil {
		fields["include.path"] = step.Include.Path
		fields["include.vars"] = step.Include.Vars
	}
	if step.Expect.SSE != nil {
		var values []any
		for _, m := range step.Expect.SSE.Events {
			values = append(values, m.Event, m.Data, m.Contains, m.JSON, m.DataEq)
		}
		fields["expect.sse"] = values
	}
	return fields
}

func checkReferences(ids []string, declared map[string]bool, field string) error {
	for _, id := range ids {
		if !declared[id] {
			return NewParseError(field, fmt.Sprintf("reference to unknown step %q", id), ErrUnknownStepRef)
		}
	}
	return nil
}

// locate добавляет к ошибке номер блока и строку fence для Markdown.
func locate(err error, origins []stepOrigin, index int) error {
	pe, ok := err.(*ParseError)
	if !ok || index >= len(origins) {
		return err
	}
	pe.Block = origins[index].block
	pe.Line = origins[index].line
	return pe
}
