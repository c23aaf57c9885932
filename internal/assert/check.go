package assert

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shaiso/Checkpoint/internal/domain"
	"github.com/shaiso/Checkpoint/internal/engine"
	"github.com/shaiso/Checkpoint/internal/sse"
)

// Значения Actual для отсутствующих данных.
const (
	actualMissing       = "missing"
	actualAbsent        = "absent"
	actualNotCollection = "not a collection"
	actualNotJSON       = "body is not JSON"
)

// Check — одна проверка ответа.
//
// Каждый вид ожидания (status, json, json_eq, json_lengths, headers,
// contains, sse) — отдельная реализация.
type Check interface {
	// Kind возвращает вид проверки.
	Kind() domain.AssertionKind

	// Evaluate возвращает несовпадения (пусто — проверка прошла).
	Evaluate(resp *Response) []domain.Mismatch
}

// StatusCheck — точное совпадение HTTP статуса.
type StatusCheck struct {
	Expected int
}

// Kind реализует Check.
func (c StatusCheck) Kind() domain.AssertionKind { return domain.AssertStatus }

// Evaluate реализует Check.
func (c StatusCheck) Evaluate(resp *Response) []domain.Mismatch {
	if resp.Status == c.Expected {
		return nil
	}
	return []domain.Mismatch{{
		Kind:     domain.AssertStatus,
		Target:   "status",
		Expected: c.Expected,
		Actual:   resp.Status,
		Message:  fmt.Sprintf("expected status %d, got %d", c.Expected, resp.Status),
	}}
}

// JSONCheck — значения по JSON path.
type JSONCheck struct {
	Expected map[string]any
}

// Kind реализует Check.
func (c JSONCheck) Kind() domain.AssertionKind { return domain.AssertJSON }

// Evaluate реализует Check.
func (c JSONCheck) Evaluate(resp *Response) []domain.Mismatch {
	var out []domain.Mismatch
	for _, path := range sortedKeys(c.Expected) {
		expected := c.Expected[path]

		if !resp.IsJSON {
			out = append(out, domain.Mismatch{
				Kind:     domain.AssertJSON,
				Target:   path,
				Expected: expected,
				Actual:   actualNotJSON,
				Message:  fmt.Sprintf("json %s: expected %s, but %s", path, engine.Stringify(expected), actualNotJSON),
			})
			continue
		}

		actual, err := engine.Lookup(resp.JSON, path)
		if err != nil {
			out = append(out, domain.Mismatch{
				Kind:     domain.AssertJSON,
				Target:   path,
				Expected: expected,
				Actual:   actualMissing,
				Message:  fmt.Sprintf("json %s: expected %s, got missing", path, engine.Stringify(expected)),
			})
			continue
		}

		if !engine.Equal(expected, actual) {
			out = append(out, domain.Mismatch{
				Kind:     domain.AssertJSON,
				Target:   path,
				Expected: expected,
				Actual:   engine.Normalize(actual),
				Message:  fmt.Sprintf("json %s: expected %s, got %s", path, describe(expected), describe(actual)),
			})
		}
	}
	return out
}

// JSONEqCheck — полное равенство тела ответа с учётом игнорируемых путей.
type JSONEqCheck struct {
	Expected any
	Ignore   []string
}

// Kind реализует Check.
func (c JSONEqCheck) Kind() domain.AssertionKind { return domain.AssertJSONEq }

// Evaluate реализует Check. Каждое расхождение — отдельный Mismatch.
func (c JSONEqCheck) Evaluate(resp *Response) []domain.Mismatch {
	if !resp.IsJSON {
		return []domain.Mismatch{{
			Kind:     domain.AssertJSONEq,
			Target:   "$",
			Expected: c.Expected,
			Actual:   actualNotJSON,
			Message:  "json_eq: " + actualNotJSON,
		}}
	}

	diffs := engine.Diff(c.Expected, resp.JSON, c.Ignore)
	out := make([]domain.Mismatch, 0, len(diffs))
	for _, d := range diffs {
		target := d.Path
		if target == "" {
			target = "$"
		}
		out = append(out, domain.Mismatch{
			Kind:     domain.AssertJSONEq,
			Target:   target,
			Expected: d.Expected,
			Actual:   d.Actual,
			Message:  "json_eq " + d.String(),
		})
	}
	return out
}

// JSONLengthsCheck — длина массива или количество ключей объекта.
type JSONLengthsCheck struct {
	Expected map[string]int
}

// Kind реализует Check.
func (c JSONLengthsCheck) Kind() domain.AssertionKind { return domain.AssertJSONLengths }

// Evaluate реализует Check.
func (c JSONLengthsCheck) Evaluate(resp *Response) []domain.Mismatch {
	var out []domain.Mismatch
	for _, path := range sortedKeys(c.Expected) {
		expected := c.Expected[path]
		mismatch := domain.Mismatch{
			Kind:     domain.AssertJSONLengths,
			Target:   path,
			Expected: expected,
		}

		if !resp.IsJSON {
			mismatch.Actual = actualNotJSON
			mismatch.Message = fmt.Sprintf("json_lengths %s: expected %d, but %s", path, expected, actualNotJSON)
			out = append(out, mismatch)
			continue
		}

		value, err := engine.Lookup(resp.JSON, path)
		if err != nil {
			mismatch.Actual = actualMissing
			mismatch.Message = fmt.Sprintf("json_lengths %s: expected %d, got missing", path, expected)
			out = append(out, mismatch)
			continue
		}

		n, ok := engine.Length(value)
		if !ok {
			mismatch.Actual = actualNotCollection
			mismatch.Message = fmt.Sprintf("json_lengths %s: expected %d, got not a collection", path, expected)
			out = append(out, mismatch)
			continue
		}

		if n != expected {
			mismatch.Actual = n
			mismatch.Message = fmt.Sprintf("json_lengths %s: expected %d, got %d", path, expected, n)
			out = append(out, mismatch)
		}
	}
	return out
}

// HeadersCheck — заголовки ответа (имя без учёта регистра, значение точно).
type HeadersCheck struct {
	Expected map[string]string
}

// Kind реализует Check.
func (c HeadersCheck) Kind() domain.AssertionKind { return domain.AssertHeaders }

// Evaluate реализует Check.
func (c HeadersCheck) Evaluate(resp *Response) []domain.Mismatch {
	var out []domain.Mismatch
	for _, name := range sortedKeys(c.Expected) {
		expected := c.Expected[name]
		values := resp.Headers.Values(name)

		if len(values) == 0 {
			out = append(out, domain.Mismatch{
				Kind:     domain.AssertHeaders,
				Target:   name,
				Expected: expected,
				Actual:   actualAbsent,
				Message:  fmt.Sprintf("header %s: expected %q, got absent", name, expected),
			})
			continue
		}

		if headerMatches(values, expected) {
			continue
		}

		actual := strings.Join(values, ", ")
		out = append(out, domain.Mismatch{
			Kind:     domain.AssertHeaders,
			Target:   name,
			Expected: expected,
			Actual:   actual,
			Message:  fmt.Sprintf("header %s: expected %q, got %q", name, expected, actual),
		})
	}
	return out
}

func headerMatches(values []string, expected string) bool {
	for _, v := range values {
		if v == expected {
			return true
		}
	}
	return strings.Join(values, ", ") == expected
}

// ContainsCheck — подстроки в сыром теле ответа.
type ContainsCheck struct {
	Expected []string
}

// Kind реализует Check.
func (c ContainsCheck) Kind() domain.AssertionKind { return domain.AssertContains }

// Evaluate реализует Check.
func (c ContainsCheck) Evaluate(resp *Response) []domain.Mismatch {
	body := string(resp.Body)
	var out []domain.Mismatch
	for _, sub := range c.Expected {
		if strings.Contains(body, sub) {
			continue
		}
		out = append(out, domain.Mismatch{
			Kind:     domain.AssertContains,
			Target:   sub,
			Expected: sub,
			Message:  fmt.Sprintf("body does not contain %q", sub),
		})
	}
	return out
}

// SSECheck — результат валидации event-stream.
type SSECheck struct {
	Expected domain.SSEExpectation
}

// Kind реализует Check.
func (c SSECheck) Kind() domain.AssertionKind { return domain.AssertSSE }

// Evaluate реализует Check.
func (c SSECheck) Evaluate(resp *Response) []domain.Mismatch {
	if resp.Stream == nil {
		target := "stream"
		switch {
		case len(c.Expected.Events) > 0:
			target = c.Expected.Events[0].String()
		case len(c.Expected.HasEvents) > 0:
			target = "has_events"
		}
		return []domain.Mismatch{{
			Kind:     domain.AssertSSE,
			Target:   target,
			Expected: "text/event-stream",
			Actual:   resp.Headers.Get("Content-Type"),
			Message:  "response is not an event stream",
		}}
	}

	if resp.Stream.OK() {
		return nil
	}

	m := domain.Mismatch{
		Kind:    domain.AssertSSE,
		Message: resp.Stream.Err.Error(),
		Actual:  fmt.Sprintf("%d frames read", len(resp.Stream.Frames)),
	}

	var (
		missing   *sse.MissingEventsError
		forbidden *sse.ForbiddenEventError
	)
	switch {
	case errors.As(resp.Stream.Err, &forbidden):
		m.Target = "has_no_events"
		m.Expected = c.Expected.HasNoEvents
		m.Actual = forbidden.Event
	case errors.As(resp.Stream.Err, &missing):
		m.Target = "has_events"
		m.Expected = missing.Events
	case resp.Stream.Matched < len(c.Expected.Events):
		m.Target = c.Expected.Events[resp.Stream.Matched].String()
	}
	return []domain.Mismatch{m}
}

func describe(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return engine.Stringify(v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
