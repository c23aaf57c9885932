package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/shaiso/Checkpoint/internal/domain"
	"github.com/shaiso/Checkpoint/internal/engine"
)

// errNotJSON — payload кадра не разбирается как JSON.
var errNotJSON = errors.New("event data is not JSON")

// Matches проверяет кадр по matcher'у. Пустые поля matcher'а не проверяются.
//
// json, data_eq и data_exists требуют JSON payload.
func Matches(m domain.EventMatcher, f Frame) bool {
	if m.Event != "" && m.Event != f.Event {
		return false
	}
	if m.Data != "" && m.Data != f.Data {
		return false
	}
	if m.Contains != "" && !strings.Contains(f.Data, m.Contains) {
		return false
	}
	if len(m.JSON) == 0 && m.DataEq == nil && len(m.DataExists) == 0 {
		return true
	}

	payload, ok := f.JSON()
	if !ok {
		return false
	}
	for path, expected := range m.JSON {
		actual, err := engine.Lookup(payload, path)
		if err != nil || !engine.Equal(expected, actual) {
			return false
		}
	}
	for _, path := range m.DataExists {
		if _, err := engine.Lookup(payload, path); err != nil {
			return false
		}
	}
	if m.DataEq != nil && len(engine.Diff(m.DataEq, payload, m.IgnoreFields)) > 0 {
		return false
	}
	return true
}

// JSON разбирает data кадра как JSON.
func (f Frame) JSON() (any, bool) {
	data := strings.TrimSpace(f.Data)
	if data == "" {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return v, true
}

// Group строит значение {event: [data, ...]} для save и outputs.
// Data, которая разбирается как JSON, вставляется распарсенной.
func Group(frames []Frame) map[string]any {
	grouped := make(map[string]any)
	for _, f := range frames {
		var value any = f.Data
		if v, ok := f.JSON(); ok {
			value = v
		}
		list, _ := grouped[f.Event].([]any)
		grouped[f.Event] = append(list, value)
	}
	return grouped
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
