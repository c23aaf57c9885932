package engine

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Lookup проходит по значению по пути из сегментов через точку.
//
// Числовые сегменты индексируют массивы ("items.0.id"), запись
// "items[0].id" эквивалентна. Пустой путь возвращает само значение.
func Lookup(value any, path string) (any, error) {
	if path == "" {
		return value, nil
	}

	cur := value
	for _, seg := range splitPath(path) {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, &PathError{Path: path, Segment: seg, Reason: "key not found"}
			}
			cur = next

		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, &PathError{Path: path, Segment: seg, Reason: "array index expected"}
			}
			if idx < 0 || idx >= len(v) {
				return nil, &PathError{Path: path, Segment: seg, Reason: "index out of range"}
			}
			cur = v[idx]

		case map[string]string:
			next, ok := v[seg]
			if !ok {
				return nil, &PathError{Path: path, Segment: seg, Reason: "key not found"}
			}
			cur = next

		default:
			return nil, &PathError{Path: path, Segment: seg, Reason: "cannot descend into scalar"}
		}
	}

	return cur, nil
}

// Length возвращает длину массива или количество ключей объекта.
// Для скаляров ok = false.
func Length(value any) (n int, ok bool) {
	switch v := value.(type) {
	case []any:
		return len(v), true
	case map[string]any:
		return len(v), true
	case []string:
		return len(v), true
	case map[string]string:
		return len(v), true
	}
	return 0, false
}

// Equal сравнивает ожидаемое и фактическое значения с учётом типов.
//
// Числа сравниваются как float64 (1 == 1.0), строка никогда
// не равна числу, объекты и массивы сравниваются рекурсивно.
func Equal(expected, actual any) bool {
	if ef, ok := toFloat(expected); ok {
		af, ok := toFloat(actual)
		return ok && ef == af
	}
	if _, ok := toFloat(actual); ok {
		return false
	}

	switch e := expected.(type) {
	case nil:
		return actual == nil

	case string:
		a, ok := actual.(string)
		return ok && e == a

	case bool:
		a, ok := actual.(bool)
		return ok && e == a

	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok || len(a) != len(e) {
			return false
		}
		for k, ev := range e {
			av, ok := a[k]
			if !ok || !Equal(ev, av) {
				return false
			}
		}
		return true

	case []any:
		a, ok := actual.([]any)
		if !ok || len(a) != len(e) {
			return false
		}
		for i := range e {
			if !Equal(e[i], a[i]) {
				return false
			}
		}
		return true
	}

	return false
}

// Normalize приводит числа к float64 рекурсивно (для отчётов и сравнения).
func Normalize(value any) any {
	if f, ok := toFloat(value); ok {
		return f
	}
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = Normalize(val)
		}
		return out
	}
	return value
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func splitPath(path string) []string {
	path = strings.ReplaceAll(path, "[", ".")
	path = strings.ReplaceAll(path, "]", "")
	parts := strings.Split(path, ".")
	segs := parts[:0]
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}
