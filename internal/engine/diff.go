package engine

import (
	"fmt"
	"slices"
	"strings"
)

// Виды расхождений Diff.
const (
	DiffValue      = "value mismatch"
	DiffMissing    = "missing field"
	DiffUnexpected = "unexpected field"
	DiffLength     = "array length mismatch"
)

// rootPath — отображаемое имя корня в сообщениях Diff.
const rootPath = "$"

// Difference — одно расхождение между ожидаемым и фактическим значением.
type Difference struct {
	Path     string // путь через точку, "" — корень
	Reason   string // DiffValue, DiffMissing, DiffUnexpected, DiffLength
	Expected any
	Actual   any
}

// String описывает расхождение для отчётов.
func (d Difference) String() string {
	path := d.Path
	if path == "" {
		path = rootPath
	}
	switch d.Reason {
	case DiffMissing:
		return fmt.Sprintf("%s: missing field (expected %s)", path, Stringify(d.Expected))
	case DiffUnexpected:
		return fmt.Sprintf("%s: unexpected field (value %s)", path, Stringify(d.Actual))
	case DiffLength:
		return fmt.Sprintf("%s: array length mismatch, expected %v, got %v", path, d.Expected, d.Actual)
	default:
		return fmt.Sprintf("%s: expected %s, got %s", path, Stringify(d.Expected), Stringify(d.Actual))
	}
}

// Diff сравнивает значения на полное равенство и возвращает все расхождения.
//
// Лишние поля в actual тоже являются расхождением. ignore — пути через
// точку, которые не сравниваются; "*" совпадает с любым одним сегментом
// ("items.*.id"). Числа сравниваются как в Equal.
func Diff(expected, actual any, ignore []string) []Difference {
	var out []Difference
	diff(expected, actual, "", ignore, &out)
	return out
}

func diff(expected, actual any, path string, ignore []string, out *[]Difference) {
	if path != "" && IsIgnored(path, ignore) {
		return
	}

	switch e := expected.(type) {
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok {
			break
		}
		keys := make([]string, 0, len(e)+len(a))
		for k := range e {
			keys = append(keys, k)
		}
		for k := range a {
			if _, dup := e[k]; !dup {
				keys = append(keys, k)
			}
		}
		slices.Sort(keys)

		for _, k := range keys {
			child := joinPath(path, k)
			if IsIgnored(child, ignore) {
				continue
			}
			ev, inExpected := e[k]
			av, inActual := a[k]
			switch {
			case inExpected && inActual:
				diff(ev, av, child, ignore, out)
			case inExpected:
				*out = append(*out, Difference{Path: child, Reason: DiffMissing, Expected: Normalize(ev)})
			default:
				*out = append(*out, Difference{Path: child, Reason: DiffUnexpected, Actual: Normalize(av)})
			}
		}
		return

	case []any:
		a, ok := actual.([]any)
		if !ok {
			break
		}
		if len(a) != len(e) {
			*out = append(*out, Difference{Path: path, Reason: DiffLength, Expected: len(e), Actual: len(a)})
		}
		for i := range min(len(a), len(e)) {
			diff(e[i], a[i], joinPath(path, fmt.Sprint(i)), ignore, out)
		}
		return
	}

	if !Equal(expected, actual) {
		*out = append(*out, Difference{Path: path, Reason: DiffValue, Expected: Normalize(expected), Actual: Normalize(actual)})
	}
}

// IsIgnored проверяет путь по шаблонам ignore.
// Шаблон совпадает, только если число сегментов одинаково.
func IsIgnored(path string, patterns []string) bool {
	segs := strings.Split(path, ".")
	for _, pattern := range patterns {
		parts := strings.Split(strings.TrimSpace(pattern), ".")
		if len(parts) != len(segs) {
			continue
		}
		matched := true
		for i, p := range parts {
			if p != "*" && p != segs[i] {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func joinPath(prefix, seg string) string {
	if prefix == "" {
		return seg
	}
	return prefix + "." + seg
}
