package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// identPattern — допустимое имя переменной.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]*$`)

// Render подставляет значения placeholder'ов в строку.
//
// Поддерживаемые выражения:
//
//	{{ token }}
//	{{ user.address.city }}
//	{{ vars.token }}
//	{{ steps.create.outputs.id }}
//	{{ env.API_KEY }}
//
// Строка без "{{" возвращается без изменений.
func Render(tmpl string, scope *Scope) (string, error) {
	if !strings.Contains(tmpl, openDelim) {
		return tmpl, nil
	}

	var buf strings.Builder
	rest := tmpl
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			buf.WriteString(rest)
			break
		}
		buf.WriteString(rest[:start])

		end := strings.Index(rest[start+len(openDelim):], closeDelim)
		if end < 0 {
			return "", newUnresolved(strings.TrimSpace(rest[start+len(openDelim):]), "unterminated placeholder", nil)
		}

		expr := strings.TrimSpace(rest[start+len(openDelim) : start+len(openDelim)+end])
		value, err := Resolve(expr, scope)
		if err != nil {
			return "", err
		}
		buf.WriteString(Stringify(value))

		rest = rest[start+len(openDelim)+end+len(closeDelim):]
	}

	return buf.String(), nil
}

// RenderValue рендерит произвольное значение.
// Рекурсивно обрабатывает map и slice.
//
// Если строка целиком состоит из одного placeholder'а, подставляется
// само значение с сохранением типа (число, объект, массив).
func RenderValue(value any, scope *Scope) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case string:
		if expr, ok := wholePlaceholder(v); ok {
			return Resolve(expr, scope)
		}
		return Render(v, scope)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := RenderValue(val, scope)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			rendered, err := RenderValue(val, scope)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	case map[string]string:
		return RenderStrings(v, scope)

	case []string:
		result := make([]string, len(v))
		for i, val := range v {
			rendered, err := Render(val, scope)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	default:
		// int, float, bool возвращаются как есть
		return value, nil
	}
}

// RenderStrings рендерит значения map[string]string (заголовки, query).
func RenderStrings(values map[string]string, scope *Scope) (map[string]string, error) {
	if values == nil {
		return nil, nil
	}
	result := make(map[string]string, len(values))
	for key, val := range values {
		rendered, err := Render(val, scope)
		if err != nil {
			return nil, err
		}
		result[key] = rendered
	}
	return result, nil
}

// Resolve вычисляет одно выражение без фигурных скобок.
func Resolve(expr string, scope *Scope) (any, error) {
	if expr == "" {
		return nil, newUnresolved(expr, "empty expression", nil)
	}
	if scope == nil {
		scope = NewScope(nil)
	}

	switch {
	case strings.HasPrefix(expr, "steps."):
		id, path, err := parseStepRef(expr)
		if err != nil {
			return nil, err
		}
		out, ok := scope.Steps[id]
		if !ok {
			return nil, newUnresolved(expr, fmt.Sprintf("step %q has no outputs", id), nil)
		}
		value, err := Lookup(out.Outputs, path)
		if err != nil {
			return nil, newUnresolved(expr, err.Error(), err)
		}
		return value, nil

	case strings.HasPrefix(expr, "env."):
		name := strings.TrimPrefix(expr, "env.")
		value, ok := scope.lookupEnv(name)
		if !ok {
			return nil, newUnresolved(expr, fmt.Sprintf("environment variable %q is not set", name), nil)
		}
		return value, nil
	}

	name, path, _ := strings.Cut(strings.TrimPrefix(expr, "vars."), ".")
	if !identPattern.MatchString(name) {
		return nil, newUnresolved(expr, "invalid expression", nil)
	}

	value, ok := scope.Vars[name]
	if !ok {
		return nil, newUnresolved(expr, fmt.Sprintf("variable %q is not defined", name), nil)
	}
	if path == "" {
		return value, nil
	}

	value, err := Lookup(value, path)
	if err != nil {
		return nil, newUnresolved(expr, err.Error(), err)
	}
	return value, nil
}

// References возвращает id шагов, на которые ссылаются placeholder'ы строки.
func References(tmpl string) []string {
	var ids []string
	for _, expr := range placeholders(tmpl) {
		if !strings.HasPrefix(expr, "steps.") {
			continue
		}
		if id, _, err := parseStepRef(expr); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// ReferencesIn рекурсивно собирает ссылки на шаги в значении.
func ReferencesIn(value any) []string {
	var ids []string
	switch v := value.(type) {
	case string:
		ids = append(ids, References(v)...)
	case map[string]any:
		for _, val := range v {
			ids = append(ids, ReferencesIn(val)...)
		}
	case []any:
		for _, val := range v {
			ids = append(ids, ReferencesIn(val)...)
		}
	case map[string]string:
		for _, val := range v {
			ids = append(ids, References(val)...)
		}
	case []string:
		for _, val := range v {
			ids = append(ids, References(val)...)
		}
	}
	return ids
}

// Stringify приводит значение к строке для текстовой подстановки.
//
// Строки вставляются как есть, целые числа без ".0",
// объекты и массивы — компактным JSON, nil — как "null".
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return fmt.Sprint(value)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// MustRender рендерит шаблон и паникует при ошибке.
// Используется только для тестов.
func MustRender(tmpl string, scope *Scope) string {
	result, err := Render(tmpl, scope)
	if err != nil {
		panic(err)
	}
	return result
}

// wholePlaceholder проверяет, что строка — ровно один placeholder.
func wholePlaceholder(s string) (string, bool) {
	if !strings.HasPrefix(s, openDelim) || !strings.HasSuffix(s, closeDelim) {
		return "", false
	}
	inner := s[len(openDelim) : len(s)-len(closeDelim)]
	if strings.Contains(inner, openDelim) || strings.Contains(inner, closeDelim) {
		return "", false
	}
	return strings.TrimSpace(inner), true
}

// placeholders возвращает выражения всех завершённых placeholder'ов.
func placeholders(tmpl string) []string {
	var exprs []string
	rest := tmpl
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			return exprs
		}
		end := strings.Index(rest[start+len(openDelim):], closeDelim)
		if end < 0 {
			return exprs
		}
		exprs = append(exprs, strings.TrimSpace(rest[start+len(openDelim):start+len(openDelim)+end]))
		rest = rest[start+len(openDelim)+end+len(closeDelim):]
	}
}

// parseStepRef разбирает steps.<id>.outputs[.path].
func parseStepRef(expr string) (id, path string, err error) {
	rest := strings.TrimPrefix(expr, "steps.")
	id, rest, ok := strings.Cut(rest, ".")
	if !ok || id == "" {
		return "", "", newUnresolved(expr, "expected steps.<id>.outputs", nil)
	}
	if rest != "outputs" && !strings.HasPrefix(rest, "outputs.") {
		return "", "", newUnresolved(expr, "expected steps.<id>.outputs", nil)
	}
	return id, strings.TrimPrefix(strings.TrimPrefix(rest, "outputs"), "."), nil
}
