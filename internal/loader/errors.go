package loader

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Ошибки загрузки сценариев.
var (
	// ErrUnsupportedFormat — расширение файла не поддерживается.
	ErrUnsupportedFormat = errors.New("unsupported scenario format")

	// ErrInvalidYAML — YAML не разбирается или содержит неизвестные поля.
	ErrInvalidYAML = errors.New("invalid yaml")

	// ErrMissingName — у сценария нет имени.
	ErrMissingName = errors.New("scenario has no name")

	// ErrNoSteps — сценарий не содержит шагов.
	ErrNoSteps = errors.New("scenario has no steps")

	// ErrMissingFrontMatter — Markdown файл не начинается с "---".
	ErrMissingFrontMatter = errors.New("front matter must start with '---'")

	// ErrUnterminatedFrontMatter — нет закрывающего "---".
	ErrUnterminatedFrontMatter = errors.New("unterminated front matter")

	// ErrStepsInFrontMatter — steps объявлены в front matter.
	ErrStepsInFrontMatter = errors.New("steps are not allowed in front matter")

	// ErrNoScenarioBlocks — в Markdown нет блоков ```yaml scenario.
	ErrNoScenarioBlocks = errors.New("no yaml scenario blocks found")

	// ErrUnterminatedFence — блок ```yaml scenario не закрыт.
	ErrUnterminatedFence = errors.New("unterminated yaml scenario block")

	// ErrBlockWithoutSteps — fenced блок без steps.
	ErrBlockWithoutSteps = errors.New("scenario block has no steps")

	// ErrDuplicateStepID — несколько шагов с одинаковым ID.
	ErrDuplicateStepID = errors.New("duplicate step ID")

	// ErrUnknownStepRef — шаблон ссылается на необъявленный шаг.
	ErrUnknownStepRef = errors.New("reference to unknown step")

	// ErrMissingURL — у запроса нет URL.
	ErrMissingURL = errors.New("request has no url")

	// ErrInvalidMethod — неизвестный HTTP метод.
	ErrInvalidMethod = errors.New("invalid http method")

	// ErrInvalidExpectation — некорректное ожидание (status, save, sse).
	ErrInvalidExpectation = errors.New("invalid expectation")

	// ErrInvalidInclude — некорректный шаг include.
	ErrInvalidInclude = errors.New("invalid include")
)

// ParseError — ошибка загрузки файла сценария с позицией.
type ParseError struct {
	Path    string // путь к файлу
	Line    int    // номер строки в файле (0 — неизвестен)
	Block   int    // номер fenced блока (с 1), 0 для inline
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ParseError) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "<input>"
	}
	if e.Line > 0 {
		loc += ":" + strconv.Itoa(e.Line)
	}
	if e.Block > 0 {
		loc += fmt.Sprintf(" (block %d)", e.Block)
	}
	if e.Field != "" {
		return loc + ": " + e.Field + ": " + e.Message
	}
	return loc + ": " + e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError создаёт новую ошибку загрузки.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// yamlError превращает ошибку yaml.v3 в ParseError.
// offset — номер строки файла, предшествующей первой строке YAML.
func yamlError(err error, offset, block int) *ParseError {
	pe := &ParseError{
		Block:   block,
		Message: err.Error(),
		Err:     fmt.Errorf("%w: %v", ErrInvalidYAML, err),
	}
	if m := yamlLinePattern.FindStringSubmatch(err.Error()); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			pe.Line = offset + n
		}
	}
	return pe
}
