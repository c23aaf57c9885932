package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Checkpoint/internal/domain"
)

// Format — формат отчёта.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// FileBaseName — имя файла отчёта без расширения.
const FileBaseName = "checkpoint-report"

// Formats возвращает поддерживаемые форматы.
func Formats() []Format {
	return []Format{FormatJSON, FormatYAML, FormatText}
}

// ParseFormat разбирает формат отчёта ("yml" и "txt" — синонимы).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "text", "txt", "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %q (want json, yaml or text)", ErrUnknownFormat, s)
	}
}

// Extension возвращает расширение файла для формата.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "txt"
	}
}

// Render выводит отчёт в w.
func Render(w io.Writer, format Format, results []*domain.ScenarioResult) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(Build(results))

	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(Build(results)); err != nil {
			return err
		}
		return enc.Close()

	case FormatText:
		return NewTextRenderer(false).Render(w, results)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteFile записывает отчёт в dir/checkpoint-report.<ext> и возвращает путь.
// Директория создаётся при необходимости.
func WriteFile(dir string, format Format, results []*domain.ScenarioResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWriteReport, err)
	}

	path := filepath.Join(dir, FileBaseName+"."+format.Extension())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWriteReport, err)
	}

	if err := Render(f, format, results); err != nil {
		f.Close()
		return "", fmt.Errorf("%w: %v", ErrWriteReport, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWriteReport, err)
	}

	return path, nil
}

// ExitCode возвращает код выхода процесса: 0, если все сценарии успешны.
func ExitCode(results []*domain.ScenarioResult) int {
	if len(results) > 0 && domain.AllSucceeded(results) {
		return 0
	}
	return 1
}
