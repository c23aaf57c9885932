package loader

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format — синтаксис файла сценария.
type Format string

const (
	// FormatInline — весь файл один YAML документ.
	FormatInline Format = "inline"

	// FormatProse — Markdown с front matter и блоками ```yaml scenario.
	FormatProse Format = "prose"
)

// proseSuffix — расширение Markdown сценариев.
const proseSuffix = ".scenario.md"

// DetectFormat определяет формат по имени файла.
func DetectFormat(path string) (Format, error) {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, proseSuffix):
		return FormatProse, nil
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		return FormatInline, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// IsScenarioFile проверяет, что файл похож на сценарий.
func IsScenarioFile(path string) bool {
	_, err := DetectFormat(path)
	return err == nil
}
