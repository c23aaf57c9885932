package loader

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shaiso/Checkpoint/internal/domain"
)

// Load читает и разбирает файл сценария. Формат выбирается по расширению.
func Load(path string) (*domain.Scenario, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, &ParseError{Path: path, Message: err.Error(), Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	sc, err := Parse(data, format)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}

	sc.Source = path
	return sc, nil
}

// Parse разбирает сценарий из памяти.
func Parse(data []byte, format Format) (*domain.Scenario, error) {
	switch format {
	case FormatInline:
		return parseInline(data)
	case FormatProse:
		return parseProse(data)
	}
	return nil, &ParseError{Message: fmt.Sprintf("unknown format %q", format), Err: ErrUnsupportedFormat}
}

// Overrides — значения из командной строки, перекрывающие config сценария.
type Overrides struct {
	BaseURL string
	Timeout time.Duration
}

// Apply применяет переопределения к сценарию.
func (o Overrides) Apply(sc *domain.Scenario) {
	if o.BaseURL != "" {
		sc.Config.BaseURL = o.BaseURL
	}
	if o.Timeout > 0 {
		sc.Config.Timeout = domain.Duration(o.Timeout)
	}
}

// Result — результат загрузки одного файла.
type Result struct {
	Path     string
	Scenario *domain.Scenario
	Err      error
}

// Options — параметры LoadAll.
type Options struct {
	Filter    Filter
	Overrides Overrides
}

// LoadAll находит и загружает все сценарии по путям.
//
// Ошибка разбора одного файла не мешает загрузке остальных: она
// возвращается в Result.Err. Сценарии, не прошедшие фильтр, отбрасываются.
// Ошибка возвращается только если путь не удалось прочитать.
func LoadAll(paths []string, opts Options) ([]Result, error) {
	files, err := DiscoverAll(paths)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(files))
	for _, path := range files {
		sc, err := Load(path)
		if err != nil {
			var pe *ParseError
			if !errors.As(err, &pe) {
				return nil, err
			}
			results = append(results, Result{Path: path, Err: err})
			continue
		}

		if !opts.Filter.Match(sc) {
			continue
		}
		opts.Overrides.Apply(sc)
		results = append(results, Result{Path: path, Scenario: sc})
	}

	return results, nil
}

// Failed возвращает результаты с ошибками загрузки.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
