package loader

import (
	"errors"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Checkpoint/internal/domain"
)

const (
	frontMatterDelim = "---"
	fenceMarker      = "```"
	fenceInfo        = "yaml scenario"
)

// frontMatter — верхнеуровневые поля Markdown сценария.
type frontMatter struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Tags        []string       `yaml:"tags"`
	Config      domain.Config  `yaml:"config"`
	Vars        map[string]any `yaml:"vars"`

	// Steps объявлен только чтобы выдать понятную ошибку.
	Steps yaml.Node `yaml:"steps"`
}

// scenarioBlock — содержимое одного блока ```yaml scenario.
type scenarioBlock struct {
	Steps  *[]domain.Step `yaml:"steps"`
	Config *blockConfig   `yaml:"config"`
}

// blockConfig — config блока; nil поля не переопределяют front matter.
type blockConfig struct {
	BaseURL           *string           `yaml:"base_url"`
	Headers           map[string]string `yaml:"headers"`
	Timeout           *domain.Duration  `yaml:"timeout"`
	ContinueOnFailure *bool             `yaml:"continue_on_failure"`
}

// fencedBlock — блок сценария и номер строки открывающего fence (с 1).
type fencedBlock struct {
	line    int
	content string
}

// stepOrigin — откуда пришёл шаг (для сообщений об ошибках).
type stepOrigin struct {
	block int
	line  int
}

// parseProse разбирает Markdown сценарий.
//
// Формат:
//
//	---
//	name: checkout flow
//	vars: {...}
//	---
//	Произвольный текст.
//	```yaml scenario
//	steps:
//	  - name: ...
//	```
func parseProse(data []byte) (*domain.Scenario, error) {
	lines := splitLines(string(data))

	fmText, bodyStart, err := extractFrontMatter(lines)
	if err != nil {
		return nil, err
	}

	var fm frontMatter
	if err := decodeStrict([]byte(fmText), &fm); err != nil && !errors.Is(err, io.EOF) {
		return nil, yamlError(err, 1, 0)
	}
	if fm.Steps.Kind != 0 {
		return nil, &ParseError{
			Line:    1 + fm.Steps.Line,
			Field:   "steps",
			Message: "steps must be declared in yaml scenario blocks, not in front matter",
			Err:     ErrStepsInFrontMatter,
		}
	}

	blocks, err := extractBlocks(lines, bodyStart)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, &ParseError{Message: "no ```yaml scenario blocks found", Err: ErrNoScenarioBlocks}
	}

	sc := &domain.Scenario{
		Name:        fm.Name,
		Description: fm.Description,
		Tags:        fm.Tags,
		Config:      fm.Config,
		Vars:        fm.Vars,
	}

	var origins []stepOrigin
	for i, b := range blocks {
		blockNum := i + 1

		var parsed scenarioBlock
		if err := decodeStrict([]byte(b.content), &parsed); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, blockWithoutSteps(b, blockNum)
			}
			return nil, yamlError(err, b.line, blockNum)
		}
		if parsed.Steps == nil {
			return nil, blockWithoutSteps(b, blockNum)
		}

		for range *parsed.Steps {
			origins = append(origins, stepOrigin{block: blockNum, line: b.line})
		}
		sc.Steps = append(sc.Steps, *parsed.Steps...)

		if parsed.Config != nil {
			mergeConfig(&sc.Config, parsed.Config)
		}
	}

	if err := validate(sc, origins); err != nil {
		return nil, err
	}
	return sc, nil
}

func blockWithoutSteps(b fencedBlock, blockNum int) *ParseError {
	return &ParseError{
		Line:    b.line,
		Block:   blockNum,
		Field:   "steps",
		Message: "yaml scenario block must contain steps",
		Err:     ErrBlockWithoutSteps,
	}
}

// mergeConfig переносит явно заданные поля config блока; заголовки сливаются по ключам.
func mergeConfig(dst *domain.Config, src *blockConfig) {
	if src.BaseURL != nil {
		dst.BaseURL = *src.BaseURL
	}
	if len(src.Headers) > 0 {
		if dst.Headers == nil {
			dst.Headers = make(map[string]string, len(src.Headers))
		}
		for k, v := range src.Headers {
			dst.Headers[k] = v
		}
	}
	if src.Timeout != nil {
		dst.Timeout = *src.Timeout
	}
	if src.ContinueOnFailure != nil {
		dst.ContinueOnFailure = *src.ContinueOnFailure
	}
}

// extractFrontMatter возвращает YAML между маркерами "---"
// и индекс первой строки после закрывающего маркера.
func extractFrontMatter(lines []string) (string, int, error) {
	if len(lines) == 0 || strings.TrimSpace(strings.TrimPrefix(lines[0], "\uFEFF")) != frontMatterDelim {
		return "", 0, &ParseError{Line: 1, Message: "markdown scenario must start with '---'", Err: ErrMissingFrontMatter}
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontMatterDelim {
			return strings.Join(lines[1:i], "\n"), i + 1, nil
		}
	}

	return "", 0, &ParseError{Line: 1, Message: "closing '---' for front matter not found", Err: ErrUnterminatedFrontMatter}
}

// extractBlocks находит блоки ```yaml scenario в порядке документа.
//
// Содержимое прочих fenced блоков пропускается: пример ```yaml scenario
// внутри ````markdown не является шагом. Блок закрывается строкой
// из одних backtick не короче открывающей.
func extractBlocks(lines []string, from int) ([]fencedBlock, error) {
	var (
		blocks   []fencedBlock
		inBlock  bool
		inOther  bool
		fenceLen int
		start    int
		content  []string
	)

	for i := from; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])

		switch {
		case inOther:
			if isClosingFence(trimmed, fenceLen) {
				inOther = false
			}

		case inBlock:
			if isClosingFence(trimmed, fenceLen) {
				blocks = append(blocks, fencedBlock{line: start, content: strings.Join(content, "\n")})
				inBlock = false
				continue
			}
			content = append(content, lines[i])

		default:
			n := fenceLength(trimmed)
			if n == 0 {
				continue
			}
			fenceLen = n
			if isScenarioFence(trimmed) {
				inBlock = true
				start = i + 1
				content = content[:0]
				continue
			}
			inOther = true
		}
	}

	if inBlock {
		return nil, &ParseError{
			Line:    start,
			Block:   len(blocks) + 1,
			Message: "```yaml scenario block is never closed",
			Err:     ErrUnterminatedFence,
		}
	}
	return blocks, nil
}

// fenceLength возвращает длину открывающей последовательности backtick (0 — не fence).
func fenceLength(trimmed string) int {
	n := len(trimmed) - len(strings.TrimLeft(trimmed, "`"))
	if n < len(fenceMarker) {
		return 0
	}
	return n
}

func isClosingFence(trimmed string, openLen int) bool {
	n := fenceLength(trimmed)
	return n >= openLen && n == len(trimmed)
}

// isScenarioFence распознаёт "```yaml scenario", "``` yaml Scenario" и т.п.
func isScenarioFence(trimmed string) bool {
	n := fenceLength(trimmed)
	if n == 0 {
		return false
	}
	info := strings.ToLower(strings.TrimSpace(trimmed[n:]))
	return strings.Join(strings.Fields(info), " ") == fenceInfo
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}
