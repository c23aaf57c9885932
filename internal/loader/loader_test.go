package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const inlineScenario = `name: create and fetch
description: two step flow
tags: [smoke, items]
config:
  base_url: http://localhost:8080
  timeout: 5
  headers:
    Authorization: Bearer {{ token }}
vars:
  token: abc
steps:
  - id: create
    name: create item
    request:
      method: post
      url: /items
      body:
        name: widget
    expect:
      status: 201
    save:
      item_id: id
  - name: fetch item
    request:
      url: /items/{{ steps.create.outputs.id }}
    expect:
      status: 200
      json:
        id: "{{ item_id }}"
`

const proseScenario = "---\n" + // 1
	"name: checkout\n" + // 2
	"vars:\n" + // 3
	"  sku: abc\n" + // 4
	"config:\n" + // 5
	"  base_url: http://example.test\n" + // 6
	"  timeout: 10\n" + // 7
	"---\n" + // 8
	"\n" + // 9
	"# Checkout\n" + // 10
	"\n" + // 11
	"```yaml scenario\n" + // 12
	"steps:\n" + // 13
	"  - id: create\n" + // 14
	"    name: create item\n" + // 15
	"    request:\n" + // 16
	"      method: post\n" + // 17
	"      url: /items\n" + // 18
	"    expect:\n" + // 19
	"      status: 201\n" + // 20
	"```\n" + // 21
	"\n" + // 22
	"Then fetch it.\n" + // 23
	"\n" + // 24
	"``` yaml Scenario\n" + // 25
	"config:\n" + // 26
	"  headers:\n" + // 27
	"    X-Trace: \"1\"\n" + // 28
	"steps:\n" + // 29
	"  - name: fetch item\n" + // 30
	"    request:\n" + // 31
	"      url: /items/{{ steps.create.outputs.id }}\n" + // 32
	"```\n" // 33

func TestParse_Inline(t *testing.T) {
	sc, err := Parse([]byte(inlineScenario), FormatInline)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if sc.Name != "create and fetch" {
		t.Errorf("Name = %q", sc.Name)
	}
	if len(sc.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(sc.Steps))
	}
	if sc.Steps[0].Request.Method != "POST" {
		t.Errorf("method should be upper-cased, got %q", sc.Steps[0].Request.Method)
	}
	if sc.Steps[1].Request.Method != "GET" {
		t.Errorf("method should default to GET, got %q", sc.Steps[1].Request.Method)
	}
	if sc.Config.EffectiveTimeout() != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", sc.Config.EffectiveTimeout())
	}
	if sc.Steps[0].Expect.Status == nil || *sc.Steps[0].Expect.Status != 201 {
		t.Errorf("status = %v, want 201", sc.Steps[0].Expect.Status)
	}
	if sc.Steps[0].Save["item_id"] != "id" {
		t.Errorf("save = %v", sc.Steps[0].Save)
	}
	if !sc.HasTag("SMOKE") {
		t.Error("HasTag should be case-insensitive")
	}
	if sc.Steps[1].Expect.Status == nil || sc.Steps[1].Expect.Contains != nil {
		t.Error("unexpected expectation shape for step 2")
	}
}

func TestParse_Prose(t *testing.T) {
	sc, err := Parse([]byte(proseScenario), FormatProse)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if sc.Name != "checkout" {
		t.Errorf("Name = %q", sc.Name)
	}
	if len(sc.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(sc.Steps))
	}

	// Порядок шагов совпадает с порядком блоков в документе.
	if sc.Steps[0].ID != "create" || sc.Steps[1].Name != "fetch item" {
		t.Errorf("steps out of order: %q, %q", sc.Steps[0].Name, sc.Steps[1].Name)
	}
	if sc.Vars["sku"] != "abc" {
		t.Errorf("vars = %v", sc.Vars)
	}
	if sc.Config.BaseURL != "http://example.test" {
		t.Errorf("base_url = %q", sc.Config.BaseURL)
	}
	if sc.Config.EffectiveTimeout() != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", sc.Config.EffectiveTimeout())
	}
	if sc.Config.Headers["X-Trace"] != "1" {
		t.Errorf("block config headers should be merged, got %v", sc.Config.Headers)
	}
}

func TestParse_ProseSkipsOtherFences(t *testing.T) {
	src := "---\n" +
		"name: docs\n" +
		"---\n" +
		"\n" +
		"Write steps like this:\n" +
		"\n" +
		"````markdown\n" +
		"```yaml scenario\n" +
		"steps:\n" +
		"  - name: example only\n" +
		"    request:\n" +
		"      url: /example\n" +
		"```\n" +
		"````\n" +
		"\n" +
		"```bash\n" +
		"curl /health\n" +
		"```\n" +
		"\n" +
		"```yaml scenario\n" +
		"steps:\n" +
		"  - name: real step\n" +
		"    request:\n" +
		"      url: /health\n" +
		"```\n"

	sc, err := Parse([]byte(src), FormatProse)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(sc.Steps) != 1 {
		t.Fatalf("len(Steps) = %d, want 1", len(sc.Steps))
	}
	if sc.Steps[0].Name != "real step" {
		t.Errorf("step = %q, want real step", sc.Steps[0].Name)
	}
}

func TestParse_IncludeAndCondition(t *testing.T) {
	input := `name: composed
steps:
  - id: login
    include:
      path: ./login.yaml
      vars:
        user: admin
    save:
      token: vars.token
  - name: cleanup
    condition: "{{ cleanup }}"
    request:
      method: delete
      url: /items
  - name: events
    request:
      url: /events
    expect:
      sse:
        has_events: [done]
        has_no_events: [error]
`
	sc, err := Parse([]byte(input), FormatInline)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	inc := sc.Steps[0].Include
	if inc == nil || inc.Path != "./login.yaml" || inc.Vars["user"] != "admin" {
		t.Errorf("Include = %+v", inc)
	}
	if sc.Steps[0].Request.Method != "" {
		t.Errorf("include step method = %q, want empty", sc.Steps[0].Request.Method)
	}
	if sc.Steps[1].Condition != "{{ cleanup }}" {
		t.Errorf("Condition = %q", sc.Steps[1].Condition)
	}
	if sc.Steps[1].Request.Method != "DELETE" {
		t.Errorf("Method = %q, want DELETE", sc.Steps[1].Request.Method)
	}
	sse := sc.Steps[2].Expect.SSE
	if sse == nil || len(sse.Events) != 0 || len(sse.HasEvents) != 1 || len(sse.HasNoEvents) != 1 {
		t.Errorf("SSE = %+v", sse)
	}
}

func TestParse_ProseAndInlineEquivalent(t *testing.T) {
	inline := `name: same
vars:
  a: 1
steps:
  - name: one
    request:
      url: http://x/1
  - name: two
    request:
      url: http://x/2
`
	prose := "---\nname: same\nvars:\n  a: 1\n---\n" +
		"```yaml scenario\nsteps:\n  - name: one\n    request:\n      url: http://x/1\n```\n" +
		"text\n" +
		"```yaml scenario\nsteps:\n  - name: two\n    request:\n      url: http://x/2\n```\n"

	a, err := Parse([]byte(inline), FormatInline)
	if err != nil {
		t.Fatalf("inline: %v", err)
	}
	b, err := Parse([]byte(prose), FormatProse)
	if err != nil {
		t.Fatalf("prose: %v", err)
	}

	if a.Name != b.Name || len(a.Steps) != len(b.Steps) {
		t.Fatalf("scenarios differ: %+v vs %+v", a, b)
	}
	for i := range a.Steps {
		if a.Steps[i].Name != b.Steps[i].Name || a.Steps[i].Request.URL != b.Steps[i].Request.URL {
			t.Errorf("step %d differs", i)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		input   string
		wantErr error
		line    int
	}{
		{
			name:    "missing name",
			format:  FormatInline,
			input:   "steps:\n  - request:\n      url: /x\n",
			wantErr: ErrMissingName,
		},
		{
			name:    "no steps",
			format:  FormatInline,
			input:   "name: empty\n",
			wantErr: ErrNoSteps,
		},
		{
			name:    "unknown field",
			format:  FormatInline,
			input:   "name: x\nstepz: []\n",
			wantErr: ErrInvalidYAML,
			line:    2,
		},
		{
			name:    "duplicate ids",
			format:  FormatInline,
			input:   "name: x\nsteps:\n  - id: a\n    request: {url: /1}\n  - id: a\n    request: {url: /2}\n",
			wantErr: ErrDuplicateStepID,
		},
		{
			name:    "unknown step reference",
			format:  FormatInline,
			input:   "name: x\nsteps:\n  - request:\n      url: /items/{{ steps.nope.outputs.id }}\n",
			wantErr: ErrUnknownStepRef,
		},
		{
			name:    "reference in expectation",
			format:  FormatInline,
			input:   "name: x\nsteps:\n  - request: {url: /1}\n    expect:\n      json:\n        id: \"{{ steps.ghost.outputs.id }}\"\n",
			wantErr: ErrUnknownStepRef,
		},
		{
			name:    "missing url",
			format:  FormatInline,
			input:   "name: x\nsteps:\n  - name: a\n    request:\n      method: GET\n",
			wantErr: ErrMissingURL,
		},
		{
			name:    "bad method",
			format:  FormatInline,
			input:   "name: x\nsteps:\n  - request: {method: FETCH, url: /1}\n",
			wantErr: ErrInvalidMethod,
		},
		{
			name:    "include without path",
			format:  FormatInline,
			input:   "name: x\nsteps:\n  - include: {vars: {a: 1}}\n",
			wantErr: ErrInvalidInclude,
		},
		{
			name:    "include with request",
			format:  FormatInline,
			input:   "name: x\nsteps:\n  - include: {path: login.yaml}\n    request: {url: /1}\n",
			wantErr: ErrInvalidInclude,
		},
		{
			name:    "include with expectations",
			format:  FormatInline,
			input:   "name: x\nsteps:\n  - include: {path: login.yaml}\n    expect: {status: 200}\n",
			wantErr: ErrInvalidInclude,
		},
		{
			name:    "empty sse expectation",
			format:  FormatInline,
			input:   "name: x\nsteps:\n  - request: {url: /1}\n    expect:\n      sse: {timeout: 1s}\n",
			wantErr: ErrInvalidExpectation,
		},
		{
			name:    "event both required and forbidden",
			format:  FormatInline,
			input:   "name: x\nsteps:\n  - request: {url: /1}\n    expect:\n      sse: {has_events: [done], has_no_events: [done]}\n",
			wantErr: ErrInvalidExpectation,
		},
		{
			name:    "ignore fields without json_eq",
			format:  FormatInline,
			input:   "name: x\nsteps:\n  - request: {url: /1}\n    expect:\n      json_ignore_fields: [id]\n",
			wantErr: ErrInvalidExpectation,
		},
		{
			name:    "reference in condition",
			format:  FormatInline,
			input:   "name: x\nsteps:\n  - request: {url: /1}\n    condition: \"{{ steps.ghost.outputs.ok }}\"\n",
			wantErr: ErrUnknownStepRef,
		},
		{
			name:    "bad duration",
			format:  FormatInline,
			input:   "name: x\nconfig:\n  timeout: soon\nsteps:\n  - request: {url: /1}\n",
			wantErr: ErrInvalidYAML,
			line:    3,
		},
		{
			name:    "empty file",
			format:  FormatInline,
			input:   "",
			wantErr: ErrMissingName,
		},
		{
			name:    "no front matter",
			format:  FormatProse,
			input:   "# Title\n```yaml scenario\nsteps: []\n```\n",
			wantErr: ErrMissingFrontMatter,
			line:    1,
		},
		{
			name:    "unterminated front matter",
			format:  FormatProse,
			input:   "---\nname: x\n",
			wantErr: ErrUnterminatedFrontMatter,
		},
		{
			name:    "steps in front matter",
			format:  FormatProse,
			input:   "---\nname: x\nsteps: []\n---\n```yaml scenario\nsteps: []\n```\n",
			wantErr: ErrStepsInFrontMatter,
			line:    3,
		},
		{
			name:    "no blocks",
			format:  FormatProse,
			input:   "---\nname: x\n---\njust text\n```yaml\nsteps: []\n```\n",
			wantErr: ErrNoScenarioBlocks,
		},
		{
			name:    "unterminated fence",
			format:  FormatProse,
			input:   "---\nname: x\n---\n\n```yaml scenario\nsteps: []\n",
			wantErr: ErrUnterminatedFence,
			line:    5,
		},
		{
			name:    "block without steps",
			format:  FormatProse,
			input:   "---\nname: x\n---\n```yaml scenario\nconfig:\n  timeout: 3\n```\n",
			wantErr: ErrBlockWithoutSteps,
			line:    4,
		},
		{
			name:    "empty block",
			format:  FormatProse,
			input:   "---\nname: x\n---\n```yaml scenario\n```\n",
			wantErr: ErrBlockWithoutSteps,
			line:    4,
		},
		{
			name:    "unknown field in block",
			format:  FormatProse,
			input:   "---\nname: x\n---\ntext\n```yaml scenario\nsteps: []\nextra: 1\n```\n",
			wantErr: ErrInvalidYAML,
			line:    7,
		},
		{
			name:    "duplicate ids across blocks",
			format:  FormatProse,
			input:   "---\nname: x\n---\n```yaml scenario\nsteps:\n  - id: a\n    request: {url: /1}\n```\n```yaml scenario\nsteps:\n  - id: a\n    request: {url: /2}\n```\n",
			wantErr: ErrDuplicateStepID,
			line:    9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), tt.format)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error should be *ParseError, got %T", err)
			}
			if tt.line > 0 && pe.Line != tt.line {
				t.Errorf("Line = %d, want %d (%v)", pe.Line, tt.line, err)
			}
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_SetsSourceAndPath(t *testing.T) {
	dir := t.TempDir()

	good := writeFile(t, dir, "good.yaml", inlineScenario)
	sc, err := Load(good)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sc.Source != good {
		t.Errorf("Source = %q, want %q", sc.Source, good)
	}

	bad := writeFile(t, dir, "bad.yml", "name: x\nstepz: 1\n")
	_, err = Load(bad)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Path != bad {
		t.Errorf("Path = %q, want %q", pe.Path, bad)
	}
	if !strings.HasPrefix(pe.Error(), bad+":2") {
		t.Errorf("Error() = %q, want path:line prefix", pe.Error())
	}

	if _, err := Load(filepath.Join(dir, "notes.txt")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", inlineScenario)
	writeFile(t, dir, "a.scenario.md", proseScenario)
	writeFile(t, dir, "nested/c.yml", inlineScenario)
	writeFile(t, dir, "README.md", "# not a scenario")
	writeFile(t, dir, ".hidden/d.yaml", inlineScenario)

	files, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	want := []string{
		filepath.Join(dir, "a.scenario.md"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "nested", "c.yml"),
	}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}

	single, err := Discover(want[1])
	if err != nil || len(single) != 1 {
		t.Errorf("Discover(file) = %v, %v", single, err)
	}

	if _, err := Discover(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestFilter_Match(t *testing.T) {
	sc, err := Parse([]byte(inlineScenario), FormatInline)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", Filter{}, true},
		{"name substring", Filter{Name: "AND FETCH"}, true},
		{"name mismatch", Filter{Name: "delete"}, false},
		{"tag", Filter{Tags: []string{"items"}}, true},
		{"tag mismatch", Filter{Tags: []string{"slow"}}, false},
		{"name and tag", Filter{Name: "create", Tags: []string{"slow", "smoke"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(sc); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", inlineScenario)
	writeFile(t, dir, "b.scenario.md", proseScenario)
	writeFile(t, dir, "c.yaml", "name: broken\nsteps: [\n")

	results, err := LoadAll([]string{dir}, Options{
		Overrides: Overrides{BaseURL: "http://override", Timeout: 2 * time.Second},
	})
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}

	failed := Failed(results)
	if len(failed) != 1 || filepath.Base(failed[0].Path) != "c.yaml" {
		t.Fatalf("failed = %+v", failed)
	}

	for _, r := range results {
		if r.Scenario == nil {
			continue
		}
		if r.Scenario.Config.BaseURL != "http://override" {
			t.Errorf("%s: base_url override not applied", r.Path)
		}
		if r.Scenario.Config.EffectiveTimeout() != 2*time.Second {
			t.Errorf("%s: timeout override not applied", r.Path)
		}
	}

	filtered, err := LoadAll([]string{dir}, Options{Filter: Filter{Name: "checkout"}})
	if err != nil {
		t.Fatal(err)
	}
	// Ошибки загрузки не фильтруются: имя сценария неизвестно.
	if len(filtered) != 2 {
		t.Errorf("len(filtered) = %d, want 2", len(filtered))
	}

	if _, err := LoadAll([]string{filepath.Join(dir, "nope")}, Options{}); err == nil {
		t.Error("expected error for missing path")
	}
}
