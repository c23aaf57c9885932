package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shaiso/Checkpoint/internal/domain"
)

// maxBodyPreview — сколько символов тела показывать в подробном режиме.
const maxBodyPreview = 500

// TextRenderer — человекочитаемый отчёт для терминала.
type TextRenderer struct {
	// Verbose — показывать запрос и ответ упавших шагов.
	Verbose bool
}

// NewTextRenderer создаёт TextRenderer.
func NewTextRenderer(verbose bool) *TextRenderer {
	return &TextRenderer{Verbose: verbose}
}

// Render выводит шаги каждого сценария и итоговую таблицу.
func (r *TextRenderer) Render(w io.Writer, results []*domain.ScenarioResult) error {
	ew := &errWriter{w: w}

	for _, res := range results {
		if res == nil {
			continue
		}
		r.scenario(ew, res)
	}
	if ew.err != nil {
		return ew.err
	}

	return r.summary(w, results)
}

func (r *TextRenderer) scenario(w *errWriter, res *domain.ScenarioResult) {
	verdict := "PASS"
	if !res.Success {
		verdict = "FAIL"
	}

	title := res.Name
	if res.Source != "" && res.Source != res.Name {
		title = fmt.Sprintf("%s (%s)", res.Name, res.Source)
	}
	w.printf("%s  %s  %s\n", verdict, title, formatDuration(res.Elapsed))

	if res.Error != nil {
		w.printf("  error: %s: %s\n", res.Error.Kind, res.Error.Message)
	}

	for _, s := range res.Steps {
		mark := "✓"
		switch s.Status {
		case domain.StepStatusFailed:
			mark = "✗"
		case domain.StepStatusSkipped:
			mark = "-"
		}

		line := fmt.Sprintf("  %s %d. %s", mark, s.Index+1, s.Name)
		if s.Response != nil {
			line += fmt.Sprintf("  [%d]", s.Response.Status)
		}
		if s.Status != domain.StepStatusSkipped {
			line += "  " + formatDuration(s.Elapsed)
		}
		w.printf("%s\n", line)

		if s.SkipReason != "" {
			w.printf("      %s\n", s.SkipReason)
		}
		if s.Error == nil {
			continue
		}
		if len(s.Mismatches) == 0 {
			w.printf("      %s: %s\n", s.Error.Kind, s.Error.Message)
		} else {
			w.printf("      %s\n", s.Error.Kind)
			for _, m := range s.Mismatches {
				w.printf("      - %s\n", m.Message)
			}
		}

		if r.Verbose && s.Status == domain.StepStatusFailed {
			r.exchange(w, s)
		}
	}
	w.printf("\n")
}

func (r *TextRenderer) exchange(w *errWriter, s domain.StepResult) {
	if req := s.Request; req != nil {
		w.printf("      request: %s %s\n", req.Method, req.URL)
		for _, k := range sortedKeys(req.Headers) {
			w.printf("        %s: %s\n", k, req.Headers[k])
		}
		if req.Body != "" {
			w.printf("        body: %s\n", truncate(req.Body))
		}
	}
	if resp := s.Response; resp != nil {
		w.printf("      response: %d\n", resp.Status)
		for _, k := range sortedKeys(resp.Headers) {
			w.printf("        %s: %s\n", k, resp.Headers[k])
		}
		if resp.Body != "" {
			w.printf("        body: %s\n", truncate(resp.Body))
		}
	}
}

func (r *TextRenderer) summary(w io.Writer, results []*domain.ScenarioResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	headers := []string{"SCENARIO", "RESULT", "PASSED", "FAILED", "SKIPPED", "DURATION"}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	var ok int
	for _, res := range results {
		if res == nil {
			continue
		}
		passed, failed, skipped := res.Counts()
		verdict := "FAIL"
		if res.Success {
			verdict = "PASS"
			ok++
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			res.Name, verdict, passed, failed, skipped, formatDuration(res.Elapsed))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d/%d scenarios passed\n", ok, len(results))
	return err
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxBodyPreview {
		return s
	}
	return string(runes[:maxBodyPreview]) + "...(truncated)"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// errWriter запоминает первую ошибку записи.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
