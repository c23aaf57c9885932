package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Checkpoint/internal/domain"
	"github.com/shaiso/Checkpoint/internal/loader"
	"github.com/shaiso/Checkpoint/internal/steps"
	"github.com/shaiso/Checkpoint/internal/telemetry"
)

func newExecutor() *Executor {
	return New(Config{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: telemetry.NewMetrics(),
	})
}

func mustParse(t *testing.T, baseURL, src string) *domain.Scenario {
	t.Helper()
	sc, err := loader.Parse([]byte(src), loader.FormatInline)
	if err != nil {
		t.Fatalf("parse scenario: %v", err)
	}
	loader.Overrides{BaseURL: baseURL}.Apply(sc)
	return sc
}

// itemsServer — минимальный CRUD API: POST /items, GET /items/{id}.
func itemsServer(t *testing.T, createStatus int) *httptest.Server {
	t.Helper()

	var (
		mu    sync.Mutex
		items = map[string]map[string]any{}
		next  int
	)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /items", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		next++
		body["id"] = next
		items[fmt.Sprint(next)] = body
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(createStatus)
		json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		item, ok := items[r.PathValue("id")]
		mu.Unlock()
		if !ok {
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"title":"not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(item)
	})
	mux.HandleFunc("GET /list", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items": [1, 2, 3], "meta": {"total": 3}}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

const createAndFetch = `
name: create and fetch
steps:
  - id: create
    name: create item
    request:
      method: POST
      url: /items
      body:
        name: widget
        price: 10
    expect:
      status: 201
      json:
        name: widget
    save:
      item_id: id
  - name: fetch item
    request:
      url: /items/{{ item_id }}
    expect:
      status: 200
      json:
        id: "{{ steps.create.outputs.id }}"
        name: widget
`

func TestExecutor_TwoStepPass(t *testing.T) {
	server := itemsServer(t, http.StatusCreated)
	sc := mustParse(t, server.URL, createAndFetch)

	result := newExecutor().Run(context.Background(), sc)

	if !result.Success {
		t.Fatalf("expected success, got steps %+v", result.Steps)
	}
	if result.State != domain.ScenarioStateCompleted {
		t.Errorf("state = %s, want COMPLETED", result.State)
	}
	if result.Aborted {
		t.Error("scenario should not be aborted")
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(result.Steps))
	}
	if got := result.Steps[1].Request.URL; got != server.URL+"/items/1" {
		t.Errorf("second request URL = %q, want %q", got, server.URL+"/items/1")
	}
	if result.Steps[0].Request.Body == "" {
		t.Error("request body should be captured")
	}
}

func TestExecutor_StatusMismatch(t *testing.T) {
	server := itemsServer(t, http.StatusOK)
	sc := mustParse(t, server.URL, createAndFetch)

	result := newExecutor().Run(context.Background(), sc)

	if result.Success {
		t.Fatal("expected failure")
	}

	first := result.Steps[0]
	if first.Status != domain.StepStatusFailed {
		t.Errorf("first step status = %s, want FAILED", first.Status)
	}
	if len(first.Mismatches) != 1 {
		t.Fatalf("expected exactly one mismatch, got %+v", first.Mismatches)
	}
	m := first.Mismatches[0]
	if m.Kind != domain.AssertStatus || m.Expected != 201 || m.Actual != 200 {
		t.Errorf("unexpected mismatch %+v", m)
	}
	if first.Error == nil || first.Error.Kind != domain.ErrorKindAssertion {
		t.Errorf("expected AssertionFailure, got %+v", first.Error)
	}

	second := result.Steps[1]
	if second.Status != domain.StepStatusSkipped {
		t.Errorf("second step status = %s, want SKIPPED", second.Status)
	}
	if second.Error == nil || second.Error.Kind != domain.ErrorKindSkipped {
		t.Errorf("expected SkippedDueToPriorFailure, got %+v", second.Error)
	}
	if !result.Aborted {
		t.Error("scenario should be aborted")
	}
}

func TestExecutor_ContinueOnFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	src := `
name: keep going
config:
  continue_on_failure: %t
steps:
  - name: one
    request: {url: /a}
    expect: {status: 200}
  - name: two
    request: {url: /b}
    expect: {status: 200}
  - name: three
    request: {url: /c}
    expect: {status: 500}
`
	tests := []struct {
		name      string
		cont      bool
		wantCalls int32
		statuses  []domain.StepStatus
	}{
		{
			name:      "abort",
			cont:      false,
			wantCalls: 1,
			statuses:  []domain.StepStatus{domain.StepStatusFailed, domain.StepStatusSkipped, domain.StepStatusSkipped},
		},
		{
			name:      "continue",
			cont:      true,
			wantCalls: 3,
			statuses:  []domain.StepStatus{domain.StepStatusFailed, domain.StepStatusFailed, domain.StepStatusPassed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls.Store(0)
			sc := mustParse(t, server.URL, fmt.Sprintf(src, tt.cont))

			result := newExecutor().Run(context.Background(), sc)

			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("requests sent = %d, want %d", got, tt.wantCalls)
			}
			if result.Success {
				t.Error("scenario should fail")
			}
			for i, want := range tt.statuses {
				if got := result.Steps[i].Status; got != want {
					t.Errorf("step %d status = %s, want %s", i+1, got, want)
				}
			}
			if result.Aborted == tt.cont {
				t.Errorf("aborted = %v, want %v", result.Aborted, !tt.cont)
			}
		})
	}
}

func TestExecutor_UnresolvedVariable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	sc := mustParse(t, server.URL, `
name: unresolved
steps:
  - name: uses missing var
    request:
      url: /items/{{ missing }}
`)

	result := newExecutor().Run(context.Background(), sc)

	if calls.Load() != 0 {
		t.Error("request must not be sent when a placeholder is unresolved")
	}
	step := result.Steps[0]
	if step.Error == nil || step.Error.Kind != domain.ErrorKindUnresolvedVariable {
		t.Fatalf("expected UnresolvedVariable, got %+v", step.Error)
	}
	if !strings.Contains(step.Error.Message, "missing") {
		t.Errorf("error should name the variable, got %q", step.Error.Message)
	}
}

func TestExecutor_HeadersAndQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"auth":   r.Header.Get("Authorization"),
			"trace":  r.Header.Get("X-Trace"),
			"page":   r.URL.Query().Get("page"),
			"method": r.Method,
		})
	}))
	defer server.Close()

	sc := mustParse(t, server.URL, `
name: headers
vars:
  token: secret
  page: 3
config:
  headers:
    authorization: Bearer default
    X-Trace: base
steps:
  - name: merged
    request:
      url: /echo
      headers:
        Authorization: Bearer {{ token }}
      query:
        page: "{{ page }}"
    expect:
      json:
        auth: Bearer secret
        trace: base
        page: "3"
        method: GET
`)

	result := newExecutor().Run(context.Background(), sc)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Steps[0].Mismatches)
	}
}

func TestExecutor_JSONLengths(t *testing.T) {
	server := itemsServer(t, http.StatusCreated)

	tests := []struct {
		name    string
		length  int
		success bool
	}{
		{"match", 3, true},
		{"mismatch", 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := mustParse(t, server.URL, fmt.Sprintf(`
name: lengths
steps:
  - name: list
    request: {url: /list}
    expect:
      json_lengths:
        items: %d
`, tt.length))

			result := newExecutor().Run(context.Background(), sc)
			if result.Success != tt.success {
				t.Fatalf("success = %v, want %v", result.Success, tt.success)
			}
			if !tt.success {
				m := result.Steps[0].Mismatches[0]
				if m.Actual != 3 {
					t.Errorf("mismatch actual = %v, want 3", m.Actual)
				}
			}
		})
	}
}

func TestExecutor_SaveFailure(t *testing.T) {
	server := itemsServer(t, http.StatusCreated)
	sc := mustParse(t, server.URL, `
name: bad save
steps:
  - id: list
    name: list
    request: {url: /list}
    save:
      total: meta.total
      ghost: meta.ghost
  - name: next
    request: {url: "/items/{{ total }}"}
`)

	result := newExecutor().Run(context.Background(), sc)

	first := result.Steps[0]
	if first.Success {
		t.Fatal("step with unresolvable save path should fail")
	}
	if len(first.Mismatches) != 1 || first.Mismatches[0].Kind != domain.AssertSave {
		t.Errorf("expected one save mismatch, got %+v", first.Mismatches)
	}
	if result.Steps[1].Status != domain.StepStatusSkipped {
		t.Errorf("second step should be skipped, got %s", result.Steps[1].Status)
	}
}

func TestExecutor_ContainsRawBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("{\n  \"status\": \"ok\"\n}"))
	}))
	defer server.Close()

	tests := []struct {
		needle  string
		success bool
	}{
		{`"status": "ok"`, true},
		{`"status":"ok"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.needle, func(t *testing.T) {
			sc := mustParse(t, server.URL, `
name: contains
steps:
  - name: raw
    request: {url: /}
`)
			sc.Steps[0].Expect.Contains = []string{tt.needle}

			result := newExecutor().Run(context.Background(), sc)
			if result.Success != tt.success {
				t.Errorf("success = %v, want %v", result.Success, tt.success)
			}
		})
	}
}

func sseServer(t *testing.T, frames string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		io.WriteString(w, frames)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)
	return server
}

func TestExecutor_SSE(t *testing.T) {
	server := sseServer(t,
		"event: ping\ndata: noise\n\n"+
			"event: token\ndata: {\"value\": \"abc\"}\n\n"+
			": comment\n\n"+
			"event: ping\ndata: noise\n\n"+
			"event: done\ndata: [DONE]\n\n")

	sc := mustParse(t, server.URL, `
name: stream
steps:
  - id: chat
    name: stream tokens
    request: {url: /stream}
    expect:
      status: 200
      sse:
        timeout: 2s
        events:
          - event: token
            json: {value: abc}
          - event: done
            data: "[DONE]"
    save:
      tok: sse.token.0.value
  - name: use token
    request: {url: "/next?t={{ tok }}"}
    expect:
      sse:
        timeout: 1s
        events:
          - event: done
`)

	result := newExecutor().Run(context.Background(), sc)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Steps)
	}
	if got := result.Steps[1].Request.URL; !strings.HasSuffix(got, "/next?t=abc") {
		t.Errorf("saved SSE value not propagated, url = %q", got)
	}
}

func TestExecutor_SSETimeout(t *testing.T) {
	server := sseServer(t, "event: ping\ndata: noise\n\n")

	sc := mustParse(t, server.URL, `
name: stream timeout
steps:
  - name: wait for done
    request: {url: /stream}
    expect:
      sse:
        timeout: 200ms
        events:
          - event: done
`)

	start := time.Now()
	result := newExecutor().Run(context.Background(), sc)

	if time.Since(start) > 5*time.Second {
		t.Error("SSE wait should be bounded by its timeout")
	}
	step := result.Steps[0]
	if step.Error == nil || step.Error.Kind != domain.ErrorKindSSETimeout {
		t.Fatalf("expected SSETimeout, got %+v", step.Error)
	}
}

func TestExecutor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	transport := steps.TransportFunc(func(ctx context.Context, req *steps.Request) (*steps.Response, error) {
		cancel()
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", steps.ErrCancelled, ctx.Err())
	})
	exec := New(Config{
		Transport: transport,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	sc := mustParse(t, "http://example.test", `
name: cancelled
config:
  continue_on_failure: true
steps:
  - name: one
    request: {url: /a}
  - name: two
    request: {url: /b}
`)

	result := exec.Run(ctx, sc)

	if result.Steps[0].Error == nil || result.Steps[0].Error.Kind != domain.ErrorKindRequest {
		t.Errorf("current step should fail with RequestError, got %+v", result.Steps[0].Error)
	}
	if result.Steps[1].Status != domain.StepStatusSkipped {
		t.Errorf("remaining step should be skipped even with continue_on_failure, got %s", result.Steps[1].Status)
	}
}

func TestExecutor_TransportError(t *testing.T) {
	exec := New(Config{
		Transport: steps.TransportFunc(func(ctx context.Context, req *steps.Request) (*steps.Response, error) {
			return nil, fmt.Errorf("%w: connection refused", steps.ErrRequest)
		}),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	sc := mustParse(t, "http://example.test", `
name: refused
steps:
  - name: one
    request: {url: /a}
`)

	result := exec.Run(context.Background(), sc)
	if result.Steps[0].Error == nil || result.Steps[0].Error.Kind != domain.ErrorKindRequest {
		t.Errorf("expected RequestError, got %+v", result.Steps[0].Error)
	}
}

func TestPool_PreservesOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			time.Sleep(100 * time.Millisecond)
		}
	}))
	defer server.Close()

	var scenarios []*domain.Scenario
	for i, path := range []string{"/slow", "/fast", "/fast", "/slow"} {
		scenarios = append(scenarios, mustParse(t, server.URL, fmt.Sprintf(`
name: scenario-%d
steps:
  - name: call
    request: {url: %s}
    expect: {status: 200}
`, i, path)))
	}

	var seen atomic.Int32
	pool := NewPool(newExecutor(), 2)
	pool.OnResult = func(*domain.ScenarioResult) { seen.Add(1) }

	results := pool.Run(context.Background(), scenarios)

	if len(results) != len(scenarios) {
		t.Fatalf("expected %d results, got %d", len(scenarios), len(results))
	}
	for i, res := range results {
		if want := fmt.Sprintf("scenario-%d", i); res.Name != want {
			t.Errorf("results[%d] = %q, want %q", i, res.Name, want)
		}
		if !res.Success {
			t.Errorf("results[%d] should succeed", i)
		}
	}
	if seen.Load() != int32(len(scenarios)) {
		t.Errorf("OnResult called %d times", seen.Load())
	}
	if !domain.AllSucceeded(results) {
		t.Error("AllSucceeded should be true")
	}
}

func TestRunState(t *testing.T) {
	sc := &domain.Scenario{Name: "s", Steps: []domain.Step{{Name: "a"}}}
	state := NewRunState(sc)

	if state.State() != domain.ScenarioStateRunning {
		t.Fatalf("initial state = %s", state.State())
	}
	state.Abort(0)
	state.Abort(5)
	if at, ok := state.AbortedAt(); !ok || at != 0 {
		t.Errorf("AbortedAt = %d, %v; want 0, true", at, ok)
	}

	result := state.Complete()
	if result.State != domain.ScenarioStateCompleted || !result.Aborted {
		t.Errorf("unexpected result state %s aborted=%v", result.State, result.Aborted)
	}
	if result.Success {
		t.Error("scenario without recorded steps should not succeed")
	}
}

func TestExecutor_SavedIDMismatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /items", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"item-1","name":"widget"}`))
	})
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"item-2","name":"widget"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	sc := mustParse(t, server.URL, `
name: id round trip
steps:
  - name: create
    request:
      method: POST
      url: /items
      body: {name: widget}
    expect:
      status: 201
    save:
      item_id: id
  - name: fetch
    request:
      url: /items/{{ item_id }}
    expect:
      json:
        id: "{{ item_id }}"
`)

	result := newExecutor().Run(context.Background(), sc)
	if result.Success {
		t.Fatal("expected failure")
	}

	fetch := result.Steps[1]
	if got := fetch.Request.URL; got != server.URL+"/items/item-1" {
		t.Errorf("request URL = %q", got)
	}
	if len(fetch.Mismatches) != 1 {
		t.Fatalf("expected exactly one mismatch, got %+v", fetch.Mismatches)
	}
	m := fetch.Mismatches[0]
	if m.Kind != domain.AssertJSON || m.Target != "id" {
		t.Errorf("mismatch = %+v, want json on id", m)
	}
	if fmt.Sprint(m.Expected) != "item-1" || fmt.Sprint(m.Actual) != "item-2" {
		t.Errorf("expected/actual = %v/%v, want item-1/item-2", m.Expected, m.Actual)
	}
	if fetch.Error == nil || fetch.Error.Kind != domain.ErrorKindAssertion {
		t.Errorf("error = %+v, want AssertionFailure", fetch.Error)
	}
}

func TestExecutor_Condition(t *testing.T) {
	server := itemsServer(t, http.StatusCreated)

	sc := mustParse(t, server.URL, `
name: conditional
vars:
  cleanup: false
  enabled: " TRUE "
steps:
  - name: cleanup
    condition: "{{ cleanup }}"
    request: {method: DELETE, url: /items}
  - name: list
    condition: "{{ enabled }}"
    request: {url: /list}
    expect: {status: 200}
  - name: unknown flag
    condition: "{{ missing }}"
    request: {url: /list}
`)

	result := newExecutor().Run(context.Background(), sc)

	skipped := result.Steps[0]
	if skipped.Status != domain.StepStatusSkipped || !skipped.Success {
		t.Errorf("cleanup = %s success=%v, want SKIPPED success", skipped.Status, skipped.Success)
	}
	if skipped.Error != nil || !strings.Contains(skipped.SkipReason, "is false") {
		t.Errorf("skip reason = %q, error = %+v", skipped.SkipReason, skipped.Error)
	}
	if skipped.Request != nil {
		t.Error("skipped step should not send a request")
	}

	if result.Steps[1].Status != domain.StepStatusPassed {
		t.Errorf("list = %s, want PASSED", result.Steps[1].Status)
	}

	unknown := result.Steps[2]
	if unknown.Error == nil || unknown.Error.Kind != domain.ErrorKindUnresolvedVariable {
		t.Errorf("unknown flag error = %+v, want UnresolvedVariable", unknown.Error)
	}
	if result.Success {
		t.Error("scenario should fail on unresolved condition")
	}
}

func TestExecutor_JSONEq(t *testing.T) {
	server := itemsServer(t, http.StatusCreated)

	tests := []struct {
		name        string
		expect      string
		wantTargets []string
	}{
		{
			name: "equal with ignored fields",
			expect: `
      json_eq:
        items: [1, 2, 3]
      json_ignore_fields: [meta]`,
		},
		{
			name: "value and unexpected field",
			expect: `
      json_eq:
        items: [1, 2, "{{ third }}"]
        meta: {total: 4, page: 1}`,
			wantTargets: []string{"items.2", "meta.page", "meta.total"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := mustParse(t, server.URL, `
name: exact
vars:
  third: 4
steps:
  - name: list
    request: {url: /list}
    expect:`+tt.expect+"\n")

			result := newExecutor().Run(context.Background(), sc)
			step := result.Steps[0]

			if len(tt.wantTargets) == 0 {
				if !result.Success {
					t.Fatalf("expected success, got %+v", step.Mismatches)
				}
				return
			}
			if len(step.Mismatches) != len(tt.wantTargets) {
				t.Fatalf("mismatches = %+v, want targets %v", step.Mismatches, tt.wantTargets)
			}
			for i, m := range step.Mismatches {
				if m.Kind != domain.AssertJSONEq || m.Target != tt.wantTargets[i] {
					t.Errorf("mismatch[%d] = %+v, want json_eq on %s", i, m, tt.wantTargets[i])
				}
			}
		})
	}
}

func TestExecutor_SSEEventSaves(t *testing.T) {
	server := sseServer(t,
		"event: start\ndata: {\"session\": \"s-9\", \"model\": \"m1\"}\n\n"+
			"event: token\ndata: {\"value\": \"a\"}\n\n"+
			"event: done\ndata: {\"type\": \"done\", \"usage\": {\"total\": 2}}\n\n")

	sc := mustParse(t, server.URL, `
name: stream saves
vars:
  model: m1
steps:
  - name: chat
    request: {url: /stream}
    expect:
      sse:
        timeout: 2s
        has_events: [token]
        events:
          - event: start
            data_exists: [session]
            save: {session: session}
          - event: done
            data_eq: {type: done, usage: {total: 2}}
            save: {total: usage.total}
  - name: follow up
    request: {url: "/next?s={{ session }}&n={{ total }}"}
    expect:
      sse:
        timeout: 1s
        events:
          - event: start
            json: {model: "{{ model }}"}
`)

	result := newExecutor().Run(context.Background(), sc)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Steps)
	}
	if got := result.Steps[1].Request.URL; !strings.HasSuffix(got, "/next?n=2&s=s-9") && !strings.HasSuffix(got, "/next?s=s-9&n=2") {
		t.Errorf("event saves not propagated, url = %q", got)
	}
}

func TestExecutor_SSEForbiddenEvent(t *testing.T) {
	tests := []struct {
		name     string
		frames   string
		wantPass bool
	}{
		{
			name:     "forbidden event present",
			frames:   "event: start\ndata: 1\n\nevent: error\ndata: boom\n\n",
			wantPass: false,
		},
		{
			name:     "stream watched until timeout",
			frames:   "event: start\ndata: 1\n\nevent: done\ndata: ok\n\n",
			wantPass: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := sseServer(t, tt.frames)
			sc := mustParse(t, server.URL, `
name: no errors
steps:
  - name: watch
    request: {url: /stream}
    expect:
      sse:
        timeout: 200ms
        has_events: [start]
        has_no_events: [error]
`)

			result := newExecutor().Run(context.Background(), sc)
			if result.Success != tt.wantPass {
				t.Fatalf("success = %v, want %v (%+v)", result.Success, tt.wantPass, result.Steps[0])
			}
			if tt.wantPass {
				return
			}
			step := result.Steps[0]
			if step.Error == nil || step.Error.Kind != domain.ErrorKindAssertion {
				t.Errorf("error = %+v, want AssertionFailure", step.Error)
			}
			if len(step.Mismatches) != 1 || step.Mismatches[0].Target != "has_no_events" {
				t.Errorf("mismatches = %+v", step.Mismatches)
			}
		})
	}
}
