package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/shaiso/Checkpoint/internal/assert"
	"github.com/shaiso/Checkpoint/internal/domain"
	"github.com/shaiso/Checkpoint/internal/engine"
	"github.com/shaiso/Checkpoint/internal/loader"
	"github.com/shaiso/Checkpoint/internal/sse"
	"github.com/shaiso/Checkpoint/internal/steps"
	"github.com/shaiso/Checkpoint/internal/telemetry"
)

// ssePathPrefix — необязательный префикс save пути для SSE шагов ("sse.token.0").
const ssePathPrefix = "sse."

// Config — конфигурация Executor.
type Config struct {
	// Transport — отправка запросов (default: steps.HTTPTransport).
	Transport steps.Transport

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger

	// Metrics — Prometheus метрики (nil — без метрик).
	Metrics *telemetry.Metrics

	// LoadScenario — загрузка сценариев для include (default: loader.Load).
	LoadScenario func(path string) (*domain.Scenario, error)
}

// Executor — последовательное выполнение шагов сценария.
//
// Executor не хранит состояния между вызовами Run: каждый сценарий
// получает собственный RunState, поэтому один Executor можно
// использовать из нескольких горутин.
type Executor struct {
	transport steps.Transport
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	load      func(path string) (*domain.Scenario, error)
}

// New создаёт Executor.
func New(cfg Config) *Executor {
	if cfg.Transport == nil {
		cfg.Transport = steps.NewHTTPTransport(steps.DefaultHTTPConfig())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LoadScenario == nil {
		cfg.LoadScenario = loader.Load
	}

	return &Executor{
		transport: cfg.Transport,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		load:      cfg.LoadScenario,
	}
}

// Run выполняет сценарий и всегда возвращает полный ScenarioResult.
//
// Ошибки шагов фиксируются в StepResult. При отмене ctx текущий шаг
// получает RequestError, оставшиеся — SKIPPED.
func (e *Executor) Run(ctx context.Context, sc *domain.Scenario) *domain.ScenarioResult {
	result, _ := e.execute(ctx, sc)
	e.metrics.ObserveScenario(result.Success, result.Elapsed)
	return result
}

// execute выполняет шаги сценария и возвращает результат вместе
// с итоговым Scope. Метрики сценария пишет вызывающий.
func (e *Executor) execute(ctx context.Context, sc *domain.Scenario) (*domain.ScenarioResult, *engine.Scope) {
	state := NewRunState(sc)
	logger := telemetry.WithRunID(telemetry.WithScenario(e.logger, sc.Name, sc.Source), state.RunID.String())
	ctx = telemetry.WithLogger(ctx, logger)

	logger.Info("scenario started", "steps", len(sc.Steps))

	for i := range sc.Steps {
		if !state.IsRunning() {
			res := skippedStep(sc, i, state)
			e.metrics.ObserveStep(string(res.Status), 0)
			state.Record(res)
			continue
		}

		res := e.runStep(ctx, state, i)
		e.metrics.ObserveStep(string(res.Status), res.Elapsed)
		for _, m := range res.Mismatches {
			e.metrics.ObserveMismatch(string(m.Kind))
		}
		state.Record(res)

		if res.Success {
			continue
		}
		if ctx.Err() != nil || !sc.Config.ContinueOnFailure {
			state.Abort(i)
		}
	}

	result := state.Complete()

	passed, failed, skipped := result.Counts()
	logArgs := []any{
		"success", result.Success,
		"passed", passed,
		"failed", failed,
		"skipped", skipped,
		"elapsed", result.Elapsed,
	}
	if result.Success {
		logger.Info("scenario passed", logArgs...)
	} else {
		logger.Warn("scenario failed", logArgs...)
	}

	return result, state.Scope
}

// runStep выполняет один шаг: подстановка, запрос, проверки, save.
func (e *Executor) runStep(ctx context.Context, state *RunState, index int) domain.StepResult {
	sc := state.Scenario
	step := &sc.Steps[index]
	logger := telemetry.WithStep(telemetry.FromContext(ctx), index, step.Label(index))
	start := time.Now()

	res := domain.StepResult{
		Index: index,
		ID:    step.ID,
		Name:  step.Label(index),
	}
	fail := func(err *domain.StepError, mismatches []domain.Mismatch) domain.StepResult {
		res.Status = domain.StepStatusFailed
		res.Error = err
		res.Mismatches = mismatches
		res.Elapsed = time.Since(start)
		logger.Warn("step failed",
			"kind", err.Kind,
			"error", err.Message,
			"elapsed", res.Elapsed,
		)
		return res
	}

	// pass сохраняет save и outputs; extra — значения, уже извлечённые из потока.
	pass := func(outputs any, stream bool, extra map[string]any, extraMiss []domain.Mismatch) domain.StepResult {
		saved, mismatches := extractSaves(step.Save, outputs, stream)
		mismatches = append(mismatches, extraMiss...)
		if len(mismatches) > 0 {
			return fail(&domain.StepError{Kind: domain.ErrorKindAssertion, Message: summarize(mismatches)}, mismatches)
		}

		for name, value := range extra {
			state.Scope.Set(name, value)
		}
		for name, value := range saved {
			state.Scope.Set(name, value)
		}
		if step.ID != "" {
			state.Scope.AddStepOutputs(step.ID, outputs)
		}

		res.Status = domain.StepStatusPassed
		res.Success = true
		res.Elapsed = time.Since(start)
		logger.Debug("step passed",
			"saved", len(saved)+len(extra),
			"elapsed", res.Elapsed,
		)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(domain.NewStepError(domain.ErrorKindRequest, "run cancelled: %v", err), nil)
	}

	if step.Condition != "" {
		ok, err := evalCondition(step.Condition, state.Scope)
		if err != nil {
			return fail(domain.NewStepError(domain.ErrorKindUnresolvedVariable, "condition: %v", err), nil)
		}
		if !ok {
			res.Status = domain.StepStatusSkipped
			res.Success = true
			res.SkipReason = fmt.Sprintf("condition %q is false", step.Condition)
			logger.Debug("step skipped", "condition", step.Condition)
			return res
		}
	}

	if step.Include != nil {
		info, outputs, stepErr, mismatches := e.include(ctx, state, step)
		res.Request = info
		if stepErr != nil {
			return fail(stepErr, mismatches)
		}
		return pass(outputs, false, nil, nil)
	}

	req, exp, err := prepare(step, sc.Config, state.Scope)
	if err != nil {
		return fail(domain.NewStepError(domain.ErrorKindUnresolvedVariable, "%v", err), nil)
	}
	res.Request = requestInfo(req)

	logger.Debug("step started", "method", req.Method, "url", res.Request.URL)

	timeout := sc.Config.EffectiveTimeout()
	wait := timeout
	if exp.SSE != nil {
		if exp.SSE.Timeout > 0 {
			wait = time.Duration(exp.SSE.Timeout)
		}
		req.Stream = true
	}
	stepCtx, cancel := context.WithTimeout(ctx, max(timeout, wait))
	defer cancel()

	resp, err := e.transport.Do(stepCtx, req)
	if err != nil {
		return fail(domain.NewStepError(domain.ErrorKindRequest, "%v", err), nil)
	}

	captured := assert.NewResponse(resp)
	if exp.SSE != nil {
		body := resp.Stream
		if body == nil {
			body = io.NopCloser(bytes.NewReader(resp.Body))
		}
		captured.Stream = sse.Validate(stepCtx, body, *exp.SSE, wait)
	} else {
		resp.Close()
	}
	res.Response = responseInfo(captured)

	if ctx.Err() != nil {
		return fail(domain.NewStepError(domain.ErrorKindRequest, "run cancelled: %v", ctx.Err()), nil)
	}

	if mismatches := assert.Evaluate(assert.FromExpectation(exp), captured); len(mismatches) > 0 {
		kind := domain.ErrorKindAssertion
		if captured.Stream != nil && errors.Is(captured.Stream.Err, sse.ErrTimeout) {
			kind = domain.ErrorKindSSETimeout
		}
		return fail(&domain.StepError{Kind: kind, Message: summarize(mismatches)}, mismatches)
	}

	var (
		eventSaves map[string]any
		eventMiss  []domain.Mismatch
	)
	if captured.Stream != nil {
		var errs []sse.SaveError
		eventSaves, errs = captured.Stream.Saves(exp.SSE.Events)
		for _, se := range errs {
			eventMiss = append(eventMiss, domain.Mismatch{
				Kind:     domain.AssertSave,
				Target:   se.Name,
				Expected: se.Path,
				Actual:   "missing",
				Message:  fmt.Sprintf("save %s: %v", se.Name, se.Err),
			})
		}
	}

	logger.Debug("response checked", "status", captured.Status)
	return pass(captured.Outputs(), exp.SSE != nil, eventSaves, eventMiss)
}

// prepare подставляет переменные в запрос и ожидания шага.
func prepare(step *domain.Step, cfg domain.Config, scope *engine.Scope) (*steps.Request, domain.Expectation, error) {
	var exp domain.Expectation

	baseURL, err := engine.Render(cfg.BaseURL, scope)
	if err != nil {
		return nil, exp, fmt.Errorf("config.base_url: %w", err)
	}
	url, err := engine.Render(step.Request.URL, scope)
	if err != nil {
		return nil, exp, fmt.Errorf("request.url: %w", err)
	}

	headers, err := mergeHeaders(cfg.Headers, step.Request.Headers, scope)
	if err != nil {
		return nil, exp, err
	}

	query, err := engine.RenderStrings(step.Request.Query, scope)
	if err != nil {
		return nil, exp, fmt.Errorf("request.query: %w", err)
	}

	body, err := engine.RenderValue(step.Request.Body, scope)
	if err != nil {
		return nil, exp, fmt.Errorf("request.body: %w", err)
	}

	exp, err = expandExpectation(step.Expect, scope)
	if err != nil {
		return nil, exp, err
	}

	method := strings.ToUpper(step.Request.Method)
	if method == "" {
		method = http.MethodGet
	}

	return &steps.Request{
		Method:  method,
		URL:     steps.JoinURL(baseURL, url),
		Headers: headers,
		Query:   query,
		Body:    body,
	}, exp, nil
}

// mergeHeaders объединяет заголовки config и шага без учёта регистра имён.
// Заголовки шага имеют приоритет.
func mergeHeaders(base, own map[string]string, scope *engine.Scope) (map[string]string, error) {
	if len(base) == 0 && len(own) == 0 {
		return nil, nil
	}

	merged := make(map[string]string, len(base)+len(own))
	for _, src := range []struct {
		field   string
		headers map[string]string
	}{
		{"config.headers", base},
		{"request.headers", own},
	} {
		rendered, err := engine.RenderStrings(src.headers, scope)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.field, err)
		}
		for k, v := range rendered {
			merged[http.CanonicalHeaderKey(k)] = v
		}
	}
	return merged, nil
}

// expandExpectation подставляет переменные в ожидаемые значения.
func expandExpectation(exp domain.Expectation, scope *engine.Scope) (domain.Expectation, error) {
	out := exp

	if len(exp.JSON) > 0 {
		v, err := engine.RenderValue(exp.JSON, scope)
		if err != nil {
			return out, fmt.Errorf("expect.json: %w", err)
		}
		out.JSON = v.(map[string]any)
	}

	if exp.JSONEq != nil {
		v, err := engine.RenderValue(exp.JSONEq, scope)
		if err != nil {
			return out, fmt.Errorf("expect.json_eq: %w", err)
		}
		out.JSONEq = v
	}

	headers, err := engine.RenderStrings(exp.Headers, scope)
	if err != nil {
		return out, fmt.Errorf("expect.headers: %w", err)
	}
	out.Headers = headers

	if len(exp.Contains) > 0 {
		out.Contains = make([]string, len(exp.Contains))
		for i, s := range exp.Contains {
			if out.Contains[i], err = engine.Render(s, scope); err != nil {
				return out, fmt.Errorf("expect.contains[%d]: %w", i, err)
			}
		}
	}

	if exp.SSE != nil {
		expanded := *exp.SSE
		expanded.Events = make([]domain.EventMatcher, len(exp.SSE.Events))
		for i, m := range exp.SSE.Events {
			if expanded.Events[i], err = expandMatcher(m, scope); err != nil {
				return out, fmt.Errorf("expect.sse.events[%d]: %w", i, err)
			}
		}
		out.SSE = &expanded
	}

	return out, nil
}

func expandMatcher(m domain.EventMatcher, scope *engine.Scope) (domain.EventMatcher, error) {
	var err error
	if m.Event, err = engine.Render(m.Event, scope); err != nil {
		return m, err
	}
	if m.Data, err = engine.Render(m.Data, scope); err != nil {
		return m, err
	}
	if m.Contains, err = engine.Render(m.Contains, scope); err != nil {
		return m, err
	}
	if len(m.JSON) > 0 {
		v, err := engine.RenderValue(m.JSON, scope)
		if err != nil {
			return m, err
		}
		m.JSON = v.(map[string]any)
	}
	if m.DataEq != nil {
		if m.DataEq, err = engine.RenderValue(m.DataEq, scope); err != nil {
			return m, err
		}
	}
	return m, nil
}

// evalCondition подставляет переменные в condition. Шаг выполняется,
// если результат — true или строка "true" без учёта регистра и пробелов.
func evalCondition(cond string, scope *engine.Scope) (bool, error) {
	v, err := engine.RenderValue(cond, scope)
	if err != nil {
		return false, err
	}
	switch c := v.(type) {
	case bool:
		return c, nil
	case string:
		return strings.EqualFold(strings.TrimSpace(c), "true"), nil
	default:
		return false, nil
	}
}

// extractSaves вычисляет save пути. Все пути должны разрешиться,
// иначе ни одна переменная не сохраняется.
func extractSaves(save map[string]string, outputs any, stream bool) (map[string]any, []domain.Mismatch) {
	if len(save) == 0 {
		return nil, nil
	}

	saved := make(map[string]any, len(save))
	var mismatches []domain.Mismatch
	for _, name := range sortedNames(save) {
		path := save[name]
		if stream {
			path = strings.TrimPrefix(path, ssePathPrefix)
		}
		value, err := engine.Lookup(outputs, path)
		if err != nil {
			mismatches = append(mismatches, domain.Mismatch{
				Kind:     domain.AssertSave,
				Target:   name,
				Expected: save[name],
				Actual:   "missing",
				Message:  fmt.Sprintf("save %s: %v", name, err),
			})
			continue
		}
		saved[name] = value
	}
	return saved, mismatches
}

func skippedStep(sc *domain.Scenario, index int, state *RunState) domain.StepResult {
	step := &sc.Steps[index]
	msg := "skipped due to prior failure"
	if at, ok := state.AbortedAt(); ok {
		msg = fmt.Sprintf("skipped due to prior failure in step %d (%s)", at+1, sc.Steps[at].Label(at))
	}
	return domain.StepResult{
		Index:  index,
		ID:     step.ID,
		Name:   step.Label(index),
		Status: domain.StepStatusSkipped,
		Error:  &domain.StepError{Kind: domain.ErrorKindSkipped, Message: msg},
	}
}

func requestInfo(req *steps.Request) *domain.RequestInfo {
	info := &domain.RequestInfo{
		Method:  req.Method,
		URL:     req.URL,
		Headers: req.Headers,
	}
	if full, err := steps.WithQuery(req.URL, req.Query); err == nil {
		info.URL = full
	}
	if req.Body != nil {
		if data, err := steps.EncodeBody(req.Body); err == nil {
			info.Body = string(data)
		}
	}
	return info
}

func responseInfo(resp *assert.Response) *domain.ResponseInfo {
	info := &domain.ResponseInfo{
		Status:  resp.Status,
		Headers: steps.FlattenHeaders(resp.Headers),
		Body:    string(resp.Body),
	}
	if resp.Stream != nil && len(resp.Body) == 0 {
		var b strings.Builder
		for _, f := range resp.Stream.Frames {
			fmt.Fprintf(&b, "event: %s\ndata: %s\n\n", f.Event, f.Data)
		}
		info.Body = b.String()
	}
	return info
}

func summarize(mismatches []domain.Mismatch) string {
	msgs := make([]string, len(mismatches))
	for i, m := range mismatches {
		msgs[i] = m.Message
	}
	return strings.Join(msgs, "; ")
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
