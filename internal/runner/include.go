package runner

import (
	"context"
	"maps"
	"path/filepath"

	"github.com/shaiso/Checkpoint/internal/domain"
	"github.com/shaiso/Checkpoint/internal/engine"
)

// maxIncludeDepth ограничивает вложенность include (и циклы a → b → a).
const maxIncludeDepth = 8

// includeMethod — Method в RequestInfo шага include.
const includeMethod = "INCLUDE"

type includeDepthKey struct{}

func includeDepth(ctx context.Context) int {
	d, _ := ctx.Value(includeDepthKey{}).(int)
	return d
}

// include выполняет вложенный сценарий как один шаг.
//
// Переменные вложенного сценария: его собственные vars, поверх них
// include.vars, пробелы заполняются переменными родителя. base_url и
// заголовки config наследуются, если не заданы. Outputs:
//
//	{"success": bool, "vars": {...}, "steps": {"<name>": {"success": bool}}}
func (e *Executor) include(ctx context.Context, state *RunState, step *domain.Step) (*domain.RequestInfo, any, *domain.StepError, []domain.Mismatch) {
	parent := state.Scenario

	path, err := engine.Render(step.Include.Path, state.Scope)
	if err != nil {
		return nil, nil, domain.NewStepError(domain.ErrorKindUnresolvedVariable, "include.path: %v", err), nil
	}
	if !filepath.IsAbs(path) && parent.Source != "" {
		path = filepath.Join(filepath.Dir(parent.Source), path)
	}
	info := &domain.RequestInfo{Method: includeMethod, URL: path}

	depth := includeDepth(ctx)
	if depth >= maxIncludeDepth {
		return info, nil, domain.NewStepError(domain.ErrorKindParse,
			"include %s: nesting deeper than %d levels", path, maxIncludeDepth), nil
	}

	overrides, err := engine.RenderValue(step.Include.Vars, state.Scope)
	if err != nil {
		return info, nil, domain.NewStepError(domain.ErrorKindUnresolvedVariable, "include.vars: %v", err), nil
	}

	sub, err := e.load(path)
	if err != nil {
		return info, nil, domain.NewStepError(domain.ErrorKindParse, "include %s: %v", path, err), nil
	}
	inherit(sub, parent.Config, state.Scope.Vars, overrides)

	result, scope := e.execute(context.WithValue(ctx, includeDepthKey{}, depth+1), sub)

	summary := make(map[string]any, len(result.Steps))
	for _, s := range result.Steps {
		summary[s.Name] = map[string]any{"success": s.Success}
	}
	outputs := map[string]any{
		"success": result.Success,
		"vars":    scope.Vars,
		"steps":   summary,
	}

	if result.Success {
		return info, outputs, nil, nil
	}
	return info, outputs, includeFailure(sub, result), firstFailed(result).Mismatches
}

// inherit дополняет вложенный сценарий переменными и config родителя.
func inherit(sub *domain.Scenario, cfg domain.Config, parentVars map[string]any, overrides any) {
	if sub.Vars == nil {
		sub.Vars = make(map[string]any)
	}
	if vars, ok := overrides.(map[string]any); ok {
		maps.Copy(sub.Vars, vars)
	}
	for k, v := range parentVars {
		if _, ok := sub.Vars[k]; !ok {
			sub.Vars[k] = v
		}
	}

	if sub.Config.BaseURL == "" {
		sub.Config.BaseURL = cfg.BaseURL
	}
	if len(cfg.Headers) > 0 && sub.Config.Headers == nil {
		sub.Config.Headers = make(map[string]string, len(cfg.Headers))
	}
	for k, v := range cfg.Headers {
		if _, ok := sub.Config.Headers[k]; !ok {
			sub.Config.Headers[k] = v
		}
	}
}

func firstFailed(result *domain.ScenarioResult) domain.StepResult {
	for _, s := range result.Steps {
		if s.Status == domain.StepStatusFailed {
			return s
		}
	}
	return domain.StepResult{}
}

// includeFailure переносит вид и сообщение первой ошибки вложенного сценария.
func includeFailure(sub *domain.Scenario, result *domain.ScenarioResult) *domain.StepError {
	failed := firstFailed(result)
	if failed.Error == nil {
		return domain.NewStepError(domain.ErrorKindAssertion, "included scenario %q failed", sub.Name)
	}
	return domain.NewStepError(failed.Error.Kind, "included scenario %q failed at step %d (%s): %s",
		sub.Name, failed.Index+1, failed.Name, failed.Error.Message)
}
