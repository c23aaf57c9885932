package assert

import "github.com/shaiso/Checkpoint/internal/domain"

// FromExpectation превращает объявленные виды ожиданий в список проверок.
// Отсутствующие виды не проверяются.
func FromExpectation(exp domain.Expectation) []Check {
	var checks []Check
	if exp.Status != nil {
		checks = append(checks, StatusCheck{Expected: *exp.Status})
	}
	if len(exp.JSON) > 0 {
		checks = append(checks, JSONCheck{Expected: exp.JSON})
	}
	if exp.JSONEq != nil {
		checks = append(checks, JSONEqCheck{Expected: exp.JSONEq, Ignore: exp.JSONIgnoreFields})
	}
	if len(exp.JSONLengths) > 0 {
		checks = append(checks, JSONLengthsCheck{Expected: exp.JSONLengths})
	}
	if len(exp.Headers) > 0 {
		checks = append(checks, HeadersCheck{Expected: exp.Headers})
	}
	if len(exp.Contains) > 0 {
		checks = append(checks, ContainsCheck{Expected: exp.Contains})
	}
	if exp.SSE != nil {
		checks = append(checks, SSECheck{Expected: *exp.SSE})
	}
	return checks
}

// Evaluate вычисляет все проверки и собирает все несовпадения.
func Evaluate(checks []Check, resp *Response) []domain.Mismatch {
	var out []domain.Mismatch
	for _, c := range checks {
		out = append(out, c.Evaluate(resp)...)
	}
	return out
}
