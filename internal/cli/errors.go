package cli

import "errors"

// Ошибки команд. Для них CLI не печатает сообщение: результат уже в отчёте.
var (
	// ErrScenariosFailed — хотя бы один сценарий упал или не загрузился.
	ErrScenariosFailed = errors.New("one or more scenarios failed")

	// ErrInvalidScenarios — хотя бы один файл не прошёл разбор.
	ErrInvalidScenarios = errors.New("one or more scenario files are invalid")

	// ErrNoScenarios — по указанным путям не найдено ни одного сценария.
	ErrNoScenarios = errors.New("no scenarios found")
)

// IsReported возвращает true для ошибок, уже показанных пользователю.
func IsReported(err error) bool {
	return errors.Is(err, ErrScenariosFailed) || errors.Is(err, ErrInvalidScenarios)
}
