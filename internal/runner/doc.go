// Package runner выполняет сценарии.
//
// Executor проходит шаги по порядку: подстановка переменных,
// HTTP запрос, проверки ответа, save. Состояние выполнения
// (RUNNING → ABORTED → COMPLETED) хранится в RunState.
// Шаг с condition может быть пропущен, шаг с include выполняет
// другой файл сценария тем же Executor.
//
// Pool запускает несколько сценариев параллельно с ограничением
// числа горутин.
package runner
