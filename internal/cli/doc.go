// Package cli реализует инструмент командной строки checkpoint.
//
// # Команды
//
//   - run      — найти, выполнить сценарии и вывести отчёт
//   - watch    — повторять run по расписанию (cron)
//   - validate — проверить файлы без отправки запросов
//   - list     — показать найденные сценарии
//   - history  — показать сохранённые запуски
//
// # Конфигурация
//
// Флаги имеют приоритет над переменными окружения:
// CHECKPOINT_HISTORY_DSN, CHECKPOINT_AMQP_URL, CHECKPOINT_METRICS_ADDR,
// CHECKPOINT_WORKERS. Логирование настраивается через LOG_LEVEL
// и LOG_FORMAT; --verbose включает DEBUG.
//
// # Вывод
//
// Отчёт пишется в stdout, логи и сообщения — в stderr.
// Код выхода 0 только если все сценарии загрузились и прошли.
package cli
