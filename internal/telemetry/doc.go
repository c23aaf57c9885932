// Package telemetry обеспечивает наблюдаемость запусков сценариев.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики и /metrics endpoint
//
// Логи пишутся в stderr, чтобы не смешиваться с отчётом в stdout.
package telemetry
