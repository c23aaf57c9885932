// Package sse читает text/event-stream и проверяет последовательность событий.
//
//   - frame.go     — Reader кадров формата SSE
//   - match.go     — сопоставление кадра с domain.EventMatcher, группировка
//   - validator.go — Validate: упорядоченное сопоставление с ограничением по времени,
//     has_events / has_no_events, save по совпавшим кадрам
package sse
