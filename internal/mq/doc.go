// Package mq публикует результаты сценариев в RabbitMQ.
//
// Структура:
//   - connection.go — соединение с reconnect и graceful shutdown
//   - topology.go   — exchange, очереди, привязки
//   - publisher.go  — публикация scenario.completed
//
// Exchange checkpoint.results (topic):
//   - scenario.passed — сценарий прошёл
//   - scenario.failed — сценарий упал (дублируется в results.failures)
package mq
