package mq

import (
	"context"
	"fmt"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// ExchangeResults — topic exchange с результатами сценариев.
const ExchangeResults Exchange = "checkpoint.results"

// Очереди.
const (
	// QueueScenarios — все завершённые сценарии.
	QueueScenarios Queue = "results.scenarios"

	// QueueFailures — только упавшие сценарии (для алертов).
	QueueFailures Queue = "results.failures"
)

// Routing keys.
const (
	RoutingKeyPassed RoutingKey = "scenario.passed"
	RoutingKeyFailed RoutingKey = "scenario.failed"

	bindAllScenarios RoutingKey = "scenario.*"
)

// SetupTopology объявляет exchange, очереди и привязки.
// Операция идемпотентна.
func SetupTopology(ctx context.Context, broker Broker) error {
	return broker.WithChannel(ctx, func(ch Channel) error {
		if err := ch.ExchangeDeclare(
			string(ExchangeResults), // name
			"topic",                 // type
			true,                    // durable
			false,                   // auto-deleted
			false,                   // internal
			false,                   // no-wait
			nil,                     // arguments
		); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeResults, err)
		}

		bindings := []struct {
			queue Queue
			key   RoutingKey
		}{
			{QueueScenarios, bindAllScenarios},
			{QueueFailures, RoutingKeyFailed},
		}

		for _, b := range bindings {
			if _, err := ch.QueueDeclare(
				string(b.queue), // name
				true,            // durable
				false,           // delete when unused
				false,           // exclusive
				false,           // no-wait
				nil,             // arguments
			); err != nil {
				return fmt.Errorf("declare queue %s: %w", b.queue, err)
			}

			if err := ch.QueueBind(string(b.queue), string(b.key), string(ExchangeResults), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, ExchangeResults, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Checkpoint RabbitMQ topology:

    checkpoint.results (topic)
    ├── results.scenarios [routing: scenario.*]
    └── results.failures  [routing: scenario.failed]
`
}
