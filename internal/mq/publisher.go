package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Checkpoint/internal/domain"
)

// MessageType — тип сообщения.
type MessageType string

// MessageTypeScenarioCompleted — сценарий завершён (успешно или нет).
const MessageTypeScenarioCompleted MessageType = "scenario.completed"

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// ScenarioCompletedPayload — итог сценария без тел запросов и ответов.
type ScenarioCompletedPayload struct {
	RunID       uuid.UUID    `json:"run_id"`
	Name        string       `json:"name"`
	Source      string       `json:"source,omitempty"`
	Success     bool         `json:"success"`
	Aborted     bool         `json:"aborted"`
	Passed      int          `json:"passed"`
	Failed      int          `json:"failed"`
	Skipped     int          `json:"skipped"`
	DurationMS  int64        `json:"duration_ms"`
	Error       string       `json:"error,omitempty"`
	FailedSteps []FailedStep `json:"failed_steps,omitempty"`
}

// FailedStep — краткое описание упавшего шага.
type FailedStep struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewScenarioCompletedPayload строит payload из результата.
func NewScenarioCompletedPayload(r *domain.ScenarioResult) ScenarioCompletedPayload {
	passed, failed, skipped := r.Counts()
	p := ScenarioCompletedPayload{
		RunID:      r.RunID,
		Name:       r.Name,
		Source:     r.Source,
		Success:    r.Success,
		Aborted:    r.Aborted,
		Passed:     passed,
		Failed:     failed,
		Skipped:    skipped,
		DurationMS: r.Elapsed.Milliseconds(),
	}
	if r.Error != nil {
		p.Error = r.Error.Error()
	}
	for _, s := range r.Steps {
		if s.Status != domain.StepStatusFailed || s.Error == nil {
			continue
		}
		p.FailedSteps = append(p.FailedSteps, FailedStep{
			Index:   s.Index,
			Name:    s.Name,
			Kind:    string(s.Error.Kind),
			Message: s.Error.Message,
		})
	}
	return p
}

// Publisher публикует результаты сценариев в RabbitMQ.
type Publisher struct {
	broker Broker
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(broker Broker, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		broker: broker,
		logger: logger,
	}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.broker.WithChannel(ctx, func(ch Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,              // mandatory
			false,              // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishScenarioResult публикует событие scenario.completed.
// Routing key зависит от результата: scenario.passed или scenario.failed.
func (p *Publisher) PublishScenarioResult(ctx context.Context, result *domain.ScenarioResult) error {
	key := RoutingKeyPassed
	if !result.Success {
		key = RoutingKeyFailed
	}

	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeScenarioCompleted,
		Payload:   NewScenarioCompletedPayload(result),
		Timestamp: time.Now().UTC(),
	}

	return p.Publish(ctx, ExchangeResults, key, msg)
}

// Record реализует report.Sink.
func (p *Publisher) Record(ctx context.Context, result *domain.ScenarioResult) error {
	return p.PublishScenarioResult(ctx, result)
}
