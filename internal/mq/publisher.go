package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/agen8/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeWorkflowSubmitted MessageType = "workflow.submitted"
	MessageTypeWorkflowCompleted MessageType = "workflow.completed"
)

// Message — сообщение для публикации.
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

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// WorkflowSubmittedPayload — граф, отправленный на выполнение.
//
// Graph хранится как сырой JSON: runner разбирает его через
// engine.ParseGraph со строгой проверкой полей.
type WorkflowSubmittedPayload struct {
	SubmissionID uuid.UUID       `json:"submission_id"`
	Graph        json.RawMessage `json:"graph"`
}

// WorkflowCompletedPayload — итог run.
type WorkflowCompletedPayload struct {
	SubmissionID uuid.UUID              `json:"submission_id"`
	RunID        uuid.UUID              `json:"run_id"`
	Workflow     string                 `json:"workflow,omitempty"`
	Status       domain.ReportStatus    `json:"status"`
	Report       *domain.WorkflowReport `json:"report"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
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

// PublishWorkflowSubmitted отправляет граф на выполнение.
// Возвращает submission_id, по которому можно найти отчёт.
// Потребитель: Runner.
func (p *Publisher) PublishWorkflowSubmitted(ctx context.Context, graph json.RawMessage) (uuid.UUID, error) {
	payload := WorkflowSubmittedPayload{
		SubmissionID: uuid.New(),
		Graph:        graph,
	}

	msg := NewMessage(MessageTypeWorkflowSubmitted, payload)
	if err := p.Publish(ctx, ExchangeWorkflows, RoutingKeySubmitted, msg); err != nil {
		return uuid.Nil, err
	}
	return payload.SubmissionID, nil
}

// PublishWorkflowCompleted публикует отчёт о завершённом run.
func (p *Publisher) PublishWorkflowCompleted(ctx context.Context, submissionID uuid.UUID, report *domain.WorkflowReport) error {
	msg := NewMessage(MessageTypeWorkflowCompleted, CompletedPayload(submissionID, report))
	return p.Publish(ctx, ExchangeWorkflows, RoutingKeyCompleted, msg)
}

// CompletedPayload собирает payload сообщения workflow.completed.
func CompletedPayload(submissionID uuid.UUID, report *domain.WorkflowReport) WorkflowCompletedPayload {
	return WorkflowCompletedPayload{
		SubmissionID: submissionID,
		RunID:        report.RunID,
		Workflow:     report.Workflow,
		Status:       report.Status,
		Report:       report,
	}
}
