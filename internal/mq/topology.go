package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeWorkflows Exchange = "agen8.workflows"
	ExchangeDLQ       Exchange = "agen8.dlq"
)

// Queues — имена очередей.
const (
	QueueWorkflowsSubmitted Queue = "workflows.submitted"
	QueueWorkflowsCompleted Queue = "workflows.completed"
	QueueDLQWorkflows       Queue = "dlq.workflows"
)

// Routing keys.
const (
	RoutingKeySubmitted    RoutingKey = "submitted"
	RoutingKeyCompleted    RoutingKey = "completed"
	RoutingKeyDLQWorkflows RoutingKey = "workflows"
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

// topology — полное описание объектов RabbitMQ.
type topology struct {
	exchanges []exchangeDecl
	queues    []queueDecl
	bindings  []bindingDecl
}

// workflowTopology возвращает топологию agen8.
func workflowTopology() topology {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQWorkflows),
	}

	return topology{
		exchanges: []exchangeDecl{
			{ExchangeWorkflows, "direct"},
			{ExchangeDLQ, "direct"},
		},
		queues: []queueDecl{
			// workflows.submitted — с DLQ (битые графы уходят туда)
			{QueueWorkflowsSubmitted, dlqArgs},

			// workflows.completed — отчёты для внешних потребителей
			{QueueWorkflowsCompleted, nil},

			{QueueDLQWorkflows, nil},
		},
		bindings: []bindingDecl{
			{QueueWorkflowsSubmitted, RoutingKeySubmitted, ExchangeWorkflows},
			{QueueWorkflowsCompleted, RoutingKeyCompleted, ExchangeWorkflows},
			{QueueDLQWorkflows, RoutingKeyDLQWorkflows, ExchangeDLQ},
		},
	}
}

// SetupTopology объявляет exchanges, queues и bindings.
// Операция идемпотентна: её вызывают и runner, и CLI перед публикацией.
func SetupTopology(ctx context.Context, conn *Connection) error {
	topo := workflowTopology()

	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range topo.exchanges {
			err := ch.ExchangeDeclare(
				string(ex.name), // name
				ex.kind,         // type
				true,            // durable
				false,           // auto-deleted
				false,           // internal
				false,           // no-wait
				nil,             // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		for _, q := range topo.queues {
			_, err := ch.QueueDeclare(
				string(q.name), // name
				true,           // durable
				false,          // delete when unused
				false,          // exclusive
				false,          // no-wait
				q.args,         // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		for _, b := range topo.bindings {
			err := ch.QueueBind(
				string(b.queue),      // queue name
				string(b.routingKey), // routing key
				string(b.exchange),   // exchange
				false,                // no-wait
				nil,                  // arguments
			)
			if err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  agen8 RabbitMQ topology:

    agen8.workflows (direct)
    ├── workflows.submitted [routing: submitted]
    │       Consumer: Runner
    │       DLQ: dlq.workflows
    └── workflows.completed [routing: completed]
            Consumer: external (reports)

    agen8.dlq (direct)
    └── dlq.workflows [routing: workflows]
            Manual processing
  `
}
