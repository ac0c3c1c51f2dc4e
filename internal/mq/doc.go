// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//
// Типы сообщений:
//   - workflow.submitted — граф отправлен на выполнение
//   - workflow.completed — run завершён, payload содержит WorkflowReport
//
// Exchanges:
//   - agen8.workflows — события workflow
//   - agen8.dlq       — dead letter queue для сообщений, которые нельзя разобрать
package mq
