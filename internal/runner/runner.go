package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/agen8/internal/domain"
	"github.com/shaiso/agen8/internal/engine"
	"github.com/shaiso/agen8/internal/mq"
	"github.com/shaiso/agen8/internal/repo"
	"github.com/shaiso/agen8/internal/telemetry"
)

// Workflows — исполнитель графов. Реализуется *executor.Executor.
type Workflows interface {
	Run(ctx context.Context, graph *domain.WorkflowGraph) *domain.WorkflowReport
}

// ReportStore — архив отчётов. Реализуется *repo.ReportRepo.
type ReportStore interface {
	Save(ctx context.Context, submissionID uuid.UUID, report *domain.WorkflowReport) error
	ExistsForSubmission(ctx context.Context, submissionID uuid.UUID) (bool, error)
}

// ReportPublisher публикует отчёты. Реализуется *mq.Publisher.
type ReportPublisher interface {
	PublishWorkflowCompleted(ctx context.Context, submissionID uuid.UUID, report *domain.WorkflowReport) error
}

// Runner — сервис, выполняющий графы из очереди workflows.submitted.
//
// Для каждой отправки:
//   - разбирает граф (битый JSON тоже даёт отчёт failed)
//   - валидирует и выполняет его через Workflows
//   - сохраняет отчёт в архив
//   - публикует отчёт в workflows.completed
//
// Runner обрабатывает по одному сообщению за раз: каждый run — отдельный
// экземпляр workflow, состояние между run не разделяется.
type Runner struct {
	workflows Workflows
	store     ReportStore
	publisher ReportPublisher
	conn      *mq.Connection

	consumer *mq.Consumer

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu        sync.RWMutex
	stopped   bool
	processed int
}

// Config — конфигурация Runner.
type Config struct {
	// Workflows — исполнитель (обязателен).
	Workflows Workflows

	// Store — архив отчётов (опционально).
	Store ReportStore

	// Publisher — публикация отчётов (опционально).
	Publisher ReportPublisher

	// Conn — соединение с RabbitMQ (обязательно для Start).
	Conn *mq.Connection

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт новый Runner.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		workflows: cfg.Workflows,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		conn:      cfg.Conn,
		logger:    logger.With("component", "runner"),
	}
}

// Start запускает consumer очереди workflows.submitted.
func (r *Runner) Start(ctx context.Context) error {
	if r.conn == nil {
		return ErrNoConnection
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel

	r.consumer = mq.NewConsumer(r.conn, r.logger, mq.ConsumerConfig{
		Queue:    mq.QueueWorkflowsSubmitted,
		Handler:  r.handleSubmitted,
		Prefetch: 1,
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("submission consumer error", "error", err)
		}
	}()

	r.logger.Info("runner started", "queue", mq.QueueWorkflowsSubmitted)
	return nil
}

// Stop останавливает Runner и ждёт завершения текущего run.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	r.logger.Info("stopping runner...")

	if r.cancelFunc != nil {
		r.cancelFunc()
	}
	if r.consumer != nil {
		r.consumer.Stop()
	}

	r.wg.Wait()
	r.logger.Info("runner stopped")
}

// IsStopped проверяет, остановлен ли Runner.
func (r *Runner) IsStopped() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stopped
}

// Processed возвращает количество обработанных отправок.
func (r *Runner) Processed() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.processed
}

// handleSubmitted обрабатывает сообщение workflow.submitted.
func (r *Runner) handleSubmitted(ctx context.Context, d *mq.Delivery) error {
	if d.Message.Type != mq.MessageTypeWorkflowSubmitted {
		return fmt.Errorf("%w: unexpected message type %q", mq.ErrReject, d.Message.Type)
	}

	payload, err := mq.ParsePayload[mq.WorkflowSubmittedPayload](&d.Message)
	if err != nil {
		return fmt.Errorf("%w: %v", mq.ErrReject, err)
	}
	if payload.SubmissionID == uuid.Nil {
		return fmt.Errorf("%w: submission_id is required", mq.ErrReject)
	}

	_, err = r.Process(ctx, payload.SubmissionID, payload.Graph)
	return err
}

// Process выполняет одну отправку и возвращает отчёт.
//
// Повторная доставка уже обработанной отправки пропускается (nil, nil).
// Ошибка возвращается только для инфраструктурных сбоев и отмены ctx,
// тогда сообщение должно вернуться в очередь.
func (r *Runner) Process(ctx context.Context, submissionID uuid.UUID, graphJSON json.RawMessage) (*domain.WorkflowReport, error) {
	logger := r.logger.With("submission_id", submissionID)

	if r.store != nil {
		done, err := r.store.ExistsForSubmission(ctx, submissionID)
		if err != nil {
			return nil, fmt.Errorf("check submission: %w", err)
		}
		if done {
			logger.Info("submission already processed, skipping")
			return nil, nil
		}
	}

	var report *domain.WorkflowReport
	graph, err := engine.ParseGraph(graphJSON)
	if err != nil {
		logger.Warn("failed to parse submitted graph", "error", err)
		report = rejectedReport(err)
	} else {
		report = r.workflows.Run(telemetry.WithLogger(ctx, logger), graph)
	}

	// Run прерван остановкой сервиса — отправка вернётся в очередь
	if ctx.Err() != nil {
		return nil, fmt.Errorf("run interrupted: %w", ctx.Err())
	}

	if r.store != nil {
		if err := r.store.Save(ctx, submissionID, report); err != nil && !errors.Is(err, repo.ErrAlreadyExists) {
			return nil, fmt.Errorf("save report: %w", err)
		}
	}

	if r.publisher != nil {
		if err := r.publisher.PublishWorkflowCompleted(ctx, submissionID, report); err != nil {
			// Отчёт уже в архиве; повторная доставка его не перезапустит
			logger.Error("failed to publish report", "run_id", report.RunID, "error", err)
		}
	}

	r.mu.Lock()
	r.processed++
	r.mu.Unlock()

	logger.Info("submission processed",
		"run_id", report.RunID,
		"workflow", report.Workflow,
		"status", report.Status,
	)

	return report, nil
}

// rejectedReport — отчёт для графа, который не удалось разобрать.
func rejectedReport(err error) *domain.WorkflowReport {
	report := domain.NewReport("")
	report.Status = domain.ReportStatusFailed
	report.Errors = append(report.Errors, domain.NodeError{Message: err.Error()})
	report.Finish()
	return report
}
