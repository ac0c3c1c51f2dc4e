package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/shaiso/agen8/internal/actions"
	"github.com/shaiso/agen8/internal/domain"
	"github.com/shaiso/agen8/internal/engine"
	"github.com/shaiso/agen8/internal/telemetry"
)

// Default configuration values.
const (
	defaultConcurrency = 4
	defaultNodeTimeout = 30 * time.Second
)

// Registry — источник действий для Executor.
// Реализуется *actions.Registry.
type Registry interface {
	engine.Catalog
	Get(name string) (actions.Action, error)
}

// Executor выполняет WorkflowGraph против Action Registry.
//
// Executor не хранит состояние между run: каждый вызов Execute создаёт
// свежие accumulators и возвращает новый WorkflowReport. Один Executor
// можно использовать из нескольких горутин.
//
// Ошибки действий никогда не возвращаются вызывающей стороне —
// они попадают в результат узла, а run завершается отчётом.
type Executor struct {
	registry    Registry
	concurrency int
	timeout     time.Duration
	retry       *domain.RetryPolicy
	abandon     bool

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Config — конфигурация Executor.
type Config struct {
	// Registry — реестр действий (если nil — actions.DefaultRegistry()).
	Registry Registry

	// Concurrency — максимум одновременно выполняющихся узлов (default: 4).
	Concurrency int

	// NodeTimeout — таймаут узла по умолчанию (default: 30s).
	NodeTimeout time.Duration

	// Retry — политика повторов по умолчанию (default: одна попытка).
	Retry *domain.RetryPolicy

	// AbandonInFlight — при отмене run не ждать выполняющиеся узлы.
	// По умолчанию выполняющиеся узлы доводятся до конца (в пределах таймаута).
	AbandonInFlight bool

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger

	// Metrics — Prometheus метрики (опционально).
	Metrics *telemetry.Metrics
}

// New создаёт новый Executor.
func New(cfg Config) *Executor {
	if cfg.Registry == nil {
		cfg.Registry = actions.DefaultRegistry()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.NodeTimeout <= 0 {
		cfg.NodeTimeout = defaultNodeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Executor{
		registry:    cfg.Registry,
		concurrency: cfg.Concurrency,
		timeout:     cfg.NodeTimeout,
		retry:       cfg.Retry,
		abandon:     cfg.AbandonInFlight,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

// Validate проверяет граф против реестра Executor.
func (e *Executor) Validate(graph *domain.WorkflowGraph) *engine.ValidationOutcome {
	return engine.Validate(graph, e.registry)
}

// Run валидирует граф и выполняет его.
// Невалидный граф не выполняется: отчёт failed содержит все ошибки валидации.
func (e *Executor) Run(ctx context.Context, graph *domain.WorkflowGraph) *domain.WorkflowReport {
	outcome := e.Validate(graph)
	if outcome.Valid {
		return e.Execute(ctx, graph)
	}

	report := domain.NewReport(workflowName(graph))
	report.Status = domain.ReportStatusFailed
	for _, vErr := range outcome.Errors {
		report.Errors = append(report.Errors, domain.NodeError{
			NodeID:  vErr.NodeID,
			Message: fmt.Sprintf("%v: %s", ErrInvalidGraph, vErr.Message),
		})
	}
	report.Finish()

	e.loggerFor(ctx).Warn("workflow rejected by validation",
		"run_id", report.RunID,
		"workflow", report.Workflow,
		"errors", outcome.Messages(),
	)
	e.metrics.ObserveRun(string(report.Status), report.Duration())

	return report
}

// Execute выполняет граф.
//
// Узлы выполняются волнами готовности: волна k запускается после
// завершения всех узлов волн < k. Внутри волны узлы запускаются в порядке
// объявления (не более Concurrency одновременно). Узел, объявленный после
// критичного узла своей волны, ждёт результата этого узла: если критичный
// узел упал, узел пропускается. Поэтому execution trace и отчёт
// детерминированы при любом времени выполнения действий.
//
// Перед запуском граф проходит защитную проверку (engine.BuildDAG); если
// она не пройдена, возвращается отчёт failed с единственной ошибкой.
func (e *Executor) Execute(ctx context.Context, graph *domain.WorkflowGraph) *domain.WorkflowReport {
	report := domain.NewReport(workflowName(graph))
	logger := telemetry.WithWorkflow(telemetry.WithRunID(e.loggerFor(ctx), report.RunID.String()), report.Workflow)

	dag, err := engine.BuildDAG(graph)
	if err != nil {
		report.Status = domain.ReportStatusFailed
		report.Errors = append(report.Errors, domain.NodeError{
			Message: fmt.Sprintf("%v: %v", ErrStructuralGuard, err),
		})
		report.Finish()

		logger.Error("structural guard failed", "error", err)
		e.metrics.ObserveRun(string(report.Status), report.Duration())
		return report
	}

	logger.Info("workflow started", "nodes", dag.Size(), "waves", len(dag.Waves))

	state := newRunState(dag, report, e.metrics)
	sem := semaphore.NewWeighted(int64(e.concurrency))

	// Базовый контекст действий: отмена run не прерывает выполняющиеся
	// узлы, если не включён AbandonInFlight
	actionCtx := context.WithoutCancel(ctx)
	if e.abandon {
		actionCtx = ctx
	}

	for _, wave := range dag.Waves {
		var wg sync.WaitGroup

		// Завершение запущенных критичных узлов волны. Узлы, объявленные
		// после критичного, стартуют только после его результата
		var critical []chan struct{}

		for _, node := range wave {
			awaitAll(ctx, critical)

			if reason := state.stopReason(ctx); reason != "" {
				e.skipNode(logger, state, node, reason)
				continue
			}

			inputs, order, reason := state.resolveInputs(node)
			if reason != "" {
				e.skipNode(logger, state, node, reason)
				continue
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				e.skipNode(logger, state, node, state.stopReason(ctx))
				continue
			}

			// Пока ждали слот, run могли отменить
			if reason := state.stopReason(ctx); reason != "" {
				sem.Release(1)
				e.skipNode(logger, state, node, reason)
				continue
			}

			state.markStarted(node.ID)

			var done chan struct{}
			if node.Def.Critical {
				done = make(chan struct{})
				critical = append(critical, done)
			}

			wg.Add(1)
			go func(node *engine.Node, done chan struct{}) {
				defer wg.Done()
				defer sem.Release(1)

				res := e.runNode(actionCtx, logger, graph, node, inputs, order)
				state.complete(node, res)
				if done != nil {
					close(done)
				}
			}(node, done)
		}

		wg.Wait()
	}

	// В режиме abandon выполнявшиеся узлы прерваны отменой
	if e.abandon && ctx.Err() != nil {
		state.stopReason(ctx)
	}

	state.finalize()

	counts := report.Counts()
	logger.Info("workflow finished",
		"status", report.Status,
		"succeeded", counts[domain.NodeStatusSuccess],
		"failed", counts[domain.NodeStatusFailed],
		"skipped", counts[domain.NodeStatusSkipped],
		"duration_ms", report.DurationMs,
	)
	e.metrics.ObserveRun(string(report.Status), report.Duration())

	return report
}

// awaitAll ждёт закрытия всех каналов или отмены ctx.
func awaitAll(ctx context.Context, chans []chan struct{}) {
	for _, ch := range chans {
		select {
		case <-ch:
		case <-ctx.Done():
			return
		}
	}
}

// loggerFor возвращает логгер из ctx (telemetry.WithLogger) или логгер Executor.
func (e *Executor) loggerFor(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(telemetry.CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return e.logger
}

func (e *Executor) skipNode(logger *slog.Logger, state *runState, node *engine.Node, reason string) {
	state.skip(node, reason)
	logger.Info("node skipped", "node_id", node.ID, "reason", reason)
}

// runNode выполняет узел с учётом retry и возвращает его результат.
func (e *Executor) runNode(
	ctx context.Context,
	logger *slog.Logger,
	graph *domain.WorkflowGraph,
	node *engine.Node,
	inputs map[string]any,
	order []string,
) *domain.ExecutionResult {
	logger = telemetry.WithNodeID(logger, node.ID)
	start := time.Now()

	e.metrics.NodeStarted()
	defer e.metrics.NodeFinished()

	finish := func(res *domain.ExecutionResult, attempts int) *domain.ExecutionResult {
		res.Attempts = attempts
		res.DurationMs = time.Since(start).Milliseconds()
		return res
	}

	action, err := e.registry.Get(node.Def.ActionType)
	if err != nil {
		logger.Warn("node failed", "error", err)
		return finish(domain.Failed(err.Error()), 0)
	}

	tmplCtx := engine.NewContext(node.ID, inputs)
	tmplCtx.Workflow = graph.Name

	params, err := engine.RenderParams(node.Def.Params, tmplCtx)
	if err != nil {
		logger.Warn("node failed", "error", err)
		return finish(domain.Failed(fmt.Sprintf("render params: %v", err)), 0)
	}

	req := actions.NewRequest(node.ID, params, inputs, order)
	req.Workflow = graph.Name

	policy := e.retryPolicy(node.Def)
	maxAttempts := policy.Attempts()
	timeout := e.nodeTimeout(node.Def)

	logger.Debug("node started", "action", node.Def.ActionType, "timeout", timeout, "max_attempts", maxAttempts)

	for attempt := 1; ; attempt++ {
		data, err := e.invoke(ctx, action, req, timeout)
		if err == nil {
			logger.Info("node succeeded", "attempt", attempt, "duration_ms", time.Since(start).Milliseconds())
			return finish(domain.Succeeded(data), attempt)
		}

		if attempt >= maxAttempts || isCancellation(err) {
			logger.Warn("node failed", "attempt", attempt, "error", err)
			return finish(domain.Failed(err.Error()), attempt)
		}

		delay := calculateBackoff(attempt, policy)
		logger.Debug("retrying node", "attempt", attempt, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			err = fmt.Errorf("%w: %v", ErrNodeAbandoned, ctx.Err())
			logger.Warn("node failed", "attempt", attempt, "error", err)
			return finish(domain.Failed(err.Error()), attempt)
		}
	}
}

// invocation — итог одного вызова действия.
type invocation struct {
	res *actions.Result
	err error
}

// invoke вызывает действие один раз с таймаутом узла.
//
// Действие выполняется в отдельной горутине: если оно не реагирует на
// отмену ctx, invoke всё равно возвращается по таймауту, а горутина
// дорабатывает в фоне. Паника действия превращается в ошибку узла.
func (e *Executor) invoke(ctx context.Context, action actions.Action, req *actions.Request, timeout time.Duration) (any, error) {
	nodeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan invocation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invocation{err: fmt.Errorf("%w: %v", ErrActionPanic, r)}
			}
		}()
		res, err := action.Execute(nodeCtx, req)
		done <- invocation{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && nodeCtx.Err() != nil {
			return nil, contextError(ctx, nodeCtx, timeout)
		}
		return interpret(out)
	case <-nodeCtx.Done():
		return nil, contextError(ctx, nodeCtx, timeout)
	}
}

// contextError различает таймаут узла и отмену run.
func contextError(parent, nodeCtx context.Context, timeout time.Duration) error {
	if parent.Err() != nil {
		return fmt.Errorf("%w: %v", ErrNodeAbandoned, parent.Err())
	}
	if errors.Is(nodeCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrNodeTimeout, timeout)
	}
	return nodeCtx.Err()
}

// interpret проверяет форму результата действия.
func interpret(out invocation) (any, error) {
	if out.err != nil {
		return nil, out.err
	}
	if out.res == nil {
		return nil, fmt.Errorf("%w: action returned no result", ErrMalformedResult)
	}

	if out.res.OK() {
		return out.res.Data, nil
	}

	switch out.res.Status {
	case domain.ActionStatusFailure:
		if out.res.Error == "" {
			return nil, ErrActionFailed
		}
		return nil, fmt.Errorf("%w: %s", ErrActionFailed, out.res.Error)
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedResult, out.res.Status)
	}
}

func workflowName(graph *domain.WorkflowGraph) string {
	if graph == nil {
		return ""
	}
	return graph.Name
}
