package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shaiso/agen8/internal/domain"
	"github.com/shaiso/agen8/internal/engine"
	"github.com/shaiso/agen8/internal/telemetry"
)

// runState — состояние одного run в памяти.
//
// Создаётся в начале Execute и отбрасывается после сборки отчёта.
// results, trace и флаги остановки — единственное изменяемое общее
// состояние run; доступ только под mu.
type runState struct {
	dag     *engine.DAG
	report  *domain.WorkflowReport
	metrics *telemetry.Metrics

	// haltedBy — ID критичного узла, упавшего первым.
	haltedBy string

	// cancelErr — причина отмены run (nil, если run не отменялся).
	cancelErr error

	mu sync.Mutex
}

func newRunState(dag *engine.DAG, report *domain.WorkflowReport, metrics *telemetry.Metrics) *runState {
	return &runState{
		dag:     dag,
		report:  report,
		metrics: metrics,
	}
}

// stopReason возвращает причину, по которой новые узлы больше не запускаются.
// Пустая строка — запуск разрешён.
func (s *runState) stopReason(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.haltedBy != "" {
		return fmt.Sprintf("%v: critical node %s failed", ErrRunHalted, s.haltedBy)
	}

	if err := ctx.Err(); err != nil {
		if s.cancelErr == nil {
			s.cancelErr = err
		}
		return ErrRunCancelled.Error()
	}

	return ""
}

// resolveInputs собирает inputs узла из data зависимостей.
//
// Возвращает причину пропуска, если зависимость не успешна и узел
// не разрешает её падение через tolerate_failed. Терпимые зависимости
// в inputs не попадают.
func (s *runState) resolveInputs(node *engine.Node) (inputs map[string]any, order []string, skipReason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inputs = make(map[string]any, len(node.DependsOn))
	order = make([]string, 0, len(node.DependsOn))

	for _, dep := range node.DependsOn {
		res, ok := s.report.Results[dep.ID]
		if !ok {
			// Зависимость из ранней волны обязана иметь результат
			return nil, nil, fmt.Sprintf("dependency %s has no result", dep.ID)
		}

		if res.Status == domain.NodeStatusSuccess {
			inputs[dep.ID] = res.Data
			order = append(order, dep.ID)
			continue
		}

		if node.Def.Tolerates(dep.ID) {
			continue
		}

		return nil, nil, fmt.Sprintf("dependency %s %s", dep.ID, res.Status)
	}

	return inputs, order, ""
}

// markStarted добавляет узел в execution trace.
func (s *runState) markStarted(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.ExecutionTrace = append(s.report.ExecutionTrace, nodeID)
}

// complete сохраняет результат запущенного узла.
// Падение критичного узла останавливает запуск новых узлов.
func (s *runState) complete(node *engine.Node, res *domain.ExecutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.report.Results[node.ID] = res

	if res.Status == domain.NodeStatusFailed && node.Def.Critical && s.haltedBy == "" {
		s.haltedBy = node.ID
	}

	s.metrics.ObserveNode(node.Def.ActionType, string(res.Status), time.Duration(res.DurationMs)*time.Millisecond)
}

// skip помечает узел пропущенным.
func (s *runState) skip(node *engine.Node, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.report.Results[node.ID] = domain.Skipped(reason)
	s.metrics.ObserveNode(node.Def.ActionType, string(domain.NodeStatusSkipped), 0)
}

// finalize собирает ошибки в топологическом порядке и вычисляет статус run.
func (s *runState) finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := s.report
	anyFailed, anySkipped := false, false

	for _, node := range s.dag.Order {
		res, ok := report.Results[node.ID]
		if !ok {
			// Узел не был достигнут — защитно считаем пропущенным
			res = domain.Skipped("node was not reached")
			report.Results[node.ID] = res
		}

		switch res.Status {
		case domain.NodeStatusFailed:
			anyFailed = true
			report.Errors = append(report.Errors, domain.NodeError{NodeID: node.ID, Message: res.Error})
		case domain.NodeStatusSkipped:
			anySkipped = true
		}
	}

	if s.haltedBy != "" {
		report.Errors = append(report.Errors, domain.NodeError{
			Message: fmt.Sprintf("%v: critical node %s failed", ErrRunHalted, s.haltedBy),
		})
	}
	if s.cancelErr != nil {
		report.Errors = append(report.Errors, domain.NodeError{
			Message: fmt.Sprintf("%v: %v", ErrRunCancelled, s.cancelErr),
		})
	}

	switch {
	case s.haltedBy != "" || s.cancelErr != nil:
		report.Status = domain.ReportStatusFailed
	case anyFailed || anySkipped:
		report.Status = domain.ReportStatusPartial
	default:
		report.Status = domain.ReportStatusSuccess
	}

	report.Finish()
}

// isCancellation проверяет, вызвана ли ошибка отменой run.
func isCancellation(err error) bool {
	return errors.Is(err, ErrRunCancelled) || errors.Is(err, ErrNodeAbandoned)
}
