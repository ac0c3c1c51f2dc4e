package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionResult — результат выполнения одного узла.
type ExecutionResult struct {
	// Status — success, failed или skipped.
	Status NodeStatus `json:"status"`

	// Data — выходные данные действия (непрозрачный payload).
	Data any `json:"data,omitempty"`

	// Error — текст ошибки. Заполнен только при Status == failed.
	Error string `json:"error,omitempty"`

	// Reason — причина пропуска. Заполнена только при Status == skipped.
	Reason string `json:"reason,omitempty"`

	// Attempts — количество выполненных попыток.
	Attempts int `json:"attempts,omitempty"`

	// DurationMs — время выполнения узла.
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// Succeeded создаёт успешный результат.
func Succeeded(data any) *ExecutionResult {
	return &ExecutionResult{Status: NodeStatusSuccess, Data: data}
}

// Failed создаёт результат с ошибкой.
func Failed(errMsg string) *ExecutionResult {
	return &ExecutionResult{Status: NodeStatusFailed, Error: errMsg}
}

// Skipped создаёт результат пропущенного узла.
func Skipped(reason string) *ExecutionResult {
	return &ExecutionResult{Status: NodeStatusSkipped, Reason: reason}
}

// NodeError — ошибка, привязанная к узлу.
// NodeID пуст для ошибок уровня run (валидация графа, отмена).
type NodeError struct {
	NodeID  string `json:"node_id"`
	Message string `json:"message"`
}

// WorkflowReport — итог выполнения run.
type WorkflowReport struct {
	// RunID — идентификатор run.
	RunID uuid.UUID `json:"run_id"`

	// Workflow — имя workflow.
	Workflow string `json:"workflow,omitempty"`

	// Status — success, partial или failed.
	Status ReportStatus `json:"status"`

	// Results — результаты по узлам (nodeID → результат).
	Results map[string]*ExecutionResult `json:"results"`

	// Errors — ошибки в детерминированном порядке.
	Errors []NodeError `json:"errors"`

	// ExecutionTrace — ID узлов в порядке их запуска.
	ExecutionTrace []string `json:"execution_trace"`

	// StartedAt — время начала run.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения run.
	FinishedAt time.Time `json:"finished_at"`

	// DurationMs — продолжительность run.
	DurationMs int64 `json:"duration_ms"`
}

// Finish фиксирует время завершения run.
func (r *WorkflowReport) Finish() {
	r.FinishedAt = time.Now()
	r.DurationMs = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
}

// NewReport создаёт пустой отчёт для нового run.
func NewReport(workflow string) *WorkflowReport {
	return &WorkflowReport{
		RunID:          uuid.New(),
		Workflow:       workflow,
		Status:         ReportStatusSuccess,
		Results:        make(map[string]*ExecutionResult),
		Errors:         make([]NodeError, 0),
		ExecutionTrace: make([]string, 0),
		StartedAt:      time.Now(),
	}
}

// Duration возвращает продолжительность run.
func (r *WorkflowReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Counts возвращает количество узлов по статусам.
func (r *WorkflowReport) Counts() map[NodeStatus]int {
	counts := make(map[NodeStatus]int, 3)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}
