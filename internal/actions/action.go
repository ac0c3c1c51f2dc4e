package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/agen8/internal/domain"
)

// Ошибки действий.
var (
	// ErrActionNotFound — действие не найдено в реестре.
	ErrActionNotFound = errors.New("action not found")

	// ErrInvalidParams — невалидные параметры действия.
	ErrInvalidParams = errors.New("invalid action params")

	// ErrActionCancelled — выполнение действия отменено.
	ErrActionCancelled = errors.New("action execution cancelled")
)

// Action — интерфейс для типов действий.
//
// Каждое действие (api_caller, web_scraper, email_sender, ...) реализует
// этот интерфейс и регистрируется в Registry при старте процесса.
type Action interface {
	// Name возвращает имя действия (action_type узла).
	Name() string

	// Contract возвращает статический контракт параметров.
	Contract() domain.ActionContract

	// Execute выполняет действие.
	// Действие должно проверять ctx.Done() и не блокироваться после отмены.
	Execute(ctx context.Context, req *Request) (*Result, error)
}

// Request — входные данные для выполнения действия.
type Request struct {
	// NodeID — идентификатор узла.
	NodeID string

	// Workflow — имя workflow.
	Workflow string

	// Params — параметры узла (уже отрендеренные через engine.RenderParams).
	Params map[string]any

	// Inputs — data зависимостей (depID → data).
	Inputs map[string]any

	// InputOrder — ID зависимостей из Inputs в порядке depends_on.
	InputOrder []string
}

// NewRequest создаёт новый Request.
func NewRequest(nodeID string, params, inputs map[string]any, order []string) *Request {
	if params == nil {
		params = make(map[string]any)
	}
	if inputs == nil {
		inputs = make(map[string]any)
	}
	return &Request{
		NodeID:     nodeID,
		Params:     params,
		Inputs:     inputs,
		InputOrder: order,
	}
}

// OrderedInputs возвращает data зависимостей в порядке depends_on.
func (r *Request) OrderedInputs() []any {
	values := make([]any, 0, len(r.InputOrder))
	for _, id := range r.InputOrder {
		if v, ok := r.Inputs[id]; ok {
			values = append(values, v)
		}
	}
	return values
}

// Input возвращает data зависимости id, а при пустом id — первой зависимости.
func (r *Request) Input(id string) (any, bool) {
	if id != "" {
		v, ok := r.Inputs[id]
		return v, ok
	}
	for _, depID := range r.InputOrder {
		if v, ok := r.Inputs[depID]; ok {
			return v, true
		}
	}
	return nil, false
}

// Result — результат действия: {status, data, error}.
type Result struct {
	Status domain.ActionStatus `json:"status"`
	Data   any                 `json:"data,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// Success создаёт успешный результат.
func Success(data any) *Result {
	return &Result{Status: domain.ActionStatusSuccess, Data: data}
}

// Failure создаёт результат с ошибкой.
func Failure(format string, args ...any) *Result {
	return &Result{Status: domain.ActionStatusFailure, Error: fmt.Sprintf(format, args...)}
}

// OK проверяет, что результат успешный.
func (r *Result) OK() bool {
	return r != nil && r.Status == domain.ActionStatusSuccess
}

// cancelled оборачивает ошибку контекста.
func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %v", ErrActionCancelled, ctx.Err())
}
