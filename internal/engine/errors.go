package engine

import (
	"errors"
	"strings"
)

// Структурные ошибки графа.
var (
	// ErrEmptyGraph — граф не содержит узлов.
	ErrEmptyGraph = errors.New("workflow graph has no nodes")

	// ErrEmptyNodeID — узел не имеет ID.
	ErrEmptyNodeID = errors.New("node has empty ID")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrInvalidGraphJSON — документ графа не разбирается.
	ErrInvalidGraphJSON = errors.New("invalid workflow graph document")
)

// Ошибки валидации графа (ValidationError family).
var (
	// ErrUnknownAction — action_type отсутствует в Action Registry.
	ErrUnknownAction = errors.New("unknown action")

	// ErrUnresolvedDependency — узел зависит от несуществующего узла.
	ErrUnresolvedDependency = errors.New("unresolved dependency")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrMissingParameter — не задан обязательный параметр действия.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrInvalidParameter — параметр не соответствует типу из контракта.
	ErrInvalidParameter = errors.New("invalid parameter type")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	NodeID  string   `json:"node_id,omitempty"` // ID узла, где произошла ошибка
	Field   string   `json:"field,omitempty"`   // поле, вызвавшее ошибку
	Message string   `json:"message"`           // описание ошибки
	Cycle   []string `json:"cycle,omitempty"`   // последовательность узлов цикла (только для ErrCyclicDependency)
	Err     error    `json:"-"`                 // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(nodeID, field, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// newCycleError создаёт ошибку цикла с последовательностью узлов.
// cycle замкнут: первый и последний элементы совпадают.
func newCycleError(cycle []string) *ValidationError {
	nodeID := ""
	if len(cycle) > 0 {
		nodeID = cycle[0]
	}

	msg := "cyclic dependency: " + strings.Join(cycle, " -> ")
	if len(cycle) == 2 && cycle[0] == cycle[1] {
		msg = "node depends on itself"
	}

	return &ValidationError{
		NodeID:  nodeID,
		Field:   "depends_on",
		Message: msg,
		Cycle:   cycle,
		Err:     ErrCyclicDependency,
	}
}
