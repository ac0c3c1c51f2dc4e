package engine

import (
	"errors"
	"fmt"

	"github.com/shaiso/agen8/internal/domain"
)

// Catalog — источник контрактов действий для валидации.
//
// Реализуется actions.Registry. Отдельный интерфейс нужен, чтобы engine
// не зависел от конкретных реализаций действий.
type Catalog interface {
	// Contract возвращает контракт действия, false — если действие не зарегистрировано.
	Contract(actionType string) (domain.ActionContract, bool)
}

// ValidationOutcome — результат валидации графа.
type ValidationOutcome struct {
	// Valid — граф можно исполнять.
	Valid bool `json:"valid"`

	// Errors — все ошибки первого нарушенного класса проверок.
	Errors []*ValidationError `json:"-"`
}

// Err возвращает все ошибки валидации одной ошибкой (nil для валидного графа).
func (o *ValidationOutcome) Err() error {
	if o == nil || o.Valid {
		return nil
	}
	errs := make([]error, len(o.Errors))
	for i, e := range o.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Messages возвращает тексты ошибок в порядке обнаружения.
func (o *ValidationOutcome) Messages() []string {
	msgs := make([]string, len(o.Errors))
	for i, e := range o.Errors {
		msgs[i] = e.Error()
	}
	return msgs
}

// Validate выполняет полную валидацию WorkflowGraph.
//
// Проверки идут классами, в порядке:
//  0. структура (непустой граф, непустые и уникальные ID)
//  1. существование действий в каталоге
//  2. существование зависимостей (depends_on и tolerate_failed)
//  3. отсутствие циклов
//  4. обязательные параметры и их типы
//
// Внутри класса собираются все нарушения; следующий класс не проверяется,
// если в текущем есть ошибки.
func Validate(graph *domain.WorkflowGraph, catalog Catalog) *ValidationOutcome {
	checks := []func(*domain.WorkflowGraph, Catalog) []*ValidationError{
		checkStructure,
		checkActions,
		checkDependencies,
		checkCycles,
		checkParams,
	}

	for _, check := range checks {
		if errs := check(graph, catalog); len(errs) > 0 {
			return &ValidationOutcome{Valid: false, Errors: errs}
		}
	}

	return &ValidationOutcome{Valid: true}
}

// checkStructure проверяет непустой граф и уникальность ID.
func checkStructure(graph *domain.WorkflowGraph, _ Catalog) []*ValidationError {
	if graph == nil || len(graph.Nodes) == 0 {
		return []*ValidationError{NewValidationError("", "nodes", "workflow graph has no nodes", ErrEmptyGraph)}
	}

	var errs []*ValidationError
	seen := make(map[string]bool, len(graph.Nodes))

	for i := range graph.Nodes {
		node := &graph.Nodes[i]

		if node.ID == "" {
			errs = append(errs, NewValidationError("", "id",
				fmt.Sprintf("node %d has empty ID", i), ErrEmptyNodeID))
			continue
		}

		if seen[node.ID] {
			errs = append(errs, NewValidationError(node.ID, "id",
				fmt.Sprintf("duplicate node ID: %s", node.ID), ErrDuplicateNodeID))
			continue
		}
		seen[node.ID] = true
	}

	return errs
}

// checkActions проверяет, что action_type каждого узла есть в каталоге.
func checkActions(graph *domain.WorkflowGraph, catalog Catalog) []*ValidationError {
	var errs []*ValidationError

	for i := range graph.Nodes {
		node := &graph.Nodes[i]

		if node.ActionType == "" {
			errs = append(errs, NewValidationError(node.ID, "action_type",
				"node has empty action type", ErrUnknownAction))
			continue
		}

		if catalog == nil {
			errs = append(errs, NewValidationError(node.ID, "action_type",
				fmt.Sprintf("unknown action: %s", node.ActionType), ErrUnknownAction))
			continue
		}

		if _, ok := catalog.Contract(node.ActionType); !ok {
			errs = append(errs, NewValidationError(node.ID, "action_type",
				fmt.Sprintf("unknown action: %s", node.ActionType), ErrUnknownAction))
		}
	}

	return errs
}

// checkDependencies проверяет, что все depends_on ссылаются на существующие узлы,
// а tolerate_failed — только на объявленные зависимости.
func checkDependencies(graph *domain.WorkflowGraph, _ Catalog) []*ValidationError {
	ids := make(map[string]bool, len(graph.Nodes))
	for i := range graph.Nodes {
		ids[graph.Nodes[i].ID] = true
	}

	var errs []*ValidationError

	for i := range graph.Nodes {
		node := &graph.Nodes[i]

		for _, dep := range node.DependsOn {
			if !ids[dep] {
				errs = append(errs, NewValidationError(node.ID, "depends_on",
					fmt.Sprintf("depends on unknown node: %s", dep), ErrUnresolvedDependency))
			}
		}

		for _, dep := range node.TolerateFailed {
			if !containsString(node.DependsOn, dep) {
				errs = append(errs, NewValidationError(node.ID, "tolerate_failed",
					fmt.Sprintf("tolerates failure of %s which is not in depends_on", dep), ErrUnresolvedDependency))
			}
		}
	}

	return errs
}

// checkCycles ищет все циклы в графе.
func checkCycles(graph *domain.WorkflowGraph, _ Catalog) []*ValidationError {
	dag, err := linkGraph(graph)
	if err != nil {
		// Предыдущие классы уже исключили структурные ошибки
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			return []*ValidationError{vErr}
		}
		return []*ValidationError{NewValidationError("", "nodes", err.Error(), err)}
	}

	cycles := findCycles(dag.Declared)
	errs := make([]*ValidationError, 0, len(cycles))
	for _, cycle := range cycles {
		errs = append(errs, newCycleError(cycle))
	}
	return errs
}

// checkParams проверяет обязательные параметры и типы известных параметров.
func checkParams(graph *domain.WorkflowGraph, catalog Catalog) []*ValidationError {
	var errs []*ValidationError

	for i := range graph.Nodes {
		node := &graph.Nodes[i]

		contract, ok := catalog.Contract(node.ActionType)
		if !ok {
			continue
		}

		for _, spec := range contract.Params {
			value, present := node.Params[spec.Name]

			if !present || value == nil {
				if spec.Required {
					errs = append(errs, NewValidationError(node.ID, "params."+spec.Name,
						fmt.Sprintf("action %s requires parameter %q", node.ActionType, spec.Name), ErrMissingParameter))
				}
				continue
			}

			// Шаблон рендерится в строку только при выполнении — тип проверить нельзя
			if s, isString := value.(string); isString && IsTemplate(s) {
				continue
			}

			if !spec.Type.Accepts(value) {
				errs = append(errs, NewValidationError(node.ID, "params."+spec.Name,
					fmt.Sprintf("parameter %q must be %s, got %T", spec.Name, spec.Type, value), ErrInvalidParameter))
			}
		}
	}

	return errs
}

func containsString(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}
