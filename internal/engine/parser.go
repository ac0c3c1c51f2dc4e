package engine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shaiso/agen8/internal/domain"
)

// graphDocument — JSON-документ графа от вызывающей стороны или планировщика.
//
// Планировщик может прислать execution_order — он игнорируется,
// порядок всегда вычисляется по depends_on.
type graphDocument struct {
	Name           string         `json:"workflow_name"`
	Description    string         `json:"description"`
	Nodes          []nodeDocument `json:"nodes"`
	ExecutionOrder []string       `json:"execution_order,omitempty"`
}

// nodeDocument — узел в JSON-документе.
// Поле action — устаревшее имя action_type из первых версий планировщика.
type nodeDocument struct {
	domain.Node
	Action string `json:"action,omitempty"`
}

// ParseGraph парсит WorkflowGraph из JSON.
//
// Неизвестные поля запрещены, чтобы опечатки планировщика
// (например, "depends" вместо "depends_on") не терялись молча.
func ParseGraph(data []byte) (*domain.WorkflowGraph, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc graphDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraphJSON, err)
	}

	graph := &domain.WorkflowGraph{
		Name:        doc.Name,
		Description: doc.Description,
		Nodes:       make([]domain.Node, len(doc.Nodes)),
	}

	for i, nd := range doc.Nodes {
		node := nd.Node
		if node.ActionType == "" {
			node.ActionType = nd.Action
		}
		if node.Params == nil {
			node.Params = make(map[string]any)
		}
		graph.Nodes[i] = node
	}

	return graph, nil
}

// MarshalGraph сериализует граф в канонический JSON.
func MarshalGraph(graph *domain.WorkflowGraph) ([]byte, error) {
	return json.Marshal(graph)
}
