package engine

import (
	"fmt"

	"github.com/shaiso/agen8/internal/domain"
)

// Node — узел в DAG.
type Node struct {
	// Def — определение узла из WorkflowGraph.
	Def *domain.Node

	// ID — идентификатор узла.
	ID string

	// Index — позиция узла в порядке объявления (для tie-break).
	Index int

	// Level — номер волны, в которой узел становится готовым.
	Level int

	// InDegree — количество входящих рёбер (уникальных зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел (в порядке depends_on, без дублей).
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// DAG — направленный ациклический граф узлов workflow.
type DAG struct {
	// Nodes — все узлы графа (nodeID → Node).
	Nodes map[string]*Node

	// Declared — узлы в порядке объявления.
	Declared []*Node

	// RootNodes — узлы без зависимостей (точки входа), в порядке объявления.
	RootNodes []*Node

	// Waves — волны готовых узлов: волна k содержит узлы, все зависимости
	// которых лежат в волнах < k. Внутри волны — порядок объявления.
	Waves [][]*Node

	// Order — топологический порядок (волны подряд).
	Order []*Node
}

// BuildDAG строит DAG из WorkflowGraph.
//
// Возвращает первую найденную структурную ошибку. Полный список ошибок
// собирает Validate; BuildDAG используется исполнителем как защитная проверка.
func BuildDAG(graph *domain.WorkflowGraph) (*DAG, error) {
	dag, err := linkGraph(graph)
	if err != nil {
		return nil, err
	}

	// Проверяем на циклы и строим волны
	if err := dag.buildWaves(); err != nil {
		return nil, err
	}

	return dag, nil
}

// linkGraph создаёт узлы и рёбра без топологической сортировки.
func linkGraph(graph *domain.WorkflowGraph) (*DAG, error) {
	if graph == nil || len(graph.Nodes) == 0 {
		return nil, ErrEmptyGraph
	}

	dag := &DAG{
		Nodes:    make(map[string]*Node, len(graph.Nodes)),
		Declared: make([]*Node, 0, len(graph.Nodes)),
	}

	// Первый проход: создаём все узлы
	for i := range graph.Nodes {
		if err := dag.addNode(&graph.Nodes[i], i); err != nil {
			return nil, err
		}
	}

	// Второй проход: связываем узлы по зависимостям
	for _, node := range dag.Declared {
		if err := dag.linkDependencies(node); err != nil {
			return nil, err
		}
	}

	dag.findRootNodes()
	return dag, nil
}

// addNode добавляет узел в DAG.
func (d *DAG) addNode(def *domain.Node, index int) error {
	if def.ID == "" {
		return NewValidationError("", "id",
			fmt.Sprintf("node %d has empty ID", index), ErrEmptyNodeID)
	}
	if _, exists := d.Nodes[def.ID]; exists {
		return NewValidationError(def.ID, "id",
			fmt.Sprintf("duplicate node ID: %s", def.ID), ErrDuplicateNodeID)
	}

	node := &Node{
		Def:        def,
		ID:         def.ID,
		Index:      index,
		DependsOn:  make([]*Node, 0, len(def.DependsOn)),
		Dependents: make([]*Node, 0),
	}
	d.Nodes[def.ID] = node
	d.Declared = append(d.Declared, node)
	return nil
}

// linkDependencies связывает узел с его зависимостями.
// Зависимость от самого себя тоже становится ребром и ловится как цикл.
func (d *DAG) linkDependencies(node *Node) error {
	for _, depID := range node.Def.DependsOn {
		depNode, exists := d.Nodes[depID]
		if !exists {
			return NewValidationError(node.ID, "depends_on",
				fmt.Sprintf("depends on unknown node: %s", depID), ErrUnresolvedDependency)
		}

		d.addEdge(depNode, node)
	}
	return nil
}

// addEdge добавляет ребро между узлами.
// Дополнительно проверяет на дубликаты, чтобы избежать двойного учета InDegree.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return // уже связаны
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// findRootNodes находит узлы без входящих рёбер.
func (d *DAG) findRootNodes() {
	d.RootNodes = make([]*Node, 0)
	for _, node := range d.Declared {
		if node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
}

// buildWaves выполняет топологическую сортировку (алгоритм Кана по уровням).
// Возвращает ошибку с последовательностью цикла, если не все узлы упорядочены.
func (d *DAG) buildWaves() error {
	// Копируем inDegree, чтобы не модифицировать оригинал
	inDegree := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	waves := make([][]*Node, 0)
	order := make([]*Node, 0, len(d.Nodes))

	current := make([]*Node, len(d.RootNodes))
	copy(current, d.RootNodes)

	for level := 0; len(current) > 0; level++ {
		waves = append(waves, current)

		// Узлы следующей волны отмечаем по индексу, чтобы сохранить порядок объявления
		readyNext := make(map[int]bool)
		for _, node := range current {
			node.Level = level
			order = append(order, node)

			for _, dependent := range node.Dependents {
				inDegree[dependent.ID]--
				if inDegree[dependent.ID] == 0 {
					readyNext[dependent.Index] = true
				}
			}
		}

		next := make([]*Node, 0, len(readyNext))
		for _, node := range d.Declared {
			if readyNext[node.Index] {
				next = append(next, node)
			}
		}
		current = next
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(d.Nodes) {
		cycles := findCycles(d.Declared)
		if len(cycles) > 0 {
			return newCycleError(cycles[0])
		}
		return ErrCyclicDependency
	}

	d.Waves = waves
	d.Order = order
	return nil
}

// findCycles ищет циклы обходом в глубину по рёбрам depends_on.
// Каждый back-edge даёт один цикл вида [a, b, ..., a].
func findCycles(nodes []*Node) [][]string {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(nodes))
	stack := make([]string, 0)
	cycles := make([][]string, 0)

	var visit func(n *Node)
	visit = func(n *Node) {
		color[n.ID] = gray
		stack = append(stack, n.ID)

		for _, dep := range n.DependsOn {
			switch color[dep.ID] {
			case white:
				visit(dep)
			case gray:
				// back-edge: цикл от dep до вершины стека
				start := len(stack) - 1
				for start >= 0 && stack[start] != dep.ID {
					start--
				}
				cycle := make([]string, 0, len(stack)-start+1)
				cycle = append(cycle, stack[start:]...)
				cycle = append(cycle, dep.ID)
				cycles = append(cycles, cycle)
			}
		}

		stack = stack[:len(stack)-1]
		color[n.ID] = black
	}

	for _, n := range nodes {
		if color[n.ID] == white {
			visit(n)
		}
	}

	return cycles
}

// GetNode возвращает узел по ID.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// OrderIDs возвращает топологический порядок как список ID.
func (d *DAG) OrderIDs() []string {
	ids := make([]string, len(d.Order))
	for i, node := range d.Order {
		ids[i] = node.ID
	}
	return ids
}
