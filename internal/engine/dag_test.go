package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shaiso/agen8/internal/domain"
)

func TestBuildDAG_SimpleChain(t *testing.T) {
	graph := &domain.WorkflowGraph{
		Nodes: []domain.Node{
			{ID: "A", ActionType: "api_caller"},
			{ID: "B", ActionType: "delay", DependsOn: []string{"A"}},
			{ID: "C", ActionType: "transform", DependsOn: []string{"B"}},
		},
	}

	dag, err := BuildDAG(graph)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dag.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", dag.Size())
	}

	if len(dag.RootNodes) != 1 || dag.RootNodes[0].ID != "A" {
		t.Errorf("expected single root A, got %v", dag.RootNodes)
	}

	if got := dag.OrderIDs(); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("expected order [A B C], got %v", got)
	}

	if len(dag.Waves) != 3 {
		t.Errorf("expected 3 waves, got %d", len(dag.Waves))
	}
	if dag.GetNode("C").Level != 2 {
		t.Errorf("expected C at level 2, got %d", dag.GetNode("C").Level)
	}
}

func TestBuildDAG_Diamond(t *testing.T) {
	// A → B → D
	// A → C → D
	graph := &domain.WorkflowGraph{
		Nodes: []domain.Node{
			{ID: "A", ActionType: "api_caller"},
			{ID: "B", ActionType: "api_caller", DependsOn: []string{"A"}},
			{ID: "C", ActionType: "api_caller", DependsOn: []string{"A"}},
			{ID: "D", ActionType: "api_caller", DependsOn: []string{"B", "C"}},
		},
	}

	dag, err := BuildDAG(graph)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	nodeD := dag.GetNode("D")
	if len(nodeD.DependsOn) != 2 {
		t.Errorf("node D should have 2 dependencies, got %d", len(nodeD.DependsOn))
	}
	if nodeD.InDegree != 2 {
		t.Errorf("D should have inDegree 2, got %d", nodeD.InDegree)
	}

	if len(dag.Waves) != 3 {
		t.Fatalf("expected 3 waves, got %d", len(dag.Waves))
	}
	if len(dag.Waves[1]) != 2 || dag.Waves[1][0].ID != "B" || dag.Waves[1][1].ID != "C" {
		t.Errorf("expected wave 1 to be [B C], got %v", waveIDs(dag.Waves[1]))
	}
}

func TestBuildDAG_DeclarationOrderTieBreak(t *testing.T) {
	// Z объявлен раньше Y, оба готовы в одной волне
	graph := &domain.WorkflowGraph{
		Nodes: []domain.Node{
			{ID: "root", ActionType: "delay"},
			{ID: "Z", ActionType: "delay", DependsOn: []string{"root"}},
			{ID: "Y", ActionType: "delay", DependsOn: []string{"root"}},
			{ID: "X", ActionType: "delay"},
		},
	}

	dag, err := BuildDAG(graph)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"root", "X", "Z", "Y"}
	if got := dag.OrderIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected order %v, got %v", want, got)
	}
}

func TestBuildDAG_DuplicateDependencyCountedOnce(t *testing.T) {
	graph := &domain.WorkflowGraph{
		Nodes: []domain.Node{
			{ID: "A", ActionType: "delay"},
			{ID: "B", ActionType: "delay", DependsOn: []string{"A", "A"}},
		},
	}

	dag, err := BuildDAG(graph)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dag.GetNode("B").InDegree != 1 {
		t.Errorf("expected inDegree 1, got %d", dag.GetNode("B").InDegree)
	}
}

func TestBuildDAG_Errors(t *testing.T) {
	tests := []struct {
		name    string
		graph   *domain.WorkflowGraph
		wantErr error
	}{
		{
			name:    "nil graph",
			graph:   nil,
			wantErr: ErrEmptyGraph,
		},
		{
			name:    "no nodes",
			graph:   &domain.WorkflowGraph{},
			wantErr: ErrEmptyGraph,
		},
		{
			name: "empty id",
			graph: &domain.WorkflowGraph{Nodes: []domain.Node{
				{ID: "", ActionType: "delay"},
			}},
			wantErr: ErrEmptyNodeID,
		},
		{
			name: "duplicate id",
			graph: &domain.WorkflowGraph{Nodes: []domain.Node{
				{ID: "A", ActionType: "delay"},
				{ID: "A", ActionType: "delay"},
			}},
			wantErr: ErrDuplicateNodeID,
		},
		{
			name: "unknown dependency",
			graph: &domain.WorkflowGraph{Nodes: []domain.Node{
				{ID: "A", ActionType: "delay", DependsOn: []string{"ghost"}},
			}},
			wantErr: ErrUnresolvedDependency,
		},
		{
			name: "self dependency",
			graph: &domain.WorkflowGraph{Nodes: []domain.Node{
				{ID: "A", ActionType: "delay", DependsOn: []string{"A"}},
			}},
			wantErr: ErrCyclicDependency,
		},
		{
			name: "two node cycle",
			graph: &domain.WorkflowGraph{Nodes: []domain.Node{
				{ID: "A", ActionType: "delay", DependsOn: []string{"B"}},
				{ID: "B", ActionType: "delay", DependsOn: []string{"A"}},
			}},
			wantErr: ErrCyclicDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildDAG(tt.graph)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBuildDAG_CycleSequence(t *testing.T) {
	graph := &domain.WorkflowGraph{
		Nodes: []domain.Node{
			{ID: "start", ActionType: "delay"},
			{ID: "A", ActionType: "delay", DependsOn: []string{"start", "C"}},
			{ID: "B", ActionType: "delay", DependsOn: []string{"A"}},
			{ID: "C", ActionType: "delay", DependsOn: []string{"B"}},
		},
	}

	_, err := BuildDAG(graph)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	// Обход идёт по depends_on: A → C → B → A
	want := []string{"A", "C", "B", "A"}
	if !reflect.DeepEqual(vErr.Cycle, want) {
		t.Errorf("expected cycle %v, got %v", want, vErr.Cycle)
	}
	if vErr.Error() != "node A: cyclic dependency: A -> C -> B -> A" {
		t.Errorf("unexpected message: %s", vErr.Error())
	}
}

func waveIDs(wave []*Node) []string {
	ids := make([]string, len(wave))
	for i, n := range wave {
		ids[i] = n.ID
	}
	return ids
}
