package kgraph

import (
	"reflect"
	"testing"

	"github.com/soundprediction/graphrag/pkg/types"
)

func node(uid string) *types.NodeData {
	return &types.NodeData{NodeUID: uid, NodeTitle: uid}
}

func edge(source, target string, weight float64) *types.EdgeData {
	return &types.EdgeData{SourceUID: source, TargetUID: target, Weight: weight}
}

func TestBuildStableViewIsInsertionOrderIndependent(t *testing.T) {
	nodes := []*types.NodeData{node("A"), node("B"), node("C")}
	edges := []*types.EdgeData{edge("A", "B", 1), edge("B", "C", 2)}

	forward, err := BuildStableView(nodes, edges)
	if err != nil {
		t.Fatalf("BuildStableView error: %v", err)
	}
	backward, err := BuildStableView(
		[]*types.NodeData{node("C"), node("A"), node("B")},
		[]*types.EdgeData{edge("B", "C", 2), edge("A", "B", 1)},
	)
	if err != nil {
		t.Fatalf("BuildStableView error: %v", err)
	}

	if !reflect.DeepEqual(forward.Order, backward.Order) {
		t.Errorf("node order differs: %v vs %v", forward.Order, backward.Order)
	}
	if !reflect.DeepEqual(forward.Edges, backward.Edges) {
		t.Errorf("edge order differs: %v vs %v", forward.Edges, backward.Edges)
	}
}

func TestBuildStableViewOrdersEdgesCanonically(t *testing.T) {
	view, err := BuildStableView(
		[]*types.NodeData{node("B"), node("A")},
		[]*types.EdgeData{edge("B", "A", 1)},
	)
	if err != nil {
		t.Fatalf("BuildStableView error: %v", err)
	}
	if len(view.Edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(view.Edges))
	}
	if view.Edges[0].Source != "A" || view.Edges[0].Target != "B" {
		t.Errorf("edge = %s -> %s, want A -> B", view.Edges[0].Source, view.Edges[0].Target)
	}
}

func TestBuildStableViewSumsReversedDuplicateWeights(t *testing.T) {
	view, err := BuildStableView(
		[]*types.NodeData{node("A"), node("B")},
		[]*types.EdgeData{edge("A", "B", 2), edge("B", "A", 3)},
	)
	if err != nil {
		t.Fatalf("BuildStableView error: %v", err)
	}
	if len(view.Edges) != 1 {
		t.Fatalf("edges = %d, want 1 collapsed undirected edge", len(view.Edges))
	}
	if view.Edges[0].Weight != 5 {
		t.Errorf("weight = %v, want 5", view.Edges[0].Weight)
	}
}

func TestBuildStableViewRestrictsToLargestComponent(t *testing.T) {
	nodes := []*types.NodeData{node("A"), node("B"), node("C"), node("X"), node("Y")}
	edges := []*types.EdgeData{
		edge("A", "B", 1),
		edge("B", "C", 1),
		edge("X", "Y", 1),
	}

	view, err := BuildStableView(nodes, edges)
	if err != nil {
		t.Fatalf("BuildStableView error: %v", err)
	}
	want := []string{"A", "B", "C"}
	if !reflect.DeepEqual(view.Order, want) {
		t.Errorf("Order = %v, want %v", view.Order, want)
	}
	for _, uid := range []string{"X", "Y"} {
		if _, ok := view.Nodes[uid]; ok {
			t.Errorf("node %s from smaller component leaked into view", uid)
		}
	}
}

func TestBuildStableViewBreaksComponentTiesBySmallestUID(t *testing.T) {
	nodes := []*types.NodeData{node("A"), node("B"), node("X"), node("Y")}
	edges := []*types.EdgeData{edge("X", "Y", 1), edge("A", "B", 1)}

	view, err := BuildStableView(nodes, edges)
	if err != nil {
		t.Fatalf("BuildStableView error: %v", err)
	}
	want := []string{"A", "B"}
	if !reflect.DeepEqual(view.Order, want) {
		t.Errorf("Order = %v, want the component containing A", view.Order)
	}
}

func TestBuildStableViewDropsDanglingEdges(t *testing.T) {
	view, err := BuildStableView(
		[]*types.NodeData{node("A"), node("B")},
		[]*types.EdgeData{edge("A", "B", 1), edge("A", "GHOST", 1)},
	)
	if err != nil {
		t.Fatalf("BuildStableView error: %v", err)
	}
	if len(view.Edges) != 1 {
		t.Errorf("edges = %d, want 1 after dropping the dangling edge", len(view.Edges))
	}
}

func TestBuildStableViewDefaultsZeroWeights(t *testing.T) {
	view, err := BuildStableView(
		[]*types.NodeData{node("A"), node("B")},
		[]*types.EdgeData{edge("A", "B", 0)},
	)
	if err != nil {
		t.Fatalf("BuildStableView error: %v", err)
	}
	if view.Edges[0].Weight != 1.0 {
		t.Errorf("weight = %v, want 1.0 default", view.Edges[0].Weight)
	}
}

func TestViewNeighbors(t *testing.T) {
	view, err := BuildStableView(
		[]*types.NodeData{node("A"), node("B"), node("C")},
		[]*types.EdgeData{edge("B", "A", 1), edge("C", "A", 1)},
	)
	if err != nil {
		t.Fatalf("BuildStableView error: %v", err)
	}
	want := []string{"B", "C"}
	if got := view.Neighbors("A"); !reflect.DeepEqual(got, want) {
		t.Errorf("Neighbors(A) = %v, want %v", got, want)
	}
}
