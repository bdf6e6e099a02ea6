package kgraph

import (
	"context"
	"fmt"
	"sort"

	"github.com/soundprediction/graphrag/pkg/types"
)

// ViewEdge is one undirected edge of a stabilized view, with endpoints in
// canonical order (Source <= Target).
type ViewEdge struct {
	Source string
	Target string
	Weight float64
}

// View is a deterministic in-memory undirected projection of the graph.
// For the same logical graph contents the node and edge iteration order is
// identical regardless of insertion history, so clustering observes a stable
// input.
type View struct {
	// Order holds the node uids sorted lexicographically.
	Order []string
	// Nodes indexes the node documents by uid.
	Nodes map[string]*types.NodeData
	// Edges holds the canonically ordered edges sorted by "{source} -> {target}".
	Edges []ViewEdge

	adjacency map[string][]string
}

// Neighbors returns the sorted undirected neighbor list of a node.
func (v *View) Neighbors(uid string) []string {
	return v.adjacency[uid]
}

// NodeCount returns the number of nodes in the view.
func (v *View) NodeCount() int { return len(v.Order) }

// BuildStableView stabilizes a set of node and edge documents:
//
//  1. normalize node ids to their canonical form
//  2. restrict to the largest connected component
//  3. sort nodes by uid and order each undirected edge so source <= target,
//     then sort edges lexicographically
//
// Edge weights of duplicate (reversed) document pairs are summed.
func BuildStableView(nodes []*types.NodeData, edges []*types.EdgeData) (*View, error) {
	index := make(map[string]*types.NodeData, len(nodes))
	for _, n := range nodes {
		uid := types.Canonicalize(n.NodeUID)
		index[uid] = n
	}

	type edgeKey struct{ source, target string }
	weights := make(map[edgeKey]float64)
	adjacency := make(map[string]map[string]struct{}, len(index))
	for uid := range index {
		adjacency[uid] = make(map[string]struct{})
	}
	for _, e := range edges {
		source := types.Canonicalize(e.SourceUID)
		target := types.Canonicalize(e.TargetUID)
		if _, ok := index[source]; !ok {
			continue
		}
		if _, ok := index[target]; !ok {
			continue
		}
		if source > target {
			source, target = target, source
		}
		weight := e.Weight
		if weight == 0 {
			weight = 1.0
		}
		weights[edgeKey{source, target}] += weight
		adjacency[source][target] = struct{}{}
		adjacency[target][source] = struct{}{}
	}

	component := largestComponent(index, adjacency)

	view := &View{
		Nodes:     make(map[string]*types.NodeData, len(component)),
		adjacency: make(map[string][]string, len(component)),
	}
	for uid := range component {
		view.Order = append(view.Order, uid)
		view.Nodes[uid] = index[uid]
	}
	sort.Strings(view.Order)

	for key, weight := range weights {
		if _, ok := component[key.source]; !ok {
			continue
		}
		view.Edges = append(view.Edges, ViewEdge{Source: key.source, Target: key.target, Weight: weight})
	}
	sort.Slice(view.Edges, func(i, j int) bool {
		a := fmt.Sprintf("%s -> %s", view.Edges[i].Source, view.Edges[i].Target)
		b := fmt.Sprintf("%s -> %s", view.Edges[j].Source, view.Edges[j].Target)
		return a < b
	})

	for _, uid := range view.Order {
		neighbors := make([]string, 0, len(adjacency[uid]))
		for n := range adjacency[uid] {
			if _, ok := component[n]; ok {
				neighbors = append(neighbors, n)
			}
		}
		sort.Strings(neighbors)
		view.adjacency[uid] = neighbors
	}

	return view, nil
}

// largestComponent returns the member set of the largest connected component,
// breaking size ties by the smallest member uid so the choice is stable.
func largestComponent(index map[string]*types.NodeData, adjacency map[string]map[string]struct{}) map[string]struct{} {
	uids := make([]string, 0, len(index))
	for uid := range index {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	visited := make(map[string]struct{}, len(uids))
	var best map[string]struct{}
	for _, start := range uids {
		if _, ok := visited[start]; ok {
			continue
		}
		component := make(map[string]struct{})
		queue := []string{start}
		visited[start] = struct{}{}
		for len(queue) > 0 {
			uid := queue[0]
			queue = queue[1:]
			component[uid] = struct{}{}
			for neighbor := range adjacency[uid] {
				if _, ok := visited[neighbor]; !ok {
					visited[neighbor] = struct{}{}
					queue = append(queue, neighbor)
				}
			}
		}
		// Sorted traversal means the first component of the maximal size
		// wins, which is the tie-break with the smallest member uid.
		if len(component) > len(best) {
			best = component
		}
	}
	if best == nil {
		best = make(map[string]struct{})
	}
	return best
}

// BuildView materializes the stabilized undirected view of the stored graph.
func (s *Store) BuildView(ctx context.Context) (*View, error) {
	nodes, err := s.ListNodes(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := s.ListEdges(ctx)
	if err != nil {
		return nil, err
	}
	return BuildStableView(nodes, edges)
}
