package community

import (
	"context"
	"fmt"
	"testing"

	"github.com/soundprediction/graphrag/pkg/docstore"
	"github.com/soundprediction/graphrag/pkg/kgraph"
	"github.com/soundprediction/graphrag/pkg/llm"
	"github.com/soundprediction/graphrag/pkg/types"
)

// stubLLM replays a canned completion.
type stubLLM struct {
	content string
	err     error
	calls   int
}

func (s *stubLLM) Chat(ctx context.Context, messages []types.Message, opts *llm.GenerateOptions) (*types.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &types.Response{Content: s.content}, nil
}

func (s *stubLLM) ChatWithJSON(ctx context.Context, messages []types.Message, opts *llm.GenerateOptions, out any) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	return llm.DecodeJSON(s.content, out)
}

func (s *stubLLM) Close() error { return nil }

func newTestGraph(t *testing.T) *kgraph.Store {
	t.Helper()
	return kgraph.NewStore(docstore.NewMemoryStore(), nil)
}

// seedTriangles creates two triangles joined by one weak bridge.
func seedTriangles(t *testing.T, graph *kgraph.Store) {
	t.Helper()
	ctx := context.Background()
	nodes := []string{"A1", "A2", "A3", "B1", "B2", "B3"}
	for _, uid := range nodes {
		if err := graph.AddNode(ctx, uid, &types.NodeData{NodeUID: uid, NodeTitle: uid}); err != nil {
			t.Fatalf("AddNode(%s) error: %v", uid, err)
		}
	}
	edges := []struct {
		src, dst string
		weight   float64
	}{
		{"A1", "A2", 5}, {"A2", "A3", 5}, {"A1", "A3", 5},
		{"B1", "B2", 5}, {"B2", "B3", 5}, {"B1", "B3", 5},
		{"A3", "B1", 0.5},
	}
	for _, e := range edges {
		err := graph.AddEdge(ctx, &types.EdgeData{SourceUID: e.src, TargetUID: e.dst, Weight: e.weight}, false)
		if err != nil {
			t.Fatalf("AddEdge(%s,%s) error: %v", e.src, e.dst, err)
		}
	}
}

func TestHierarchicalLeidenIsDeterministic(t *testing.T) {
	graph := newTestGraph(t)
	seedTriangles(t, graph)
	view, err := graph.BuildView(context.Background())
	if err != nil {
		t.Fatalf("BuildView error: %v", err)
	}

	first, err := HierarchicalLeiden(view, DefaultLeidenConfig())
	if err != nil {
		t.Fatalf("HierarchicalLeiden error: %v", err)
	}
	second, err := HierarchicalLeiden(view, DefaultLeidenConfig())
	if err != nil {
		t.Fatalf("HierarchicalLeiden error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("levels differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		for uid, cluster := range first[i].Clusters {
			if second[i].Clusters[uid] != cluster {
				t.Errorf("level %d node %s: %s vs %s", i, uid, cluster, second[i].Clusters[uid])
			}
		}
	}
}

func TestHierarchicalLeidenSeparatesTriangles(t *testing.T) {
	graph := newTestGraph(t)
	seedTriangles(t, graph)
	view, err := graph.BuildView(context.Background())
	if err != nil {
		t.Fatalf("BuildView error: %v", err)
	}

	levels, err := HierarchicalLeiden(view, DefaultLeidenConfig())
	if err != nil {
		t.Fatalf("HierarchicalLeiden error: %v", err)
	}
	if len(levels) == 0 {
		t.Fatal("no levels produced")
	}

	base := levels[0].Clusters
	if len(base) != 6 {
		t.Fatalf("level 0 covers %d nodes, want 6", len(base))
	}
	if base["A1"] != base["A2"] || base["A2"] != base["A3"] {
		t.Errorf("triangle A split: %v", base)
	}
	if base["B1"] != base["B2"] || base["B2"] != base["B3"] {
		t.Errorf("triangle B split: %v", base)
	}
	if base["A1"] == base["B1"] {
		t.Errorf("triangles merged into one cluster: %v", base)
	}
}

func TestHierarchicalLeidenRecursesIntoLargeClusters(t *testing.T) {
	graph := newTestGraph(t)
	seedTriangles(t, graph)
	view, err := graph.BuildView(context.Background())
	if err != nil {
		t.Fatalf("BuildView error: %v", err)
	}

	cfg := DefaultLeidenConfig()
	cfg.MaxClusterSize = 2
	levels, err := HierarchicalLeiden(view, cfg)
	if err != nil {
		t.Fatalf("HierarchicalLeiden error: %v", err)
	}
	if len(levels) < 2 {
		t.Fatalf("levels = %d, want at least 2 with max_cluster_size 2", len(levels))
	}
}

func TestBuildCommunitiesStoresClustersAndTagsNodes(t *testing.T) {
	ctx := context.Background()
	graph := newTestGraph(t)
	seedTriangles(t, graph)

	engine := NewEngine(graph, &stubLLM{}, nil, nil, EngineOptions{})
	communities, err := engine.BuildCommunities(ctx)
	if err != nil {
		t.Fatalf("BuildCommunities error: %v", err)
	}
	if len(communities) < 2 {
		t.Fatalf("communities = %d, want at least 2", len(communities))
	}

	stored, err := graph.ListCommunities(ctx)
	if err != nil {
		t.Fatalf("ListCommunities error: %v", err)
	}
	if len(stored) != len(communities) {
		t.Errorf("stored %d communities, built %d", len(stored), len(communities))
	}

	node, err := graph.GetNode(ctx, "A1")
	if err != nil {
		t.Fatalf("GetNode error: %v", err)
	}
	if node.CommunityID == "" {
		t.Error("node A1 has no community tag after build")
	}
}

func TestSummarizeStoresParsedReport(t *testing.T) {
	ctx := context.Background()
	graph := newTestGraph(t)
	seedTriangles(t, graph)

	model := &stubLLM{content: `{
		"title": "Triangle A",
		"summary": "Three tightly linked entities.",
		"rating": 6.5,
		"rating_explanation": "Moderately central cluster.",
		"findings": [{"summary": "Dense core", "explanation": "All members interlink."}]
	}`}
	engine := NewEngine(graph, model, nil, nil, EngineOptions{})

	community := &types.CommunityData{
		CommunityUID:   "community-0.0",
		CommunityNodes: []string{"A1", "A2", "A3"},
	}
	if err := engine.Summarize(ctx, community); err != nil {
		t.Fatalf("Summarize error: %v", err)
	}

	stored, err := graph.GetCommunity(ctx, "community-0.0")
	if err != nil {
		t.Fatalf("GetCommunity error: %v", err)
	}
	if stored.Title != "Triangle A" {
		t.Errorf("Title = %q", stored.Title)
	}
	if stored.Rating != 6.5 {
		t.Errorf("Rating = %v, want 6.5", stored.Rating)
	}
	if len(stored.Findings) != 1 {
		t.Errorf("Findings = %d, want 1", len(stored.Findings))
	}
}

func TestSummarizeDegradesOnUnparseableReport(t *testing.T) {
	ctx := context.Background()
	graph := newTestGraph(t)
	seedTriangles(t, graph)

	model := &stubLLM{err: fmt.Errorf("%w: no JSON found", types.ErrParse)}
	engine := NewEngine(graph, model, nil, nil, EngineOptions{})

	members := []string{"B1", "B2", "B3"}
	community := &types.CommunityData{CommunityUID: "community-0.1", CommunityNodes: members}
	if err := engine.Summarize(ctx, community); err != nil {
		t.Fatalf("Summarize error: %v", err)
	}

	stored, err := graph.GetCommunity(ctx, "community-0.1")
	if err != nil {
		t.Fatalf("GetCommunity error: %v", err)
	}
	if stored.Title != fmt.Sprintf("%v", members) {
		t.Errorf("Title = %q, want member set rendering", stored.Title)
	}
	if stored.Summary != "" || stored.Rating != 0 || len(stored.Findings) != 0 {
		t.Errorf("degraded record not empty: %+v", stored)
	}
}

// stubEmbedder returns fixed-size vectors and records the embedded texts.
type stubEmbedder struct {
	texts []string
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.texts = append(s.texts, texts...)
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (s *stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	s.texts = append(s.texts, text)
	return []float32{1, 2, 3}, nil
}

func (s *stubEmbedder) Dimensions() int { return 3 }
func (s *stubEmbedder) Close() error    { return nil }

func TestRefreshNodeEmbeddings(t *testing.T) {
	ctx := context.Background()
	graph := newTestGraph(t)
	seedTriangles(t, graph)

	embed := &stubEmbedder{}
	engine := NewEngine(graph, &stubLLM{}, embed, nil, EngineOptions{})

	updated, err := engine.RefreshNodeEmbeddings(ctx)
	if err != nil {
		t.Fatalf("RefreshNodeEmbeddings error: %v", err)
	}
	if updated != 6 {
		t.Errorf("updated = %d, want 6", updated)
	}
	node, err := graph.GetNode(ctx, "A1")
	if err != nil {
		t.Fatalf("GetNode error: %v", err)
	}
	if len(node.Embedding) != 3 {
		t.Errorf("embedding = %v, want 3 dimensions", node.Embedding)
	}
}

func TestRefreshNodeEmbeddingsRequiresEmbedder(t *testing.T) {
	graph := newTestGraph(t)
	engine := NewEngine(graph, &stubLLM{}, nil, nil, EngineOptions{})
	if _, err := engine.RefreshNodeEmbeddings(context.Background()); err == nil {
		t.Fatal("expected error without an embedder")
	}
}

func TestSummarizeRejectsEmptyCommunity(t *testing.T) {
	graph := newTestGraph(t)
	engine := NewEngine(graph, &stubLLM{}, nil, nil, EngineOptions{})
	err := engine.Summarize(context.Background(), &types.CommunityData{CommunityUID: "community-x"})
	if err == nil {
		t.Fatal("expected error for empty community")
	}
}
