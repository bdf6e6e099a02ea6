package community

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/soundprediction/graphrag/pkg/bus"
	"github.com/soundprediction/graphrag/pkg/embedder"
	"github.com/soundprediction/graphrag/pkg/kgraph"
	"github.com/soundprediction/graphrag/pkg/llm"
	"github.com/soundprediction/graphrag/pkg/types"
)

const (
	// MaxSummarizeConcurrency limits concurrent summarization calls.
	MaxSummarizeConcurrency = 10

	// DefaultReportTopic carries asynchronous report requests to workers.
	DefaultReportTopic = "community.reports"
)

// EngineOptions configures the community engine.
type EngineOptions struct {
	Leiden      LeidenConfig
	ReportTopic string
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Engine detects communities on the stabilized graph view and generates
// their reports.
type Engine struct {
	graph kgraph.KnowledgeGraph
	llm   llm.Client
	embed embedder.Client
	bus   bus.MessageBus
	opts  EngineOptions
	log   *slog.Logger
}

// NewEngine creates a community engine. The embedder and bus are optional;
// without a bus only the synchronous report path is available.
func NewEngine(graph kgraph.KnowledgeGraph, llmClient llm.Client, embedClient embedder.Client, messageBus bus.MessageBus, opts EngineOptions) *Engine {
	if opts.ReportTopic == "" {
		opts.ReportTopic = DefaultReportTopic
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		graph: graph,
		llm:   llmClient,
		embed: embedClient,
		bus:   messageBus,
		opts:  opts,
		log:   opts.Logger,
	}
}

// BuildCommunities stabilizes the graph, runs hierarchical Leiden and
// persists one CommunityData per cluster per level. Prior communities are
// removed first so repeated builds do not accumulate stale clusters.
// Reports are not generated here; see GenerateReports and DispatchReports.
func (e *Engine) BuildCommunities(ctx context.Context) ([]*types.CommunityData, error) {
	view, err := e.graph.BuildView(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to stabilize graph: %w", err)
	}
	if view.NodeCount() == 0 {
		e.log.Info("graph is empty, no communities to build")
		return nil, nil
	}

	levels, err := HierarchicalLeiden(view, e.opts.Leiden)
	if err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}

	if err := e.graph.RemoveCommunities(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear previous communities: %w", err)
	}

	var communities []*types.CommunityData
	for _, assignment := range levels {
		for clusterID, members := range clusterMembers(assignment.Clusters) {
			community := &types.CommunityData{
				CommunityUID:   fmt.Sprintf("community-%s", clusterID),
				CommunityNodes: members,
			}
			if err := e.graph.StoreCommunity(ctx, community); err != nil {
				return nil, fmt.Errorf("failed to store community %s: %w", community.CommunityUID, err)
			}
			communities = append(communities, community)

			// Record the level-0 membership on the nodes.
			if assignment.Level == 0 {
				for _, uid := range members {
					e.tagNode(ctx, uid, community.CommunityUID)
				}
			}
		}
	}

	sort.Slice(communities, func(i, j int) bool {
		return communities[i].CommunityUID < communities[j].CommunityUID
	})
	e.log.Info("built communities", "levels", len(levels), "communities", len(communities), "nodes", view.NodeCount())
	return communities, nil
}

func (e *Engine) tagNode(ctx context.Context, uid, communityUID string) {
	node, err := e.graph.GetNode(ctx, uid)
	if err != nil {
		e.log.Warn("failed to tag node with community", "node", uid, "error", err)
		return
	}
	node.CommunityID = communityUID
	if err := e.graph.UpdateNode(ctx, uid, node); err != nil {
		e.log.Warn("failed to tag node with community", "node", uid, "error", err)
	}
}

// GenerateReports summarizes every stored community in-process, bounded by
// MaxSummarizeConcurrency.
func (e *Engine) GenerateReports(ctx context.Context) error {
	communities, err := e.graph.ListCommunities(ctx)
	if err != nil {
		return err
	}

	sem := make(chan struct{}, MaxSummarizeConcurrency)
	var wg sync.WaitGroup
	errCh := make(chan error, len(communities))
	for _, community := range communities {
		wg.Add(1)
		go func(c *types.CommunityData) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if err := e.Summarize(ctx, c); err != nil {
				errCh <- fmt.Errorf("community %s: %w", c.CommunityUID, err)
			}
		}(community)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		// Summarize degrades on parse failures, so anything here is a
		// store or transport problem worth surfacing.
		return err
	}
	return nil
}

// DispatchReports fans report generation out over the bus, one message per
// community, for the stateless worker pool to pick up.
func (e *Engine) DispatchReports(ctx context.Context) (int, error) {
	if e.bus == nil {
		return 0, fmt.Errorf("no message bus configured")
	}
	communities, err := e.graph.ListCommunities(ctx)
	if err != nil {
		return 0, err
	}
	for _, community := range communities {
		payload, err := json.Marshal(&types.CommunityReportRequest{
			CommunityUID:   community.CommunityUID,
			CommunityNodes: community.CommunityNodes,
		})
		if err != nil {
			return 0, err
		}
		if err := e.bus.Publish(ctx, e.opts.ReportTopic, payload); err != nil {
			return 0, fmt.Errorf("failed to dispatch report request for %s: %w", community.CommunityUID, err)
		}
	}
	return len(communities), nil
}

// RefreshNodeEmbeddings recomputes the embedding of every node from its title
// and description, in batches, and returns the number of updated nodes.
func (e *Engine) RefreshNodeEmbeddings(ctx context.Context) (int, error) {
	if e.embed == nil {
		return 0, fmt.Errorf("no embedder configured")
	}
	nodes, err := e.graph.ListNodes(ctx)
	if err != nil {
		return 0, err
	}
	if len(nodes) == 0 {
		return 0, nil
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].NodeUID < nodes[j].NodeUID })
	texts := make([]string, len(nodes))
	for i, node := range nodes {
		texts[i] = node.NodeTitle
		if node.NodeDescription != "" {
			texts[i] += "\n" + node.NodeDescription
		}
	}

	vectors, err := e.embed.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed nodes: %w", err)
	}
	if len(vectors) != len(nodes) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d nodes", len(vectors), len(nodes))
	}

	updated := 0
	for i, node := range nodes {
		node.Embedding = vectors[i]
		if err := e.graph.UpdateNode(ctx, node.NodeUID, node); err != nil {
			return updated, fmt.Errorf("failed to store embedding for %s: %w", node.NodeUID, err)
		}
		updated++
	}
	e.log.Info("refreshed node embeddings", "nodes", updated)
	return updated, nil
}

func clusterMembers(clusters map[string]string) map[string][]string {
	members := make(map[string][]string)
	for uid, cluster := range clusters {
		members[cluster] = append(members[cluster], uid)
	}
	for _, uids := range members {
		sort.Strings(uids)
	}
	return members
}
