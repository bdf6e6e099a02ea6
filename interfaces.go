package graphrag

import (
	"context"

	"github.com/soundprediction/graphrag/pkg/extract"
	"github.com/soundprediction/graphrag/pkg/kgraph"
	"github.com/soundprediction/graphrag/pkg/types"
)

// This file defines focused interfaces that follow the Interface Segregation
// Principle. The main GraphRAG interface is composed from these smaller
// interfaces; consumers should depend on the smallest interface that meets
// their needs.

// Ingestor merges extractor tuple streams into the knowledge graph.
type Ingestor interface {
	// Ingest parses one extractor stream and merges every record into the
	// graph. documentID identifies the source document.
	Ingest(ctx context.Context, stream, documentID string) (*extract.IngestResult, error)
}

// CommunityManager builds and summarizes the community hierarchy.
type CommunityManager interface {
	// BuildCommunities stabilizes the graph, clusters it hierarchically
	// and persists one community record per cluster per level.
	BuildCommunities(ctx context.Context) ([]*types.CommunityData, error)

	// GenerateReports summarizes every stored community in-process.
	GenerateReports(ctx context.Context) error

	// DispatchReports fans report generation out over the message bus and
	// returns the number of dispatched requests.
	DispatchReports(ctx context.Context) (int, error)

	// RefreshNodeEmbeddings recomputes the embedding of every node and
	// returns the number of updated nodes.
	RefreshNodeEmbeddings(ctx context.Context) (int, error)
}

// Querier answers global queries over the community hierarchy.
type Querier interface {
	// Answer runs the map-reduce query cycle and returns the synthesized
	// answer text.
	Answer(ctx context.Context, userQuery string) (string, error)
}

// GraphAccessor exposes the underlying knowledge graph for direct reads,
// repairs and statistics.
type GraphAccessor interface {
	// Graph returns the knowledge graph handle.
	Graph() kgraph.KnowledgeGraph
}

// GraphRAG is the top-level interface: ingest extractor streams, build the
// community hierarchy, answer global queries.
type GraphRAG interface {
	Ingestor
	CommunityManager
	Querier
	GraphAccessor

	// Close releases every held resource.
	Close() error
}
