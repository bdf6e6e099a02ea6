package kgraph

import (
	"context"
	"time"

	"github.com/soundprediction/graphrag/pkg/types"
)

// This file defines focused interfaces following the Interface Segregation
// Principle. The full KnowledgeGraph interface is composed from these smaller
// interfaces; consumers should depend on the smallest one that meets their
// needs.

// NodeStore provides operations for managing nodes in the graph.
type NodeStore interface {
	// AddNode persists a new node and extends the symmetric adjacency sets
	// of every neighbor it names. Fails with types.ErrAlreadyExists when the
	// uid is present. Missing neighbors are skipped unless the store runs in
	// strict mode.
	AddNode(ctx context.Context, uid string, data *types.NodeData) error

	// GetNode retrieves a node, failing with types.ErrNotFound when absent
	// and types.ErrMalformedRecord when the stored document does not
	// deserialize.
	GetNode(ctx context.Context, uid string) (*types.NodeData, error)

	// UpdateNode fully replaces an existing node document.
	UpdateNode(ctx context.Context, uid string, data *types.NodeData) error

	// RemoveNode deletes a node after scrubbing its uid from every
	// neighbor's adjacency sets. Missing neighbors are tolerated.
	RemoveNode(ctx context.Context, uid string) error

	// NodeExists reports whether a node document is present.
	NodeExists(ctx context.Context, uid string) (bool, error)

	// ListNodes returns every node document.
	ListNodes(ctx context.Context) ([]*types.NodeData, error)
}

// EdgeStore provides operations for managing edges in the graph.
type EdgeStore interface {
	// AddEdge writes the edge document and updates adjacency on both
	// endpoints, which must already exist. For directed=false the adjacency
	// is made symmetric in both directions.
	AddEdge(ctx context.Context, edge *types.EdgeData, directed bool) error

	// GetEdge retrieves the edge document stored under
	// "{source}_to_{target}".
	GetEdge(ctx context.Context, sourceUID, targetUID string) (*types.EdgeData, error)

	// UpdateEdge fully replaces an existing edge document.
	UpdateEdge(ctx context.Context, edge *types.EdgeData) error

	// RemoveEdge deletes the edge document and withdraws the matching
	// adjacency entries.
	RemoveEdge(ctx context.Context, sourceUID, targetUID string, directed bool) error

	// EdgeExists reports whether an edge document is present.
	EdgeExists(ctx context.Context, sourceUID, targetUID string) (bool, error)

	// ListEdges returns every edge document.
	ListEdges(ctx context.Context) ([]*types.EdgeData, error)
}

// CommunityStore provides operations for persisted community reports.
type CommunityStore interface {
	// StoreCommunity creates or overwrites a community report.
	StoreCommunity(ctx context.Context, community *types.CommunityData) error

	// GetCommunity retrieves a community report by uid.
	GetCommunity(ctx context.Context, uid string) (*types.CommunityData, error)

	// ListCommunities returns every stored community report.
	ListCommunities(ctx context.Context) ([]*types.CommunityData, error)

	// RemoveCommunities deletes all stored community reports.
	RemoveCommunities(ctx context.Context) error
}

// GraphAdmin provides maintenance operations.
type GraphAdmin interface {
	// BuildView materializes the deterministic undirected view used as
	// clustering input.
	BuildView(ctx context.Context) (*View, error)

	// RepairAdjacency rebuilds the adjacency sets from the edge collection
	// and returns the number of repaired node documents.
	RepairAdjacency(ctx context.Context) (int, error)

	// Stats returns collection counts.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases all resources held by the store.
	Close() error
}

// KnowledgeGraph is the full graph-store contract.
type KnowledgeGraph interface {
	NodeStore
	EdgeStore
	CommunityStore
	GraphAdmin
}

// Stats holds collection counts for the graph store.
type Stats struct {
	NodeCount      int       `json:"node_count"`
	EdgeCount      int       `json:"edge_count"`
	CommunityCount int       `json:"community_count"`
	LastUpdated    time.Time `json:"last_updated"`
}
