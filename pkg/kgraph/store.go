package kgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soundprediction/graphrag/pkg/docstore"
	"github.com/soundprediction/graphrag/pkg/types"
)

// Default collection ids, matching the persisted state layout.
const (
	DefaultNodeCollection      = "nodes"
	DefaultEdgeCollection      = "edges"
	DefaultCommunityCollection = "communities"
)

// StoreOptions configures a document-store backed knowledge graph.
type StoreOptions struct {
	NodeCollection      string
	EdgeCollection      string
	CommunityCollection string

	// Strict makes adjacency references to nonexistent nodes an error
	// instead of a silently skipped best-effort write.
	Strict bool

	Logger *slog.Logger
}

func (o *StoreOptions) withDefaults() *StoreOptions {
	out := &StoreOptions{}
	if o != nil {
		*out = *o
	}
	if out.NodeCollection == "" {
		out.NodeCollection = DefaultNodeCollection
	}
	if out.EdgeCollection == "" {
		out.EdgeCollection = DefaultEdgeCollection
	}
	if out.CommunityCollection == "" {
		out.CommunityCollection = DefaultCommunityCollection
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

// Store is a KnowledgeGraph persisted in a document store.
type Store struct {
	docs docstore.Store
	opts *StoreOptions
	log  *slog.Logger
}

// NewStore creates a knowledge graph on top of the given document store.
func NewStore(docs docstore.Store, opts *StoreOptions) *Store {
	o := opts.withDefaults()
	return &Store{docs: docs, opts: o, log: o.Logger}
}

func (s *Store) AddNode(ctx context.Context, uid string, data *types.NodeData) error {
	if err := data.Validate(); err != nil {
		return err
	}
	exists, err := s.docs.Exists(ctx, s.opts.NodeCollection, uid)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("node %q: %w", uid, types.ErrAlreadyExists)
	}

	data.NodeUID = uid
	data.NodeDegree = data.Degree()
	if err := s.putNode(ctx, data); err != nil {
		return err
	}

	// Extend the symmetric adjacency sets on referenced neighbors. A
	// neighbor that is not ingested yet is skipped unless strict mode is on.
	for _, neighbor := range data.EdgesTo {
		if err := s.patchAdjacency(ctx, neighbor, func(n *types.NodeData) {
			n.EdgesFrom = addToSet(n.EdgesFrom, uid)
		}); err != nil {
			if errors.Is(err, types.ErrNotFound) && !s.opts.Strict {
				continue
			}
			return err
		}
	}
	for _, neighbor := range data.EdgesFrom {
		if err := s.patchAdjacency(ctx, neighbor, func(n *types.NodeData) {
			n.EdgesTo = addToSet(n.EdgesTo, uid)
		}); err != nil {
			if errors.Is(err, types.ErrNotFound) && !s.opts.Strict {
				continue
			}
			return err
		}
	}
	return nil
}

func (s *Store) GetNode(ctx context.Context, uid string) (*types.NodeData, error) {
	raw, err := s.docs.Get(ctx, s.opts.NodeCollection, uid)
	if err != nil {
		return nil, err
	}
	var node types.NodeData
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("node %q does not deserialize: %w", uid, types.ErrMalformedRecord)
	}
	return &node, nil
}

func (s *Store) UpdateNode(ctx context.Context, uid string, data *types.NodeData) error {
	exists, err := s.docs.Exists(ctx, s.opts.NodeCollection, uid)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("node %q: %w", uid, types.ErrNotFound)
	}
	data.NodeUID = uid
	data.NodeDegree = data.Degree()
	return s.putNode(ctx, data)
}

func (s *Store) RemoveNode(ctx context.Context, uid string) error {
	node, err := s.GetNode(ctx, uid)
	if err != nil {
		return err
	}

	// Scrub the uid from every neighbor's adjacency sets and drop the
	// incident edge documents. Missing neighbors are tolerated, which also
	// opportunistically cleans up dangling references.
	for _, neighbor := range node.Neighbors() {
		err := s.patchAdjacency(ctx, neighbor, func(n *types.NodeData) {
			n.EdgesTo = removeFromSet(n.EdgesTo, uid)
			n.EdgesFrom = removeFromSet(n.EdgesFrom, uid)
		})
		if err != nil && !errors.Is(err, types.ErrNotFound) {
			return err
		}
		for _, edgeID := range []string{types.EdgeUID(uid, neighbor), types.EdgeUID(neighbor, uid)} {
			if err := s.docs.Delete(ctx, s.opts.EdgeCollection, edgeID); err != nil && !errors.Is(err, types.ErrNotFound) {
				return err
			}
		}
	}

	return s.docs.Delete(ctx, s.opts.NodeCollection, uid)
}

func (s *Store) NodeExists(ctx context.Context, uid string) (bool, error) {
	return s.docs.Exists(ctx, s.opts.NodeCollection, uid)
}

func (s *Store) ListNodes(ctx context.Context) ([]*types.NodeData, error) {
	raw, err := s.docs.List(ctx, s.opts.NodeCollection)
	if err != nil {
		return nil, err
	}
	nodes := make([]*types.NodeData, 0, len(raw))
	for uid, data := range raw {
		var node types.NodeData
		if err := json.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("node %q does not deserialize: %w", uid, types.ErrMalformedRecord)
		}
		nodes = append(nodes, &node)
	}
	return nodes, nil
}

func (s *Store) AddEdge(ctx context.Context, edge *types.EdgeData, directed bool) error {
	if err := edge.Validate(); err != nil {
		return err
	}
	for _, uid := range []string{edge.SourceUID, edge.TargetUID} {
		exists, err := s.docs.Exists(ctx, s.opts.NodeCollection, uid)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("edge endpoint %q: %w", uid, types.ErrNotFound)
		}
	}

	edge.EdgeUID = types.EdgeUID(edge.SourceUID, edge.TargetUID)
	raw, err := json.Marshal(edge)
	if err != nil {
		return fmt.Errorf("failed to serialize edge %q: %w", edge.EdgeUID, err)
	}
	if err := s.docs.Set(ctx, s.opts.EdgeCollection, edge.EdgeUID, raw); err != nil {
		return err
	}

	if err := s.patchAdjacency(ctx, edge.SourceUID, func(n *types.NodeData) {
		n.EdgesTo = addToSet(n.EdgesTo, edge.TargetUID)
		if !directed {
			n.EdgesFrom = addToSet(n.EdgesFrom, edge.TargetUID)
		}
	}); err != nil {
		return err
	}
	return s.patchAdjacency(ctx, edge.TargetUID, func(n *types.NodeData) {
		n.EdgesFrom = addToSet(n.EdgesFrom, edge.SourceUID)
		if !directed {
			n.EdgesTo = addToSet(n.EdgesTo, edge.SourceUID)
		}
	})
}

func (s *Store) GetEdge(ctx context.Context, sourceUID, targetUID string) (*types.EdgeData, error) {
	raw, err := s.docs.Get(ctx, s.opts.EdgeCollection, types.EdgeUID(sourceUID, targetUID))
	if err != nil {
		return nil, err
	}
	var edge types.EdgeData
	if err := json.Unmarshal(raw, &edge); err != nil {
		return nil, fmt.Errorf("edge %q does not deserialize: %w", types.EdgeUID(sourceUID, targetUID), types.ErrMalformedRecord)
	}
	return &edge, nil
}

func (s *Store) UpdateEdge(ctx context.Context, edge *types.EdgeData) error {
	edgeID := types.EdgeUID(edge.SourceUID, edge.TargetUID)
	exists, err := s.docs.Exists(ctx, s.opts.EdgeCollection, edgeID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("edge %q: %w", edgeID, types.ErrNotFound)
	}
	edge.EdgeUID = edgeID
	raw, err := json.Marshal(edge)
	if err != nil {
		return fmt.Errorf("failed to serialize edge %q: %w", edgeID, err)
	}
	return s.docs.Set(ctx, s.opts.EdgeCollection, edgeID, raw)
}

func (s *Store) RemoveEdge(ctx context.Context, sourceUID, targetUID string, directed bool) error {
	edgeID := types.EdgeUID(sourceUID, targetUID)
	if err := s.docs.Delete(ctx, s.opts.EdgeCollection, edgeID); err != nil {
		return err
	}

	if err := s.patchAdjacency(ctx, sourceUID, func(n *types.NodeData) {
		n.EdgesTo = removeFromSet(n.EdgesTo, targetUID)
		if !directed {
			n.EdgesFrom = removeFromSet(n.EdgesFrom, targetUID)
		}
	}); err != nil && !errors.Is(err, types.ErrNotFound) {
		return err
	}
	if err := s.patchAdjacency(ctx, targetUID, func(n *types.NodeData) {
		n.EdgesFrom = removeFromSet(n.EdgesFrom, sourceUID)
		if !directed {
			n.EdgesTo = removeFromSet(n.EdgesTo, sourceUID)
		}
	}); err != nil && !errors.Is(err, types.ErrNotFound) {
		return err
	}
	return nil
}

func (s *Store) EdgeExists(ctx context.Context, sourceUID, targetUID string) (bool, error) {
	return s.docs.Exists(ctx, s.opts.EdgeCollection, types.EdgeUID(sourceUID, targetUID))
}

func (s *Store) ListEdges(ctx context.Context) ([]*types.EdgeData, error) {
	raw, err := s.docs.List(ctx, s.opts.EdgeCollection)
	if err != nil {
		return nil, err
	}
	edges := make([]*types.EdgeData, 0, len(raw))
	for id, data := range raw {
		var edge types.EdgeData
		if err := json.Unmarshal(data, &edge); err != nil {
			return nil, fmt.Errorf("edge %q does not deserialize: %w", id, types.ErrMalformedRecord)
		}
		edges = append(edges, &edge)
	}
	return edges, nil
}

func (s *Store) StoreCommunity(ctx context.Context, community *types.CommunityData) error {
	if err := community.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(community)
	if err != nil {
		return fmt.Errorf("failed to serialize community %q: %w", community.CommunityUID, err)
	}
	return s.docs.Set(ctx, s.opts.CommunityCollection, community.CommunityUID, raw)
}

func (s *Store) GetCommunity(ctx context.Context, uid string) (*types.CommunityData, error) {
	raw, err := s.docs.Get(ctx, s.opts.CommunityCollection, uid)
	if err != nil {
		return nil, err
	}
	var community types.CommunityData
	if err := json.Unmarshal(raw, &community); err != nil {
		return nil, fmt.Errorf("community %q does not deserialize: %w", uid, types.ErrMalformedRecord)
	}
	return &community, nil
}

func (s *Store) ListCommunities(ctx context.Context) ([]*types.CommunityData, error) {
	raw, err := s.docs.List(ctx, s.opts.CommunityCollection)
	if err != nil {
		return nil, err
	}
	communities := make([]*types.CommunityData, 0, len(raw))
	for uid, data := range raw {
		var community types.CommunityData
		if err := json.Unmarshal(data, &community); err != nil {
			return nil, fmt.Errorf("community %q does not deserialize: %w", uid, types.ErrMalformedRecord)
		}
		communities = append(communities, &community)
	}
	return communities, nil
}

func (s *Store) RemoveCommunities(ctx context.Context) error {
	raw, err := s.docs.List(ctx, s.opts.CommunityCollection)
	if err != nil {
		return err
	}
	for uid := range raw {
		if err := s.docs.Delete(ctx, s.opts.CommunityCollection, uid); err != nil && !errors.Is(err, types.ErrNotFound) {
			return err
		}
	}
	return nil
}

// RepairAdjacency rebuilds the adjacency sets of every node from the edge
// collection. Use after a crash between the edge write and the node writes.
func (s *Store) RepairAdjacency(ctx context.Context) (int, error) {
	edges, err := s.ListEdges(ctx)
	if err != nil {
		return 0, err
	}
	nodes, err := s.ListNodes(ctx)
	if err != nil {
		return 0, err
	}

	expectedTo := make(map[string][]string)
	expectedFrom := make(map[string][]string)
	for _, e := range edges {
		expectedTo[e.SourceUID] = addToSet(expectedTo[e.SourceUID], e.TargetUID)
		expectedFrom[e.TargetUID] = addToSet(expectedFrom[e.TargetUID], e.SourceUID)
	}

	repaired := 0
	for _, node := range nodes {
		to := expectedTo[node.NodeUID]
		from := expectedFrom[node.NodeUID]
		if sameSet(node.EdgesTo, to) && sameSet(node.EdgesFrom, from) {
			continue
		}
		node.EdgesTo = to
		node.EdgesFrom = from
		if err := s.UpdateNode(ctx, node.NodeUID, node); err != nil {
			return repaired, err
		}
		s.log.Info("repaired adjacency", "node_uid", node.NodeUID)
		repaired++
	}
	return repaired, nil
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{LastUpdated: time.Now().UTC()}
	for _, c := range []struct {
		coll  string
		count *int
	}{
		{s.opts.NodeCollection, &stats.NodeCount},
		{s.opts.EdgeCollection, &stats.EdgeCount},
		{s.opts.CommunityCollection, &stats.CommunityCount},
	} {
		raw, err := s.docs.List(ctx, c.coll)
		if err != nil {
			return nil, err
		}
		*c.count = len(raw)
	}
	return stats, nil
}

func (s *Store) Close() error {
	return s.docs.Close()
}

func (s *Store) putNode(ctx context.Context, node *types.NodeData) error {
	raw, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to serialize node %q: %w", node.NodeUID, err)
	}
	return s.docs.Set(ctx, s.opts.NodeCollection, node.NodeUID, raw)
}

// patchAdjacency mutates a node document inside the docstore's per-key
// critical section, keeping concurrent adjacency writes race-free.
func (s *Store) patchAdjacency(ctx context.Context, uid string, patch func(*types.NodeData)) error {
	return s.docs.Update(ctx, s.opts.NodeCollection, uid, func(current []byte, exists bool) ([]byte, error) {
		if !exists {
			return nil, fmt.Errorf("node %q: %w", uid, types.ErrNotFound)
		}
		var node types.NodeData
		if err := json.Unmarshal(current, &node); err != nil {
			return nil, fmt.Errorf("node %q does not deserialize: %w", uid, types.ErrMalformedRecord)
		}
		patch(&node)
		node.NodeDegree = node.Degree()
		return json.Marshal(&node)
	})
}

func addToSet(set []string, uid string) []string {
	for _, existing := range set {
		if existing == uid {
			return set
		}
	}
	return append(set, uid)
}

func removeFromSet(set []string, uid string) []string {
	out := set[:0]
	for _, existing := range set {
		if existing != uid {
			out = append(out, existing)
		}
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, v := range a {
		seen[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := seen[v]; !ok {
			return false
		}
	}
	return true
}

var _ KnowledgeGraph = (*Store)(nil)
