package kgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/soundprediction/graphrag/pkg/types"
)

// Neo4jGraph is a KnowledgeGraph stored in Neo4j. Node, edge and community
// documents are kept as JSON property blobs on labeled nodes so the layout
// mirrors the document-store backend; Cypher gives the collection scans.
type Neo4jGraph struct {
	client   neo4j.DriverWithContext
	database string

	// strict makes adjacency references to nonexistent nodes an error
	// instead of a silently skipped best-effort write.
	strict bool
}

// NewNeo4jGraph connects to a Neo4j instance.
func NewNeo4jGraph(uri, username, password, database string, strict bool) (*Neo4jGraph, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jGraph{client: client, database: database, strict: strict}, nil
}

const (
	labelNode      = "KGNode"
	labelEdge      = "KGEdge"
	labelCommunity = "KGCommunity"
)

func (g *Neo4jGraph) session(ctx context.Context) neo4j.SessionWithContext {
	return g.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: g.database})
}

func (g *Neo4jGraph) getDoc(ctx context.Context, label, uid string) ([]byte, error) {
	session := g.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf("MATCH (d:%s {uid: $uid}) RETURN d.doc AS doc", label),
			map[string]any{"uid": uid})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, fmt.Errorf("document %q: %w", uid, types.ErrNotFound)
		}
		doc, _ := record.Get("doc")
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	doc, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("document %q has no doc property: %w", uid, types.ErrMalformedRecord)
	}
	return []byte(doc), nil
}

func (g *Neo4jGraph) setDoc(ctx context.Context, label, uid string, doc []byte) error {
	session := g.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, fmt.Sprintf("MERGE (d:%s {uid: $uid}) SET d.doc = $doc", label),
			map[string]any{"uid": uid, "doc": string(doc)})
	})
	if err != nil {
		return fmt.Errorf("failed to write document %q: %w", uid, err)
	}
	return nil
}

func (g *Neo4jGraph) deleteDoc(ctx context.Context, label, uid string) error {
	session := g.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf("MATCH (d:%s {uid: $uid}) DETACH DELETE d RETURN count(d) AS deleted", label),
			map[string]any{"uid": uid})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		deleted, _ := record.Get("deleted")
		return deleted, nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete document %q: %w", uid, err)
	}
	if deleted, ok := result.(int64); ok && deleted == 0 {
		return fmt.Errorf("document %q: %w", uid, types.ErrNotFound)
	}
	return nil
}

func (g *Neo4jGraph) existsDoc(ctx context.Context, label, uid string) (bool, error) {
	session := g.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf("MATCH (d:%s {uid: $uid}) RETURN count(d) AS n", label),
			map[string]any{"uid": uid})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _ := record.Get("n")
		return n, nil
	})
	if err != nil {
		return false, err
	}
	n, _ := result.(int64)
	return n > 0, nil
}

func (g *Neo4jGraph) listDocs(ctx context.Context, label string) (map[string][]byte, error) {
	session := g.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf("MATCH (d:%s) RETURN d.uid AS uid, d.doc AS doc", label), nil)
		if err != nil {
			return nil, err
		}
		out := make(map[string][]byte)
		for res.Next(ctx) {
			record := res.Record()
			uid, _ := record.Get("uid")
			doc, _ := record.Get("doc")
			uidStr, ok1 := uid.(string)
			docStr, ok2 := doc.(string)
			if !ok1 || !ok2 {
				continue
			}
			out[uidStr] = []byte(docStr)
		}
		return out, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", label, err)
	}
	return result.(map[string][]byte), nil
}

func (g *Neo4jGraph) AddNode(ctx context.Context, uid string, data *types.NodeData) error {
	if err := data.Validate(); err != nil {
		return err
	}
	exists, err := g.existsDoc(ctx, labelNode, uid)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("node %q: %w", uid, types.ErrAlreadyExists)
	}
	data.NodeUID = uid
	data.NodeDegree = data.Degree()
	if err := g.putNode(ctx, data); err != nil {
		return err
	}
	for _, neighbor := range data.EdgesTo {
		if err := g.patchNode(ctx, neighbor, func(n *types.NodeData) {
			n.EdgesFrom = addToSet(n.EdgesFrom, uid)
		}); err != nil {
			if errors.Is(err, types.ErrNotFound) && !g.strict {
				continue
			}
			return err
		}
	}
	for _, neighbor := range data.EdgesFrom {
		if err := g.patchNode(ctx, neighbor, func(n *types.NodeData) {
			n.EdgesTo = addToSet(n.EdgesTo, uid)
		}); err != nil {
			if errors.Is(err, types.ErrNotFound) && !g.strict {
				continue
			}
			return err
		}
	}
	return nil
}

func (g *Neo4jGraph) GetNode(ctx context.Context, uid string) (*types.NodeData, error) {
	raw, err := g.getDoc(ctx, labelNode, uid)
	if err != nil {
		return nil, err
	}
	var node types.NodeData
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("node %q does not deserialize: %w", uid, types.ErrMalformedRecord)
	}
	return &node, nil
}

func (g *Neo4jGraph) UpdateNode(ctx context.Context, uid string, data *types.NodeData) error {
	exists, err := g.existsDoc(ctx, labelNode, uid)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("node %q: %w", uid, types.ErrNotFound)
	}
	data.NodeUID = uid
	data.NodeDegree = data.Degree()
	return g.putNode(ctx, data)
}

func (g *Neo4jGraph) RemoveNode(ctx context.Context, uid string) error {
	node, err := g.GetNode(ctx, uid)
	if err != nil {
		return err
	}
	for _, neighbor := range node.Neighbors() {
		_ = g.patchNode(ctx, neighbor, func(n *types.NodeData) {
			n.EdgesTo = removeFromSet(n.EdgesTo, uid)
			n.EdgesFrom = removeFromSet(n.EdgesFrom, uid)
		})
		_ = g.deleteDoc(ctx, labelEdge, types.EdgeUID(uid, neighbor))
		_ = g.deleteDoc(ctx, labelEdge, types.EdgeUID(neighbor, uid))
	}
	return g.deleteDoc(ctx, labelNode, uid)
}

func (g *Neo4jGraph) NodeExists(ctx context.Context, uid string) (bool, error) {
	return g.existsDoc(ctx, labelNode, uid)
}

func (g *Neo4jGraph) ListNodes(ctx context.Context) ([]*types.NodeData, error) {
	raw, err := g.listDocs(ctx, labelNode)
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

func (g *Neo4jGraph) AddEdge(ctx context.Context, edge *types.EdgeData, directed bool) error {
	if err := edge.Validate(); err != nil {
		return err
	}
	for _, uid := range []string{edge.SourceUID, edge.TargetUID} {
		exists, err := g.existsDoc(ctx, labelNode, uid)
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
	if err := g.setDoc(ctx, labelEdge, edge.EdgeUID, raw); err != nil {
		return err
	}
	if err := g.patchNode(ctx, edge.SourceUID, func(n *types.NodeData) {
		n.EdgesTo = addToSet(n.EdgesTo, edge.TargetUID)
		if !directed {
			n.EdgesFrom = addToSet(n.EdgesFrom, edge.TargetUID)
		}
	}); err != nil {
		return err
	}
	return g.patchNode(ctx, edge.TargetUID, func(n *types.NodeData) {
		n.EdgesFrom = addToSet(n.EdgesFrom, edge.SourceUID)
		if !directed {
			n.EdgesTo = addToSet(n.EdgesTo, edge.SourceUID)
		}
	})
}

func (g *Neo4jGraph) GetEdge(ctx context.Context, sourceUID, targetUID string) (*types.EdgeData, error) {
	raw, err := g.getDoc(ctx, labelEdge, types.EdgeUID(sourceUID, targetUID))
	if err != nil {
		return nil, err
	}
	var edge types.EdgeData
	if err := json.Unmarshal(raw, &edge); err != nil {
		return nil, fmt.Errorf("edge %q does not deserialize: %w", types.EdgeUID(sourceUID, targetUID), types.ErrMalformedRecord)
	}
	return &edge, nil
}

func (g *Neo4jGraph) UpdateEdge(ctx context.Context, edge *types.EdgeData) error {
	edgeID := types.EdgeUID(edge.SourceUID, edge.TargetUID)
	exists, err := g.existsDoc(ctx, labelEdge, edgeID)
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
	return g.setDoc(ctx, labelEdge, edgeID, raw)
}

func (g *Neo4jGraph) RemoveEdge(ctx context.Context, sourceUID, targetUID string, directed bool) error {
	if err := g.deleteDoc(ctx, labelEdge, types.EdgeUID(sourceUID, targetUID)); err != nil {
		return err
	}
	_ = g.patchNode(ctx, sourceUID, func(n *types.NodeData) {
		n.EdgesTo = removeFromSet(n.EdgesTo, targetUID)
		if !directed {
			n.EdgesFrom = removeFromSet(n.EdgesFrom, targetUID)
		}
	})
	_ = g.patchNode(ctx, targetUID, func(n *types.NodeData) {
		n.EdgesFrom = removeFromSet(n.EdgesFrom, sourceUID)
		if !directed {
			n.EdgesTo = removeFromSet(n.EdgesTo, sourceUID)
		}
	})
	return nil
}

func (g *Neo4jGraph) EdgeExists(ctx context.Context, sourceUID, targetUID string) (bool, error) {
	return g.existsDoc(ctx, labelEdge, types.EdgeUID(sourceUID, targetUID))
}

func (g *Neo4jGraph) ListEdges(ctx context.Context) ([]*types.EdgeData, error) {
	raw, err := g.listDocs(ctx, labelEdge)
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

func (g *Neo4jGraph) StoreCommunity(ctx context.Context, community *types.CommunityData) error {
	if err := community.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(community)
	if err != nil {
		return fmt.Errorf("failed to serialize community %q: %w", community.CommunityUID, err)
	}
	return g.setDoc(ctx, labelCommunity, community.CommunityUID, raw)
}

func (g *Neo4jGraph) GetCommunity(ctx context.Context, uid string) (*types.CommunityData, error) {
	raw, err := g.getDoc(ctx, labelCommunity, uid)
	if err != nil {
		return nil, err
	}
	var community types.CommunityData
	if err := json.Unmarshal(raw, &community); err != nil {
		return nil, fmt.Errorf("community %q does not deserialize: %w", uid, types.ErrMalformedRecord)
	}
	return &community, nil
}

func (g *Neo4jGraph) ListCommunities(ctx context.Context) ([]*types.CommunityData, error) {
	raw, err := g.listDocs(ctx, labelCommunity)
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

func (g *Neo4jGraph) RemoveCommunities(ctx context.Context) error {
	session := g.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, fmt.Sprintf("MATCH (d:%s) DETACH DELETE d", labelCommunity), nil)
	})
	if err != nil {
		return fmt.Errorf("failed to remove communities: %w", err)
	}
	return nil
}

func (g *Neo4jGraph) BuildView(ctx context.Context) (*View, error) {
	nodes, err := g.ListNodes(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := g.ListEdges(ctx)
	if err != nil {
		return nil, err
	}
	return BuildStableView(nodes, edges)
}

func (g *Neo4jGraph) RepairAdjacency(ctx context.Context) (int, error) {
	edges, err := g.ListEdges(ctx)
	if err != nil {
		return 0, err
	}
	nodes, err := g.ListNodes(ctx)
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
		if err := g.UpdateNode(ctx, node.NodeUID, node); err != nil {
			return repaired, err
		}
		repaired++
	}
	return repaired, nil
}

func (g *Neo4jGraph) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{LastUpdated: time.Now().UTC()}
	for _, c := range []struct {
		label string
		count *int
	}{
		{labelNode, &stats.NodeCount},
		{labelEdge, &stats.EdgeCount},
		{labelCommunity, &stats.CommunityCount},
	} {
		raw, err := g.listDocs(ctx, c.label)
		if err != nil {
			return nil, err
		}
		*c.count = len(raw)
	}
	return stats, nil
}

func (g *Neo4jGraph) Close() error {
	return g.client.Close(context.Background())
}

func (g *Neo4jGraph) putNode(ctx context.Context, node *types.NodeData) error {
	raw, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to serialize node %q: %w", node.NodeUID, err)
	}
	return g.setDoc(ctx, labelNode, node.NodeUID, raw)
}

// patchNode is a read-modify-write on one node document. Neo4j serializes the
// conflicting transactions; the caller tolerates ErrNotFound where the
// neighbor is allowed to be missing.
func (g *Neo4jGraph) patchNode(ctx context.Context, uid string, patch func(*types.NodeData)) error {
	node, err := g.GetNode(ctx, uid)
	if err != nil {
		return err
	}
	patch(node)
	node.NodeDegree = node.Degree()
	return g.putNode(ctx, node)
}

var _ KnowledgeGraph = (*Neo4jGraph)(nil)
