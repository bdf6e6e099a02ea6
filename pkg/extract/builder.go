package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soundprediction/graphrag/pkg/kgraph"
	"github.com/soundprediction/graphrag/pkg/types"
)

// Builder merges extractor tuple streams into the knowledge graph.
type Builder struct {
	graph  kgraph.KnowledgeGraph
	delims Delimiters
	log    *slog.Logger
}

// NewBuilder creates a graph builder. A zero Delimiters value selects the
// defaults.
func NewBuilder(graph kgraph.KnowledgeGraph, delims Delimiters, logger *slog.Logger) *Builder {
	if delims.Tuple == "" {
		delims = DefaultDelimiters()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{graph: graph, delims: delims, log: logger}
}

// IngestResult summarizes one processed stream.
type IngestResult struct {
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
	Skipped       int `json:"skipped"`
}

// Ingest parses an extractor stream and merges every record into the graph.
// documentID identifies the source document and is unioned into the
// document-id lists of the touched nodes and edges.
//
// Merge policy: description fragments are set-unioned, document ids are
// set-unioned, an entity type overwrites only an empty stored type, and the
// relationship weight is replaced by the latest value. Replaying a stream is
// therefore a no-op.
func (b *Builder) Ingest(ctx context.Context, stream, documentID string) (*IngestResult, error) {
	records, skipped := Parse(stream, b.delims)
	result := &IngestResult{Skipped: skipped}
	if skipped > 0 {
		b.log.Warn("skipped malformed extractor tuples", "count", skipped, "document_id", documentID)
	}

	for _, record := range records {
		switch record.Kind {
		case EntityRecord:
			if err := b.mergeEntity(ctx, record, documentID); err != nil {
				return result, err
			}
			result.Entities++
		case RelationshipRecord:
			if err := b.mergeRelationship(ctx, record, documentID); err != nil {
				return result, err
			}
			result.Relationships++
		}
	}
	return result, nil
}

func (b *Builder) mergeEntity(ctx context.Context, record Record, documentID string) error {
	node, err := b.graph.GetNode(ctx, record.Name)
	if errors.Is(err, types.ErrNotFound) {
		return b.graph.AddNode(ctx, record.Name, &types.NodeData{
			NodeUID:         record.Name,
			NodeTitle:       record.Name,
			NodeType:        record.Type,
			NodeDescription: record.Description,
			DocumentID:      documentID,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to load entity %q: %w", record.Name, err)
	}

	node.NodeDescription = types.MergeDescriptions(node.NodeDescription, record.Description)
	node.DocumentID = types.MergeDocumentIDs(node.DocumentID, documentID)
	// The first observed type wins; later records only fill an empty one.
	if node.NodeType == "" && record.Type != "" {
		node.NodeType = record.Type
	}
	return b.graph.UpdateNode(ctx, record.Name, node)
}

func (b *Builder) mergeRelationship(ctx context.Context, record Record, documentID string) error {
	// A relationship may mention entities that have no entity tuple of
	// their own; create typeless placeholders so the edge can land.
	for _, uid := range []string{record.Source, record.Target} {
		exists, err := b.graph.NodeExists(ctx, uid)
		if err != nil {
			return err
		}
		if !exists {
			if err := b.graph.AddNode(ctx, uid, &types.NodeData{
				NodeUID:   uid,
				NodeTitle: uid,
			}); err != nil && !errors.Is(err, types.ErrAlreadyExists) {
				return err
			}
		}
	}

	edge, err := b.graph.GetEdge(ctx, record.Source, record.Target)
	if errors.Is(err, types.ErrNotFound) {
		return b.graph.AddEdge(ctx, &types.EdgeData{
			SourceUID:   record.Source,
			TargetUID:   record.Target,
			Description: record.Description,
			Weight:      record.Weight,
			DocumentID:  documentID,
		}, true)
	}
	if err != nil {
		return fmt.Errorf("failed to load edge %s->%s: %w", record.Source, record.Target, err)
	}

	edge.Description = types.MergeDescriptions(edge.Description, record.Description)
	edge.DocumentID = types.MergeDocumentIDs(edge.DocumentID, documentID)
	edge.Weight = record.Weight
	return b.graph.UpdateEdge(ctx, edge)
}
