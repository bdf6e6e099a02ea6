package community

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/soundprediction/graphrag/pkg/llm"
	"github.com/soundprediction/graphrag/pkg/types"
)

// reportPayload is the strict JSON shape the summarization prompt requests.
type reportPayload struct {
	Title             string          `json:"title"`
	Summary           string          `json:"summary"`
	Rating            float64         `json:"rating"`
	RatingExplanation string          `json:"rating_explanation"`
	Findings          []types.Finding `json:"findings"`
}

type promptEntity struct {
	EntityID          string `json:"entity_id"`
	EntityType        string `json:"entity_type"`
	EntityDescription string `json:"entity_description"`
}

type promptRelation struct {
	EdgeSource      string `json:"edge_source"`
	EdgeTarget      string `json:"edge_target"`
	EdgeDescription string `json:"edge_description"`
}

// Summarize generates and persists the report of one community. The prompt
// carries every member node and every edge incident to the membership, in
// either direction. A response that cannot be parsed degrades to a stored
// placeholder report rather than dropping the community.
func (e *Engine) Summarize(ctx context.Context, community *types.CommunityData) error {
	if len(community.CommunityNodes) == 0 {
		return fmt.Errorf("community %s: %w", community.CommunityUID, types.ErrEmptyCommunity)
	}

	input, err := e.reportInput(ctx, community)
	if err != nil {
		return err
	}

	var payload reportPayload
	err = e.llm.ChatWithJSON(ctx,
		[]types.Message{
			types.NewSystemMessage(communityReportSystemPrompt),
			types.NewUserMessage(input),
		},
		&llm.GenerateOptions{Temperature: llm.Float32(0.0), MaxTokens: 2000},
		&payload,
	)
	switch {
	case err == nil:
		community.Title = payload.Title
		community.Summary = payload.Summary
		community.Rating = payload.Rating
		community.RatingExplanation = payload.RatingExplanation
		community.Findings = payload.Findings
	case errors.Is(err, types.ErrParse):
		e.log.Warn("community report did not parse, storing degraded record",
			"community", community.CommunityUID, "error", err)
		community.Title = degradedTitle(community.CommunityNodes)
		community.Summary = ""
		community.Rating = 0
		community.RatingExplanation = ""
		community.Findings = nil
	default:
		return fmt.Errorf("report generation for %s failed: %w", community.CommunityUID, err)
	}

	if e.embed != nil && community.Summary != "" {
		vector, err := e.embed.EmbedSingle(ctx, community.Summary)
		if err != nil {
			e.log.Warn("failed to embed community summary", "community", community.CommunityUID, "error", err)
		} else {
			community.Embedding = vector
		}
	}

	return e.graph.StoreCommunity(ctx, community)
}

// reportInput renders the member nodes and incident edges as the JSON-lines
// context block of the summarization prompt.
func (e *Engine) reportInput(ctx context.Context, community *types.CommunityData) (string, error) {
	members := make(map[string]struct{}, len(community.CommunityNodes))
	for _, uid := range community.CommunityNodes {
		members[uid] = struct{}{}
	}

	var b strings.Builder
	b.WriteString("Entities:\n")
	for _, uid := range community.CommunityNodes {
		node, err := e.graph.GetNode(ctx, uid)
		if errors.Is(err, types.ErrNotFound) {
			e.log.Warn("community member missing from graph", "community", community.CommunityUID, "node", uid)
			continue
		}
		if err != nil {
			return "", err
		}
		line, err := json.Marshal(promptEntity{
			EntityID:          node.NodeUID,
			EntityType:        node.NodeType,
			EntityDescription: node.NodeDescription,
		})
		if err != nil {
			return "", err
		}
		b.Write(line)
		b.WriteByte('\n')
	}

	edges, err := e.graph.ListEdges(ctx)
	if err != nil {
		return "", err
	}
	b.WriteString("\nRelationships:\n")
	for _, edge := range edges {
		_, srcIn := members[edge.SourceUID]
		_, dstIn := members[edge.TargetUID]
		if !srcIn && !dstIn {
			continue
		}
		line, err := json.Marshal(promptRelation{
			EdgeSource:      edge.SourceUID,
			EdgeTarget:      edge.TargetUID,
			EdgeDescription: edge.Description,
		})
		if err != nil {
			return "", err
		}
		b.Write(line)
		b.WriteByte('\n')
	}

	return b.String(), nil
}

// degradedTitle renders the member set as the placeholder title of a
// community whose report could not be parsed.
func degradedTitle(members []string) string {
	return fmt.Sprintf("%v", members)
}
