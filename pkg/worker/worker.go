package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundprediction/graphrag/pkg/bus"
	"github.com/soundprediction/graphrag/pkg/community"
	"github.com/soundprediction/graphrag/pkg/kgraph"
	"github.com/soundprediction/graphrag/pkg/llm"
	"github.com/soundprediction/graphrag/pkg/rendezvous"
	"github.com/soundprediction/graphrag/pkg/types"
)

// FallbackResponse is emitted when the map completion cannot be parsed.
const FallbackResponse = "Answer cannot be provided based on context"

// Worker scores (query, community) pairs and generates community reports.
// It carries no per-query state and can be replicated freely.
type Worker struct {
	graph      kgraph.KnowledgeGraph
	llm        llm.Client
	rendezvous *rendezvous.Store
	engine     *community.Engine
	log        *slog.Logger
}

// New creates a worker. The engine is only needed for report requests and
// may be nil on replicas that serve map requests alone.
func New(graph kgraph.KnowledgeGraph, llmClient llm.Client, meet *rendezvous.Store, engine *community.Engine, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		graph:      graph,
		llm:        llmClient,
		rendezvous: meet,
		engine:     engine,
		log:        logger,
	}
}

// mapPayload is the strict JSON shape the map prompt requests.
type mapPayload struct {
	Response string `json:"response"`
	Score    int    `json:"score"`
}

// ScoreCommunity answers the user query from one community's context, scores
// the answer and merges it into the rendezvous document for the query. Parse
// failures degrade to the zero-score fallback; only transport and store
// failures return an error.
func (w *Worker) ScoreCommunity(ctx context.Context, req *types.CommunityAnswerRequest) (*types.IntermediateResponse, error) {
	if req.UserQuery == "" {
		return nil, fmt.Errorf("user query is required")
	}
	report := req.CommunityReport
	if report.CommunityUID == "" {
		return nil, fmt.Errorf("community uid is required: %w", types.ErrEmptyUID)
	}

	// A thin message may carry only the uid; rehydrate the rest.
	if report.Summary == "" && len(report.CommunityNodes) == 0 {
		full, err := w.graph.GetCommunity(ctx, report.CommunityUID)
		if err != nil {
			return nil, fmt.Errorf("failed to rehydrate community %s: %w", report.CommunityUID, err)
		}
		report = *full
	}

	var payload mapPayload
	err := w.llm.ChatWithJSON(ctx,
		[]types.Message{
			types.NewSystemMessage(mapSystemPrompt),
			types.NewUserMessage(mapInput(&report, req.UserQuery)),
		},
		&llm.GenerateOptions{Temperature: llm.Float32(0.0), MaxTokens: 1000},
		&payload,
	)
	switch {
	case err == nil:
	case errors.Is(err, types.ErrParse):
		w.log.Warn("map completion did not parse, using fallback",
			"community", report.CommunityUID, "error", err)
		payload = mapPayload{Response: FallbackResponse, Score: 0}
	default:
		return nil, fmt.Errorf("map completion for %s failed: %w", report.CommunityUID, err)
	}

	if payload.Score < 0 {
		payload.Score = 0
	}
	if payload.Score > 10 {
		payload.Score = 10
	}

	result := &types.IntermediateResponse{
		Community: report.CommunityUID,
		Response:  payload.Response,
		Score:     payload.Score,
	}
	if err := w.rendezvous.Put(ctx, req.UserQuery, report.CommunityUID, result); err != nil {
		return nil, fmt.Errorf("failed to write partial answer: %w", err)
	}
	return result, nil
}

// GenerateReport summarizes one community on behalf of the community engine's
// asynchronous report path.
func (w *Worker) GenerateReport(ctx context.Context, req *types.CommunityReportRequest) error {
	if w.engine == nil {
		return fmt.Errorf("worker has no community engine configured")
	}
	if req.CommunityUID == "" {
		return fmt.Errorf("community uid is required: %w", types.ErrEmptyUID)
	}
	target := &types.CommunityData{
		CommunityUID:   req.CommunityUID,
		CommunityNodes: req.CommunityNodes,
	}
	if len(target.CommunityNodes) == 0 {
		stored, err := w.graph.GetCommunity(ctx, req.CommunityUID)
		if err != nil {
			return fmt.Errorf("failed to rehydrate community %s: %w", req.CommunityUID, err)
		}
		target = stored
	}
	return w.engine.Summarize(ctx, target)
}

// SubscribeMapRequests attaches the worker to the map-request topic with
// queue-group semantics so each request is scored once per pool.
func (w *Worker) SubscribeMapRequests(transport bus.MessageBus, topic, group string) (bus.Subscription, error) {
	return transport.Subscribe(topic, group, func(ctx context.Context, data []byte) error {
		var req types.CommunityAnswerRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("%w: map request: %v", types.ErrMalformedRecord, err)
		}
		_, err := w.ScoreCommunity(ctx, &req)
		return err
	})
}

// SubscribeReportRequests attaches the worker to the report-request topic.
func (w *Worker) SubscribeReportRequests(transport bus.MessageBus, topic, group string) (bus.Subscription, error) {
	return transport.Subscribe(topic, group, func(ctx context.Context, data []byte) error {
		var req types.CommunityReportRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("%w: report request: %v", types.ErrMalformedRecord, err)
		}
		return w.GenerateReport(ctx, &req)
	})
}

// mapInput renders the community context and the question for the map prompt.
func mapInput(report *types.CommunityData, userQuery string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Community: %s\n", report.Title)
	if report.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", report.Summary)
	}
	if len(report.CommunityNodes) > 0 {
		fmt.Fprintf(&b, "Members: %s\n", strings.Join(report.CommunityNodes, ", "))
	}
	for _, finding := range report.Findings {
		fmt.Fprintf(&b, "Finding: %s %s\n", finding.Summary, finding.Explanation)
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", userQuery)
	return b.String()
}
