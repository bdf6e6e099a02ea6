package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/soundprediction/graphrag/pkg/bus"
	"github.com/soundprediction/graphrag/pkg/kgraph"
	"github.com/soundprediction/graphrag/pkg/llm"
	"github.com/soundprediction/graphrag/pkg/rendezvous"
	"github.com/soundprediction/graphrag/pkg/types"
)

// DefaultTopic carries map requests to the worker pool.
const DefaultTopic = "query.map"

// Options configures the orchestrator.
type Options struct {
	// Topic on which map requests are published.
	Topic string `json:"topic" mapstructure:"topic"`
	// WarmUp sleep before the first rendezvous poll.
	WarmUp time.Duration `json:"warm_up" mapstructure:"warm_up"`
	// Interval between rendezvous polls.
	Interval time.Duration `json:"interval" mapstructure:"interval"`
	// MaxAttempts bounds the polls before giving up.
	MaxAttempts int `json:"max_attempts" mapstructure:"max_attempts"`
	// CompletionRatio of communities that must have answered for a poll
	// to succeed.
	CompletionRatio float64 `json:"completion_ratio" mapstructure:"completion_ratio"`
	// ScoreThreshold below or at which partial answers are discarded.
	ScoreThreshold float64 `json:"score_threshold" mapstructure:"score_threshold"`
	// MaxResponses caps the final context set.
	MaxResponses int `json:"max_responses" mapstructure:"max_responses"`
	Logger       *slog.Logger
}

// DefaultOptions returns the orchestrator defaults.
func DefaultOptions() Options {
	return Options{
		Topic:           DefaultTopic,
		WarmUp:          5 * time.Second,
		Interval:        10 * time.Second,
		MaxAttempts:     6,
		CompletionRatio: 0.9,
		ScoreThreshold:  0,
		MaxResponses:    10,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Topic == "" {
		o.Topic = def.Topic
	}
	if o.WarmUp <= 0 {
		o.WarmUp = def.WarmUp
	}
	if o.Interval <= 0 {
		o.Interval = def.Interval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.CompletionRatio <= 0 || o.CompletionRatio > 1 {
		o.CompletionRatio = def.CompletionRatio
	}
	if o.MaxResponses <= 0 {
		o.MaxResponses = def.MaxResponses
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Orchestrator answers global queries by fanning every community out to the
// worker pool and reducing the scored partial answers.
type Orchestrator struct {
	graph      kgraph.KnowledgeGraph
	bus        bus.MessageBus
	rendezvous *rendezvous.Store
	llm        llm.Client
	opts       Options
	log        *slog.Logger
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(graph kgraph.KnowledgeGraph, messageBus bus.MessageBus, meet *rendezvous.Store, llmClient llm.Client, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	return &Orchestrator{
		graph:      graph,
		bus:        messageBus,
		rendezvous: meet,
		llm:        llmClient,
		opts:       opts,
		log:        opts.Logger,
	}
}

// Answer runs the full map-reduce cycle for one user query and returns the
// synthesized answer text.
func (o *Orchestrator) Answer(ctx context.Context, userQuery string) (string, error) {
	communities, err := o.graph.ListCommunities(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list communities: %w", err)
	}
	if len(communities) == 0 {
		return "", fmt.Errorf("no communities available: %w", types.ErrNotFound)
	}

	if err := o.fanOut(ctx, communities, userQuery); err != nil {
		return "", err
	}

	partials, err := o.await(ctx, userQuery, len(communities))
	if err != nil {
		return "", err
	}

	final := o.selectContext(partials)
	if len(final) == 0 {
		o.log.Warn("no community produced a scoring answer", "query", userQuery)
		return FallbackAnswer, nil
	}

	return o.reduce(ctx, userQuery, final)
}

// fanOut publishes one map request per community. Publishing is
// fire-and-forget; bus acknowledgement is success.
func (o *Orchestrator) fanOut(ctx context.Context, communities []*types.CommunityData, userQuery string) error {
	for _, community := range communities {
		payload, err := json.Marshal(&types.CommunityAnswerRequest{
			CommunityReport: *community,
			UserQuery:       userQuery,
		})
		if err != nil {
			return err
		}
		if err := o.bus.Publish(ctx, o.opts.Topic, payload); err != nil {
			return fmt.Errorf("failed to publish map request: %w", err)
		}
	}
	o.log.Info("fanned query out to workers", "communities", len(communities), "topic", o.opts.Topic)
	return nil
}

// await polls the rendezvous store until enough sub-keys have arrived or the
// attempt budget is exhausted.
func (o *Orchestrator) await(ctx context.Context, userQuery string, total int) (map[string]*types.IntermediateResponse, error) {
	required := int(math.Ceil(o.opts.CompletionRatio * float64(total)))

	if err := sleep(ctx, o.opts.WarmUp); err != nil {
		return nil, err
	}
	for attempt := 1; attempt <= o.opts.MaxAttempts; attempt++ {
		partials, err := o.rendezvous.Get(ctx, userQuery)
		if err != nil {
			return nil, err
		}
		o.log.Debug("rendezvous poll", "attempt", attempt, "received", len(partials), "required", required)
		if len(partials) >= required {
			return partials, nil
		}
		if attempt < o.opts.MaxAttempts {
			if err := sleep(ctx, o.opts.Interval); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("rendezvous reached %d attempts without %d of %d answers: %w",
		o.opts.MaxAttempts, required, total, types.ErrTimeout)
}

// selectContext filters, orders and truncates the partial answers into the
// final context set.
func (o *Orchestrator) selectContext(partials map[string]*types.IntermediateResponse) []*types.IntermediateResponse {
	keys := make([]string, 0, len(partials))
	for key := range partials {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var final []*types.IntermediateResponse
	for _, key := range keys {
		if partial := partials[key]; partial != nil && float64(partial.Score) > o.opts.ScoreThreshold {
			final = append(final, partial)
		}
	}
	sort.SliceStable(final, func(i, j int) bool { return final[i].Score > final[j].Score })
	if len(final) > o.opts.MaxResponses {
		final = final[:o.opts.MaxResponses]
	}
	return final
}

// reduce synthesizes the final answer from the selected partial answers,
// enriched with the full community records.
func (o *Orchestrator) reduce(ctx context.Context, userQuery string, final []*types.IntermediateResponse) (string, error) {
	var b strings.Builder
	for i, partial := range final {
		fmt.Fprintf(&b, "-- Analyst %d (relevance %d) --\n%s\n", i+1, partial.Score, partial.Response)
		community, err := o.graph.GetCommunity(ctx, partial.Community)
		if err == nil && community.Summary != "" {
			fmt.Fprintf(&b, "Community report: %s\n", community.Summary)
		}
		b.WriteByte('\n')
	}

	resp, err := o.llm.Chat(ctx,
		[]types.Message{
			types.NewSystemMessage(reduceSystemPrompt),
			types.NewUserMessage(fmt.Sprintf("Analyst reports:\n\n%sQuestion: %s", b.String(), userQuery)),
		},
		&llm.GenerateOptions{Temperature: llm.Float32(0.1), MaxTokens: 2000},
	)
	if err != nil {
		return "", fmt.Errorf("reduce completion failed: %w", err)
	}
	return resp.Content, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
