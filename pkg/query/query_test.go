package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/soundprediction/graphrag/pkg/bus"
	"github.com/soundprediction/graphrag/pkg/docstore"
	"github.com/soundprediction/graphrag/pkg/kgraph"
	"github.com/soundprediction/graphrag/pkg/llm"
	"github.com/soundprediction/graphrag/pkg/rendezvous"
	"github.com/soundprediction/graphrag/pkg/types"
)

// recordingLLM captures the reduce prompt and replays a canned answer.
type recordingLLM struct {
	lastMessages []types.Message
	answer       string
}

func (r *recordingLLM) Chat(ctx context.Context, messages []types.Message, opts *llm.GenerateOptions) (*types.Response, error) {
	r.lastMessages = messages
	return &types.Response{Content: r.answer}, nil
}

func (r *recordingLLM) ChatWithJSON(ctx context.Context, messages []types.Message, opts *llm.GenerateOptions, out any) error {
	r.lastMessages = messages
	return llm.DecodeJSON(r.answer, out)
}

func (r *recordingLLM) Close() error { return nil }

func fastOptions() Options {
	return Options{
		WarmUp:      5 * time.Millisecond,
		Interval:    10 * time.Millisecond,
		MaxAttempts: 5,
	}
}

func storeCommunities(t *testing.T, graph *kgraph.Store, uids ...string) {
	t.Helper()
	for _, uid := range uids {
		err := graph.StoreCommunity(context.Background(), &types.CommunityData{
			CommunityUID:   uid,
			CommunityNodes: []string{uid + "-member"},
			Title:          uid,
			Summary:        "summary of " + uid,
		})
		if err != nil {
			t.Fatalf("StoreCommunity(%s) error: %v", uid, err)
		}
	}
}

func TestAnswerMapReduce(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemoryStore()
	graph := kgraph.NewStore(docs, nil)
	meet := rendezvous.NewStore(docs, "")
	transport := bus.NewMemoryBus(nil)
	defer transport.Close()

	storeCommunities(t, graph, "community-a", "community-b", "community-c")
	scores := map[string]int{"community-a": 8, "community-b": 3, "community-c": 0}

	// Stand-in worker: score each community per the fixed table.
	_, err := transport.Subscribe(DefaultTopic, "workers", func(ctx context.Context, data []byte) error {
		var req types.CommunityAnswerRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return err
		}
		uid := req.CommunityReport.CommunityUID
		return meet.Put(ctx, req.UserQuery, uid, &types.IntermediateResponse{
			Community: uid,
			Response:  "partial answer from " + uid,
			Score:     scores[uid],
		})
	})
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	model := &recordingLLM{answer: "X won because the analysts say so."}
	orchestrator := NewOrchestrator(graph, transport, meet, model, fastOptions())

	answer, err := orchestrator.Answer(ctx, "Who won X?")
	if err != nil {
		t.Fatalf("Answer error: %v", err)
	}
	if answer != model.answer {
		t.Errorf("answer = %q", answer)
	}

	merged, err := meet.Get(ctx, "Who won X?")
	if err != nil {
		t.Fatalf("rendezvous Get error: %v", err)
	}
	if len(merged) != 3 {
		t.Errorf("rendezvous sub-keys = %d, want 3", len(merged))
	}

	prompt := model.lastMessages[len(model.lastMessages)-1].Content
	first := strings.Index(prompt, "relevance 8")
	second := strings.Index(prompt, "relevance 3")
	if first < 0 || second < 0 || first > second {
		t.Errorf("reduce prompt not ordered by score:\n%s", prompt)
	}
	if strings.Contains(prompt, "community-c") {
		t.Errorf("zero-score community leaked into reduce prompt:\n%s", prompt)
	}
}

func TestAnswerTimesOutWhenWorkersAreMissing(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemoryStore()
	graph := kgraph.NewStore(docs, nil)
	meet := rendezvous.NewStore(docs, "")
	transport := bus.NewMemoryBus(nil)
	defer transport.Close()

	uids := make([]string, 10)
	for i := range uids {
		uids[i] = fmt.Sprintf("community-%02d", i)
	}
	storeCommunities(t, graph, uids...)

	// Half the workers report, half never do.
	for i := 0; i < 5; i++ {
		err := meet.Put(ctx, "stalled query", uids[i], &types.IntermediateResponse{Community: uids[i], Score: 5})
		if err != nil {
			t.Fatalf("Put error: %v", err)
		}
	}

	opts := fastOptions()
	opts.MaxAttempts = 3
	orchestrator := NewOrchestrator(graph, transport, meet, &recordingLLM{}, opts)

	start := time.Now()
	_, err := orchestrator.Answer(ctx, "stalled query")
	if !errors.Is(err, types.ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	budget := opts.WarmUp + time.Duration(opts.MaxAttempts)*opts.Interval + 500*time.Millisecond
	if elapsed := time.Since(start); elapsed > budget {
		t.Errorf("timeout took %v, budget %v", elapsed, budget)
	}
}

func TestSelectContextFiltersSortsAndTruncates(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxResponses = 3
	orchestrator := NewOrchestrator(nil, nil, nil, nil, opts)

	partials := map[string]*types.IntermediateResponse{
		"a": {Community: "a", Score: 2},
		"b": {Community: "b", Score: 9},
		"c": {Community: "c", Score: 0},
		"d": {Community: "d", Score: 7},
		"e": {Community: "e", Score: 4},
	}
	final := orchestrator.selectContext(partials)

	if len(final) != 3 {
		t.Fatalf("len(final) = %d, want 3", len(final))
	}
	for i := 1; i < len(final); i++ {
		if final[i-1].Score < final[i].Score {
			t.Errorf("final context not sorted descending: %v then %v", final[i-1].Score, final[i].Score)
		}
	}
	for _, partial := range final {
		if float64(partial.Score) <= opts.ScoreThreshold {
			t.Errorf("score %v at or below threshold survived", partial.Score)
		}
	}
}

func TestAnswerWithoutCommunities(t *testing.T) {
	docs := docstore.NewMemoryStore()
	graph := kgraph.NewStore(docs, nil)
	orchestrator := NewOrchestrator(graph, bus.NewMemoryBus(nil), rendezvous.NewStore(docs, ""), &recordingLLM{}, fastOptions())

	_, err := orchestrator.Answer(context.Background(), "anything")
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
