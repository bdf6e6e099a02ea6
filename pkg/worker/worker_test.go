package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/graphrag/pkg/docstore"
	"github.com/soundprediction/graphrag/pkg/kgraph"
	"github.com/soundprediction/graphrag/pkg/llm"
	"github.com/soundprediction/graphrag/pkg/rendezvous"
	"github.com/soundprediction/graphrag/pkg/types"
)

type stubLLM struct {
	content string
	err     error
}

func (s *stubLLM) Chat(ctx context.Context, messages []types.Message, opts *llm.GenerateOptions) (*types.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &types.Response{Content: s.content}, nil
}

func (s *stubLLM) ChatWithJSON(ctx context.Context, messages []types.Message, opts *llm.GenerateOptions, out any) error {
	if s.err != nil {
		return s.err
	}
	return llm.DecodeJSON(s.content, out)
}

func (s *stubLLM) Close() error { return nil }

func newTestWorker(t *testing.T, model llm.Client) (*Worker, *kgraph.Store, *rendezvous.Store) {
	t.Helper()
	docs := docstore.NewMemoryStore()
	graph := kgraph.NewStore(docs, nil)
	meet := rendezvous.NewStore(docs, "")
	return New(graph, model, meet, nil, nil), graph, meet
}

func sampleRequest() *types.CommunityAnswerRequest {
	return &types.CommunityAnswerRequest{
		CommunityReport: types.CommunityData{
			CommunityUID:   "community-0.0",
			CommunityNodes: []string{"ALICE", "ACME"},
			Title:          "Alice and Acme",
			Summary:        "Alice works at Acme.",
		},
		UserQuery: "Where does Alice work?",
	}
}

func TestScoreCommunityWritesPartialAnswer(t *testing.T) {
	ctx := context.Background()
	w, _, meet := newTestWorker(t, &stubLLM{content: `{"response": "Alice works at Acme.", "score": 9}`})

	result, err := w.ScoreCommunity(ctx, sampleRequest())
	if err != nil {
		t.Fatalf("ScoreCommunity error: %v", err)
	}
	if result.Score != 9 {
		t.Errorf("Score = %d, want 9", result.Score)
	}

	merged, err := meet.Get(ctx, "Where does Alice work?")
	if err != nil {
		t.Fatalf("rendezvous Get error: %v", err)
	}
	partial, ok := merged["community-0.0"]
	if !ok {
		t.Fatalf("no sub-key for community, got %v", merged)
	}
	if partial.Response != "Alice works at Acme." {
		t.Errorf("Response = %q", partial.Response)
	}
}

func TestScoreCommunityFallsBackOnUnparseableCompletion(t *testing.T) {
	ctx := context.Background()
	w, _, meet := newTestWorker(t, &stubLLM{err: fmt.Errorf("%w: prose instead of JSON", types.ErrParse)})

	result, err := w.ScoreCommunity(ctx, sampleRequest())
	if err != nil {
		t.Fatalf("ScoreCommunity error: %v", err)
	}
	if result.Response != FallbackResponse || result.Score != 0 {
		t.Errorf("fallback = %+v", result)
	}

	merged, _ := meet.Get(ctx, "Where does Alice work?")
	if merged["community-0.0"].Score != 0 {
		t.Errorf("stored score = %d, want 0", merged["community-0.0"].Score)
	}
}

func TestScoreCommunityClampsScore(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"above range", `{"response": "sure", "score": 42}`, 10},
		{"below range", `{"response": "no", "score": -3}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _, _ := newTestWorker(t, &stubLLM{content: tt.content})
			result, err := w.ScoreCommunity(context.Background(), sampleRequest())
			if err != nil {
				t.Fatalf("ScoreCommunity error: %v", err)
			}
			if result.Score != tt.want {
				t.Errorf("Score = %d, want %d", result.Score, tt.want)
			}
		})
	}
}

func TestScoreCommunityRehydratesThinRequest(t *testing.T) {
	ctx := context.Background()
	w, graph, _ := newTestWorker(t, &stubLLM{content: `{"response": "ok", "score": 5}`})
	err := graph.StoreCommunity(ctx, &types.CommunityData{
		CommunityUID:   "community-0.0",
		CommunityNodes: []string{"ALICE"},
		Summary:        "stored summary",
	})
	if err != nil {
		t.Fatalf("StoreCommunity error: %v", err)
	}

	result, err := w.ScoreCommunity(ctx, &types.CommunityAnswerRequest{
		CommunityReport: types.CommunityData{CommunityUID: "community-0.0"},
		UserQuery:       "anything",
	})
	if err != nil {
		t.Fatalf("ScoreCommunity error: %v", err)
	}
	if result.Community != "community-0.0" {
		t.Errorf("Community = %q", result.Community)
	}
}

func TestHelloWorldEndpoint(t *testing.T) {
	w, _, _ := newTestWorker(t, &stubLLM{})
	router := w.Router(gin.TestMode)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/helloworld", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body["message"] != "Hello World" {
		t.Errorf("message = %q", body["message"])
	}
}

func TestCommunityRequestEndpoint(t *testing.T) {
	w, _, meet := newTestWorker(t, &stubLLM{content: `{"response": "yes", "score": 7}`})
	router := w.Router(gin.TestMode)

	record, _ := json.Marshal(sampleRequest().CommunityReport)
	payload, _ := json.Marshal(map[string]any{
		"community_record": string(record),
		"user_query":       "Where does Alice work?",
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/receive_community_request", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	merged, err := meet.Get(context.Background(), "Where does Alice work?")
	if err != nil {
		t.Fatalf("rendezvous Get error: %v", err)
	}
	if merged["community-0.0"].Score != 7 {
		t.Errorf("stored score = %d, want 7", merged["community-0.0"].Score)
	}
}

func TestCommunityRequestEndpointRejectsBadBody(t *testing.T) {
	w, _, _ := newTestWorker(t, &stubLLM{})
	router := w.Router(gin.TestMode)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/receive_community_request", bytes.NewReader([]byte(`{"user_query": "no community"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCommunityRequestEndpointServerErrorOnUpstreamFailure(t *testing.T) {
	w, _, _ := newTestWorker(t, &stubLLM{err: fmt.Errorf("%w: provider down", types.ErrTransientUpstream)})
	router := w.Router(gin.TestMode)

	payload, _ := json.Marshal(map[string]any{
		"community_report": sampleRequest().CommunityReport,
		"user_query":       "Where does Alice work?",
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/receive_community_request", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code < 500 {
		t.Errorf("status = %d, want 5xx so the bus redelivers", rec.Code)
	}
}
