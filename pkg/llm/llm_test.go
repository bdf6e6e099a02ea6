package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/soundprediction/graphrag/pkg/types"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{
			name:    "plain object",
			content: `{"title": "Report"}`,
			want:    `{"title": "Report"}`,
		},
		{
			name:    "fenced block",
			content: "Here you go:\n```json\n{\"title\": \"Report\"}\n```\nDone.",
			want:    `{"title": "Report"}`,
		},
		{
			name:    "leading prose",
			content: `The answer is {"score": 8}`,
			want:    `{"score": 8}`,
		},
		{
			name:    "trailing comma repaired",
			content: `{"findings": [1, 2,],}`,
		},
		{
			name:    "empty response",
			content: "   ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExtractJSON(%q) = %q, want error", tt.content, got)
				}
				if !errors.Is(err, types.ErrParse) {
					t.Errorf("error = %v, want ErrParse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSON(%q) error: %v", tt.content, err)
			}
			if tt.want != "" && got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Title string `json:"title"`
		Score int    `json:"score"`
	}
	content := "```json\n{\"title\": \"Summary\", \"score\": 7,}\n```"
	if err := DecodeJSON(content, &out); err != nil {
		t.Fatalf("DecodeJSON error: %v", err)
	}
	if out.Title != "Summary" || out.Score != 7 {
		t.Errorf("decoded %+v, want Title=Summary Score=7", out)
	}
}

// flakyClient fails a fixed number of times before succeeding.
type flakyClient struct {
	failures int
	calls    int
	err      error
}

func (f *flakyClient) Chat(ctx context.Context, messages []types.Message, opts *GenerateOptions) (*types.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &types.Response{Content: "ok"}, nil
}

func (f *flakyClient) ChatWithJSON(ctx context.Context, messages []types.Message, opts *GenerateOptions, out any) error {
	_, err := f.Chat(ctx, messages, opts)
	return err
}

func (f *flakyClient) Close() error { return nil }

func TestRetryClientRetriesTransientFailures(t *testing.T) {
	upstream := &flakyClient{
		failures: 2,
		err:      fmt.Errorf("%w: 503", types.ErrTransientUpstream),
	}
	client := NewRetryClient(upstream, &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	})

	resp, err := client.Chat(context.Background(), []types.Message{types.NewUserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want ok", resp.Content)
	}
	if upstream.calls != 3 {
		t.Errorf("calls = %d, want 3", upstream.calls)
	}
}

func TestRetryClientDoesNotRetryParseErrors(t *testing.T) {
	upstream := &flakyClient{
		failures: 10,
		err:      fmt.Errorf("%w: bad payload", types.ErrParse),
	}
	client := NewRetryClient(upstream, &RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
	})

	_, err := client.Chat(context.Background(), nil, nil)
	if !errors.Is(err, types.ErrParse) {
		t.Fatalf("error = %v, want ErrParse", err)
	}
	if upstream.calls != 1 {
		t.Errorf("calls = %d, want 1", upstream.calls)
	}
}

func TestRetryClientExhaustsAttempts(t *testing.T) {
	upstream := &flakyClient{
		failures: 10,
		err:      fmt.Errorf("%w: down", types.ErrTransientUpstream),
	}
	client := NewRetryClient(upstream, &RetryConfig{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
	})

	_, err := client.Chat(context.Background(), nil, nil)
	if !errors.Is(err, types.ErrTransientUpstream) {
		t.Fatalf("error = %v, want ErrTransientUpstream", err)
	}
	if upstream.calls != 3 {
		t.Errorf("calls = %d, want 3", upstream.calls)
	}
}

func TestBreakerClientOpensAfterRepeatedFailures(t *testing.T) {
	upstream := &flakyClient{
		failures: 100,
		err:      fmt.Errorf("%w: down", types.ErrTransientUpstream),
	}
	client := NewBreakerClient(upstream, BreakerConfig{
		MaxRequests:      1,
		Interval:         60,
		Timeout:          60,
		ReadyToTripRatio: 0.5,
	}, "test", nil)

	for i := 0; i < 5; i++ {
		_, _ = client.Chat(context.Background(), nil, nil)
	}
	before := upstream.calls

	_, err := client.Chat(context.Background(), nil, nil)
	if !errors.Is(err, types.ErrTransientUpstream) {
		t.Fatalf("error = %v, want ErrTransientUpstream", err)
	}
	if upstream.calls != before {
		t.Errorf("open breaker still reached upstream (calls %d -> %d)", before, upstream.calls)
	}
}
