package llm

import (
	"context"

	"github.com/soundprediction/graphrag/pkg/types"
)

// Client defines the interface for language model operations.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	Chat(ctx context.Context, messages []types.Message, opts *GenerateOptions) (*types.Response, error)

	// ChatWithJSON sends a chat completion request that must yield a JSON
	// object, decoded into out. Implementations repair near-JSON output
	// before giving up.
	ChatWithJSON(ctx context.Context, messages []types.Message, opts *GenerateOptions, out any) error

	// Close cleans up any resources.
	Close() error
}

// GenerateOptions tunes a single completion request. Zero-valued fields fall
// back to the client defaults.
type GenerateOptions struct {
	Model       string   `json:"model,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	// JSONMode asks the provider for a JSON-object response format.
	JSONMode bool `json:"json_mode,omitempty"`
}

// Float32 returns a pointer to v, for the optional sampling fields.
func Float32(v float32) *float32 { return &v }
