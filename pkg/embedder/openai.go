package embedder

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel      = "text-embedding-3-small"
	defaultOpenAIDimensions = 1536
	defaultBatchSize        = 100
)

// OpenAIEmbedder implements the Client interface using the OpenAI embeddings
// API or any compatible endpoint.
type OpenAIEmbedder struct {
	api       *openai.Client
	model     string
	dims      int
	batchSize int
}

// NewOpenAIEmbedder creates an embedding client for the configured endpoint.
func NewOpenAIEmbedder(apiKey string, config Config) *OpenAIEmbedder {
	apiCfg := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		apiCfg.BaseURL = config.BaseURL
	}
	model := config.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	dims := config.Dimensions
	if dims <= 0 {
		dims = defaultOpenAIDimensions
	}
	batch := config.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &OpenAIEmbedder{
		api:       openai.NewClientWithConfig(apiCfg),
		model:     model,
		dims:      dims,
		batchSize: batch,
	}
}

// Embed generates embeddings for the given texts, batching requests to stay
// within provider limits.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.model),
			Input: texts[start:end],
		})
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		for _, item := range resp.Data {
			embeddings = append(embeddings, item.Embedding)
		}
	}
	return embeddings, nil
}

// EmbedSingle generates an embedding for a single text.
func (e *OpenAIEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

// Dimensions returns the number of dimensions in the embeddings.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

// Close cleans up any resources.
func (e *OpenAIEmbedder) Close() error { return nil }

var _ Client = (*OpenAIEmbedder)(nil)
