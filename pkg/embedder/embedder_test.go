package embedder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soundprediction/graphrag/pkg/embedder"
)

func TestNewOpenAIEmbedder(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		config embedder.Config
	}{
		{
			name:   "default model",
			apiKey: "test-api-key",
			config: embedder.Config{},
		},
		{
			name:   "custom model",
			apiKey: "test-api-key",
			config: embedder.Config{Model: "text-embedding-3-large", Dimensions: 3072},
		},
		{
			name:   "custom base URL",
			apiKey: "test-api-key",
			config: embedder.Config{BaseURL: "https://api.example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := embedder.NewOpenAIEmbedder(tt.apiKey, tt.config)
			assert.NotNil(t, client)
			assert.Greater(t, client.Dimensions(), 0)
			if tt.config.Dimensions > 0 {
				assert.Equal(t, tt.config.Dimensions, client.Dimensions())
			}
		})
	}
}

func TestEmbedderInterface(t *testing.T) {
	var _ embedder.Client = (*embedder.OpenAIEmbedder)(nil)
	var _ embedder.Client = (*embedder.EmbedEverythingClient)(nil)
}
