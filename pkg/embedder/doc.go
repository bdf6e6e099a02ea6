// Package embedder provides text embedding clients for vector
// representations of node descriptions and community reports.
//
// Two implementations are provided: OpenAIEmbedder talks to the OpenAI
// embeddings API (or any compatible endpoint) with internal batching, and
// EmbedEverythingClient runs a local model for offline use.
package embedder
