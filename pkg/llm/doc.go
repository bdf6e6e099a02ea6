// Package llm provides chat-completion clients for OpenAI-compatible
// services, layered with retry and circuit-breaker wrappers. JSON responses
// pass through a repair step that tolerates code fences, surrounding prose
// and mild syntax damage.
package llm
