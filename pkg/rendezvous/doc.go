// Package rendezvous implements the meeting point between the query
// orchestrator and its fanned-out map workers. Workers merge partial answers
// into a per-query document; the orchestrator polls until enough sub-keys
// have arrived.
package rendezvous
