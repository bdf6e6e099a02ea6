// Package docstore provides a minimal document-store abstraction used as the
// persistence substrate for the knowledge graph and the rendezvous store.
//
// A Store holds named collections of JSON documents addressed by string id.
// Two implementations are provided:
//
//   - MemoryStore: process-local, for tests and single-binary deployments
//   - BadgerStore: persistent, backed by BadgerDB with collections mapped to
//     key prefixes
//
// Readers always observe a write-atomic document. Update provides a per-key
// read-modify-write critical section; callers use it for any mutation that
// depends on the current document contents.
package docstore
