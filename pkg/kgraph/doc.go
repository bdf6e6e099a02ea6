// Package kgraph implements the knowledge-graph store: three document
// collections (nodes, edges, communities) with strict invariants between the
// edge collection and the denormalized adjacency sets kept on the nodes.
//
// # Invariants
//
// After any successful mutation:
//
//   - For every stored edge (s,t): t is in node(s).edges_to and s is in
//     node(t).edges_from. For undirected edges the reverse also holds.
//   - Removing a node removes its uid from every neighbor's adjacency sets.
//   - Node uids are canonical (types.Canonicalize is idempotent on them).
//   - Descriptions only ever grow under merge.
//
// Because the edge document and the two node documents are written
// separately, a crash between writes can leave the index out of sync;
// RepairAdjacency rebuilds the adjacency sets from the edge collection.
//
// # Concurrency
//
// Single-document reads and writes are atomic. Adjacency read-modify-write
// cycles run inside the docstore's per-key critical section, so concurrent
// mutations of the same node serialize. No locks are held across store
// round-trips for unrelated documents.
//
// The package also provides a Cypher-backed implementation (Neo4jGraph) for
// deployments that already run a graph database, and a deterministic
// stabilized view (BuildView) used as clustering input.
package kgraph
