// Package community detects hierarchical communities on the knowledge graph
// and generates their reports.
//
// Detection runs on the stabilized graph view (largest connected component,
// canonical ids, sorted iteration order) so repeated runs over the same
// logical graph produce identical clusters. Clustering is hierarchical
// Leiden: clusters larger than the configured maximum are re-clustered on
// their induced subgraph at the next level. Reports are generated either
// in-process or by dispatching one request per community over the message
// bus to the worker pool.
package community
