// Package types defines the core data types for the graphrag knowledge graph.
//
// This package contains the fundamental types used throughout graphrag:
//   - NodeData: a typed, named entity with denormalized adjacency sets
//   - EdgeData: a relationship between two nodes, identified by its endpoints
//   - CommunityData: a detected cluster together with its generated report
//   - CommunityAnswerRequest / IntermediateResponse: the wire types of the
//     distributed map/reduce query pipeline
//
// # Identity
//
// Node identity is the canonical uid produced by extract.Canonicalize: the
// upper-cased, trimmed, HTML-unescaped entity title with control characters
// and double quotes stripped. Edge identity is derived from its endpoints as
// "{source}_to_{target}" (see EdgeUID).
//
// # Descriptions
//
// Node and edge descriptions are semantically sets of fragments joined by
// newline. MergeDescriptions unions two such sets; descriptions only ever
// grow under merge.
//
// # JSON Serialization
//
// All types carry json and mapstructure tags and round-trip through the
// document store unchanged.
package types
