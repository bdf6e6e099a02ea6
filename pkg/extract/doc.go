// Package extract parses entity/relationship tuple streams produced by the
// extraction model and merges them into the knowledge graph.
//
// A stream is a flat sequence of records separated by a record delimiter
// (default "##"), each record a parenthesized tuple with fields separated by
// a tuple delimiter (default "<|>"), terminated by a completion marker
// (default "<|COMPLETE|>"):
//
//	("entity"<|>"Alice"<|>"person"<|>"Engineer.")##
//	("relationship"<|>"Alice"<|>"Acme"<|>"Works at."<|>7)<|COMPLETE|>
//
// Malformed tuples are skipped, never fatal. Ingestion is idempotent:
// replaying the same stream against the same graph leaves every document
// unchanged.
package extract
