// Package query implements the global map-reduce query orchestrator. Every
// community report is fanned out over the message bus to stateless workers,
// partial answers are collected at the rendezvous store, and the surviving
// top-scored answers are reduced into one synthesized response.
package query
