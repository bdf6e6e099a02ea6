package types

import "errors"

// Error taxonomy shared across the graph store, builder, community engine and
// query pipeline. Callers classify failures with errors.Is.
var (
	// ErrNotFound indicates a referenced node, edge or community is absent.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an attempted create of an existing uid.
	ErrAlreadyExists = errors.New("already exists")

	// ErrMalformedRecord indicates a stored document that cannot be
	// deserialized into its declared shape. Surfaced with context, never
	// auto-repaired.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrParse indicates an extractor tuple or LLM response that failed to
	// parse. Recovered locally by the component that hit it.
	ErrParse = errors.New("parse error")

	// ErrTimeout indicates the rendezvous store did not reach the completion
	// threshold within the polling budget.
	ErrTimeout = errors.New("timeout")

	// ErrTransientUpstream indicates a retriable failure of a bus publish,
	// store I/O or completion call.
	ErrTransientUpstream = errors.New("transient upstream failure")

	// Validation errors.
	ErrEmptyUID       = errors.New("uid cannot be empty")
	ErrEmptyCommunity = errors.New("community must have at least one member")
)
