// Package bus abstracts the message transport that fans query and report
// requests out to stateless workers. The NATS implementation is used in
// distributed deployments; MemoryBus serves tests and single-binary runs.
package bus
