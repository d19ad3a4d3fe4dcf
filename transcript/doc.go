// Package transcript defines the conversation data model shared by the
// orchestrator, gateways and tools: an ordered, append-only sequence of
// role-tagged messages whose content is a closed set of block variants
// (text, tool use, tool result).
//
// The Transcript type enforces the structural invariants on every append so
// that higher layers never have to re-validate history: roles alternate,
// tool-use ids are unique, and every tool result pairs with a pending tool
// use from the immediately preceding assistant message. A violated append is
// rejected with *InvariantViolationError and treated by callers as an
// integration bug, not a recoverable condition.
package transcript
