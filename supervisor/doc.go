// Package supervisor bounds and observes orchestrator executions.
//
// The Supervisor is the module's operational boundary: callers hand it a
// "start run" command (an initial user message) and receive a well-defined
// terminal report; everything between - gateway retries, tool dispatch,
// iteration accounting - stays internal to the orchestrator. Policies
// (retry/backoff parameters, iteration limit, wall-clock timeout) are fixed
// at construction through explicit options.
//
// # Responsibilities (abridged)
//   - One orchestrator execution per Start call (async + sync helper)
//   - Wall-clock timeout and iteration-limit enforcement
//   - Run cancellation at iteration boundaries
//   - Terminal run archival and single-shot outcome reporting
//
// See supervisor.go for the operational implementation details.
package supervisor
