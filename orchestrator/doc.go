// Package orchestrator implements the turn-taking state machine at the heart
// of the module.
//
// One Orchestrator owns one Run: it repeatedly invokes the model gateway,
// evaluates the stop reason, dispatches any requested tools in emission
// order, merges their results into the transcript as a single user message
// and loops until the model ends its turn or a failure condition fires.
//
// The machine's states are Invoking, Evaluating, Dispatching, Merging,
// Succeeded and Failed. Failure conditions map onto a closed FailReason
// taxonomy; unknown stop reasons and unresolvable tool names fail the run
// explicitly instead of being dropped. Transient gateway and tool failures
// are retried under configurable backoff policies; only a successful gateway
// call mutates the transcript, which keeps retries idempotent.
//
// Each run executes on a single goroutine. Cross-run isolation comes from
// every run owning its own Transcript; the only shared structures are the
// read-only tool Registry and the gateway client.
package orchestrator
