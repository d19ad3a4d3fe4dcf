// Package gateway defines the model boundary: a single Invoke contract that
// takes the current transcript plus tool declarations and returns a
// normalized reply with a stop reason and usage metadata.
//
// Concrete providers live in sub-packages (anthropic, openai) so the
// orchestration core never branches on vendor types. Errors crossing the
// boundary are classified as transient (retryable under policy) or fatal
// (terminates the run); nothing else leaks through.
//
// The scripted MockGateway in this package backs tests and examples.
package gateway
