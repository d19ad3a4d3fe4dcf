package orchestrator

// State identifies a position in the orchestration state machine. The
// machine starts in Invoking and only ever terminates in Succeeded or
// Failed.
type State int

const (
	// StateInvoking calls the model gateway with the current transcript.
	StateInvoking State = iota
	// StateEvaluating inspects the stop reason of the latest reply.
	StateEvaluating
	// StateDispatching resolves and executes the pending tool requests.
	StateDispatching
	// StateMerging folds the tool results back into the transcript.
	StateMerging
	// StateSucceeded is the terminal success state.
	StateSucceeded
	// StateFailed is the terminal failure state.
	StateFailed
)

// String returns the state's lowercase name.
func (s State) String() string {
	switch s {
	case StateInvoking:
		return "invoking"
	case StateEvaluating:
		return "evaluating"
	case StateDispatching:
		return "dispatching"
	case StateMerging:
		return "merging"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends the run.
func (s State) Terminal() bool { return s == StateSucceeded || s == StateFailed }

// Status is the externally visible lifecycle of a Run.
type Status string

const (
	// StatusRunning marks a run whose loop is still making progress.
	StatusRunning Status = "running"
	// StatusSucceeded marks a run that ended with an end_turn reply.
	StatusSucceeded Status = "succeeded"
	// StatusFailed marks a run terminated by any condition in the failure
	// taxonomy.
	StatusFailed Status = "failed"
)

// FailReason names the terminal failure condition of a Run. Reasons are
// stable strings surfaced verbatim to callers.
type FailReason string

const (
	// ReasonGatewayUnavailable: transient gateway failures exhausted the
	// retry budget.
	ReasonGatewayUnavailable FailReason = "gateway-unavailable"
	// ReasonGatewayRejected: the gateway rejected the request as malformed.
	ReasonGatewayRejected FailReason = "gateway-rejected-request"
	// ReasonUnrecognizedStop: the reply carried a stop reason the machine
	// does not interpret. Unknown reasons are never treated as success.
	ReasonUnrecognizedStop FailReason = "unrecognized-stop-reason"
	// ReasonToolNotFound: the model requested a tool the registry does not
	// hold.
	ReasonToolNotFound FailReason = "no-tool-for-request"
	// ReasonInvariantViolation: an append would have corrupted the
	// transcript; a programming or integration bug.
	ReasonInvariantViolation FailReason = "transcript-invariant-violation"
	// ReasonIterationLimit: the loop exceeded its configured cycle budget.
	ReasonIterationLimit FailReason = "iteration-limit-exceeded"
	// ReasonTimeout: the run exceeded its wall-clock budget.
	ReasonTimeout FailReason = "timeout"
	// ReasonCancelled: the run was cancelled between iterations.
	ReasonCancelled FailReason = "cancelled"
)
