package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/toolloop/toolloop/tool"
	"github.com/toolloop/toolloop/transcript"
)

// StopReason signals how the model finished its turn. Values outside the
// known set are preserved verbatim so the orchestrator's default arm can
// fail loudly instead of guessing.
type StopReason string

const (
	// StopEndTurn means the model completed its reply and expects no tool
	// execution.
	StopEndTurn StopReason = "end_turn"
	// StopToolRequested means the reply carries one or more tool use blocks
	// awaiting execution.
	StopToolRequested StopReason = "tool_requested"
)

// Usage captures token accounting reported by the provider for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Reply is the normalized result of one model invocation.
type Reply struct {
	Message    transcript.Message
	StopReason StopReason
	Usage      *Usage
}

// Gateway abstracts "send transcript + tool declarations, get back a reply
// and a stop reason". Implementations must not mutate the message slice and
// must classify failures as *TransientError (safe to retry, produced no
// observable effect) or *FatalError (malformed request, never retried).
//
// A failed call makes no transcript mutation on the caller's side, which is
// what makes retrying safe without provider-side deduplication.
type Gateway interface {
	Invoke(ctx context.Context, messages []transcript.Message, tools []tool.Declaration) (*Reply, error)
}

// TransientError wraps a failure that is safe to retry under the run's
// gateway retry policy (rate limits, service unavailability, timeouts).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient gateway error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError wraps a failure that retrying cannot fix, typically a request
// the provider rejected as malformed.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal gateway error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *FatalError) Unwrap() error { return e.Err }

// Transientf builds a TransientError from a format string.
func Transientf(format string, args ...any) *TransientError {
	return &TransientError{Err: fmt.Errorf(format, args...)}
}

// Fatalf builds a FatalError from a format string.
func Fatalf(format string, args ...any) *FatalError {
	return &FatalError{Err: fmt.Errorf(format, args...)}
}

// IsTransient reports whether err is an explicitly retryable gateway failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// TransientStatus reports whether an HTTP status code from a provider marks
// a retryable condition. Shared by the concrete adapters.
func TransientStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504, 529:
		return true
	}
	return false
}
