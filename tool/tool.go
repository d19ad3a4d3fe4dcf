// Package tool implements the function / tool calling subsystem: the Tool
// contract, a read-only Registry for lookup and declaration export, and a
// FunctionTool adapter with schema validated arguments and consistent error
// handling.
package tool

import (
	"context"
	"errors"
	"fmt"
)

// Tool defines the interface for capabilities the model can request during a
// run (API calls, computations, side effects).
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define a proper JSON schema for their input
//   - Classify failures as transient or fatal via ToolError
//   - Be safe for concurrent use across independent runs
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is surfaced to the model to help it decide when to call the tool.
	Description() string

	// InputSchema returns a JSON Schema object describing the expected input.
	InputSchema() map[string]any

	// Call executes the tool with structured arguments. The context carries
	// the run's cancellation and deadline; handlers must honor it for any
	// blocking work.
	Call(ctx context.Context, input map[string]any) (any, error)
}

// ToolError represents errors that occur during tool execution. Transient
// marks failures that are safe to retry under the run's tool retry policy;
// everything else terminates the attempt and is fed back to the model as an
// error result.
type ToolError struct {
	Tool      string `json:"tool"`              // Name of the tool that failed
	Message   string `json:"message"`           // Error message
	Code      string `json:"code"`              // Error code for categorization
	Transient bool   `json:"transient"`         // Safe to retry
	Details   any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a fatal ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// NewTransientToolError creates a retryable ToolError.
func NewTransientToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code, Transient: true}
}

// IsTransient reports whether err is an explicitly retryable tool failure.
// Only *ToolError values marked Transient qualify; there is no blanket
// retry-on-any-error.
func IsTransient(err error) bool {
	var te *ToolError
	return errors.As(err, &te) && te.Transient
}
