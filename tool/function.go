package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/toolloop/toolloop/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a
// tool.
//
// Responsibilities:
//   - Holds a JSON Schema describing the accepted input
//   - Validates model supplied arguments against that schema before execution
//   - Normalizes error handling so callers receive *ToolError with consistent
//     codes:
//     VALIDATION_ERROR  -> schema / argument mismatch
//     EXECUTION_ERROR   -> underlying function returned an error (non-ToolError)
//     (custom codes and transient flags preserved if the function returns
//     *ToolError directly)
//
// Concurrency:
//
//	A FunctionTool has no internal mutable state after construction and is
//	safe for concurrent use by multiple goroutines.
//
// Returned result:
//
//	The returned value can be any Go type the caller can map into tool result
//	content (string, []byte, or a JSON-serializable value). If more structure
//	is required, implement the Tool interface directly.
type FunctionTool struct {
	// Tool identifier (snake_case recommended)
	name string
	// Human-readable description shown to models
	description string
	// JSON schema describing accepted input
	schema map[string]any
	// Compiled form used for validation
	compiled *jsonschema.Schema
	// User supplied implementation
	fn func(ctx context.Context, input map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and
// function. The schema is compiled once; invalid schemas are reported at
// construction time rather than on first call.
//
// Example:
//
//	sumTool, err := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(ctx context.Context, input map[string]any) (any, error) {
//	    return input["a"].(float64) + input["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	schema map[string]any,
	fn func(ctx context.Context, input map[string]any) (any, error),
) (*FunctionTool, error) {
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	compiled, err := util.CompileSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	return &FunctionTool{
		name:        name,
		description: description,
		schema:      schema,
		compiled:    compiled,
		fn:          fn,
	}, nil
}

// NewFunctionToolFromStruct derives the input schema from a struct using
// reflection. It is a convenience for simple argument containers.
//
// Example:
//
//	type SumInput struct {
//	  A float64 `json:"a" description:"First addend"`
//	  B float64 `json:"b" description:"Second addend"`
//	}
//
//	sumTool, err := NewFunctionToolFromStruct(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  SumInput{},
//	  func(ctx context.Context, input map[string]any) (any, error) {
//	    return input["a"].(float64) + input["b"].(float64), nil
//	  },
//	)
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, input map[string]any) (any, error),
) (*FunctionTool, error) {
	return NewFunctionTool(name, description, util.DeriveSchema(structType), fn)
}

// Name returns the unique tool name used in declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// InputSchema returns the JSON schema describing expected input.
func (t *FunctionTool) InputSchema() map[string]any { return t.schema }

// Call validates the provided input against the declared schema then invokes
// the underlying function. Validation or execution failures are wrapped (or
// passed through) as *ToolError for uniform downstream handling.
//
// Error semantics:
//
//	*ToolError (returned directly)  -> forwarded unchanged
//	validation failure              -> *ToolError{Code: "VALIDATION_ERROR"}
//	other error                     -> *ToolError{Code: "EXECUTION_ERROR"}
func (t *FunctionTool) Call(ctx context.Context, input map[string]any) (any, error) {
	if input == nil {
		input = map[string]any{}
	}

	if err := t.compiled.Validate(anyMap(input)); err != nil {
		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("input validation failed: %v", err),
			Code:    "VALIDATION_ERROR",
			Details: err.Error(),
		}
	}

	result, err := t.fn(ctx, input)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) { // Already a ToolError -> forward
			return nil, toolErr
		}

		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}

	return result, nil
}

// anyMap widens the input map for the validator, which expects decoded JSON
// shapes.
func anyMap(m map[string]any) any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
