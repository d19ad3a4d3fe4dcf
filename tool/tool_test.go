package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolloop/toolloop/internal/util"
)

// -------------------- Schema Derivation --------------------

type sampleInput struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestDeriveSchema(t *testing.T) {
	schema := util.DeriveSchema(sampleInput{})
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")

	// Required only includes non-pointer, non-omitempty exported fields.
	req, ok := schema["required"].([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"a"}, req)
}

// -------------------- FunctionTool --------------------

func sumSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
}

func TestFunctionTool_Success(t *testing.T) {
	sum, err := NewFunctionTool("calculate_sum", "Add numbers", sumSchema(),
		func(_ context.Context, input map[string]any) (any, error) {
			return input["a"].(float64) + input["b"].(float64), nil
		})
	require.NoError(t, err)

	result, err := sum.Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	sum, err := NewFunctionTool("calculate_sum", "Add numbers", sumSchema(),
		func(_ context.Context, _ map[string]any) (any, error) {
			t.Fatal("function must not run on invalid input")
			return nil, nil
		})
	require.NoError(t, err)

	_, err = sum.Call(context.Background(), map[string]any{"a": 2.0})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
	assert.Equal(t, "calculate_sum", toolErr.Tool)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	fail, err := NewFunctionTool("fail", "Fails", nil,
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, errors.New("boom")
		})
	require.NoError(t, err)

	_, err = fail.Call(context.Background(), nil)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Contains(t, toolErr.Message, "boom")
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	custom := NewTransientToolError("flaky", "backend busy", "BUSY")
	flaky, err := NewFunctionTool("flaky", "Flaky", nil,
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, custom
		})
	require.NoError(t, err)

	_, err = flaky.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "BUSY", toolErr.Code)
	assert.True(t, toolErr.Transient)
}

func TestFunctionTool_RejectsBadSchemaAtConstruction(t *testing.T) {
	_, err := NewFunctionTool("bad", "Bad schema", map[string]any{
		"type": 42,
	}, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, nil
	})
	assert.Error(t, err)
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	echo, err := NewFunctionToolFromStruct("echo", "Echo field A", sampleInput{},
		func(_ context.Context, input map[string]any) (any, error) {
			return input["a"], nil
		})
	require.NoError(t, err)

	result, err := echo.Call(context.Background(), map[string]any{"a": "hello"})
	assert.NoError(t, err)
	assert.Equal(t, "hello", result)

	_, err = echo.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

// -------------------- Transience Classification --------------------

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(NewTransientToolError("x", "busy", "BUSY")))
	assert.False(t, IsTransient(NewToolError("x", "broken", "BROKEN")))
	assert.False(t, IsTransient(errors.New("plain error")))
	assert.False(t, IsTransient(nil))
}

// -------------------- Registry --------------------

func mustTool(t *testing.T, name string) *FunctionTool {
	t.Helper()
	ft, err := NewFunctionTool(name, name+" tool", nil,
		func(_ context.Context, _ map[string]any) (any, error) {
			return name, nil
		})
	require.NoError(t, err)
	return ft
}

func TestRegistry_ResolveAndDeclarations(t *testing.T) {
	reg, err := NewRegistry(mustTool(t, "alpha"), mustTool(t, "beta"))
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	got, err := reg.Resolve("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name())

	decls := reg.Declarations()
	require.Len(t, decls, 2)
	assert.Equal(t, "alpha", decls[0].Name)
	assert.Equal(t, "beta", decls[1].Name)
	assert.Equal(t, []string{"alpha", "beta"}, reg.Names())
}

func TestRegistry_UnknownToolIsNotFound(t *testing.T) {
	reg, err := NewRegistry(mustTool(t, "alpha"))
	require.NoError(t, err)

	_, err = reg.Resolve("missing")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Name)
}

func TestRegistry_RejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry(mustTool(t, "alpha"), mustTool(t, "alpha"))
	assert.Error(t, err)
}
