package toolloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolloop/toolloop/gateway"
	"github.com/toolloop/toolloop/orchestrator"
	"github.com/toolloop/toolloop/tool"
	"github.com/toolloop/toolloop/transcript"
)

func TestAsk_DirectAnswer(t *testing.T) {
	gw := gateway.NewMockGateway().
		QueueReply(transcript.NewAssistantMessage(transcript.TextBlock{Text: "hello"}), gateway.StopEndTurn)

	loop, err := New(gw, nil)
	require.NoError(t, err)

	run, err := loop.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusSucceeded, run.Status)

	last, ok := run.Transcript.Last()
	require.True(t, ok)
	assert.Equal(t, "hello", last.Text())
}

func TestAsk_ToolRoundTrip(t *testing.T) {
	echo, err := tool.NewFunctionTool("echo", "Echo the text argument", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
	}, func(_ context.Context, input map[string]any) (any, error) {
		return input["text"], nil
	})
	require.NoError(t, err)

	gw := gateway.NewMockGateway().
		QueueReply(transcript.NewAssistantMessage(transcript.ToolUseBlock{
			ToolUseID: "tu-1", Name: "echo", Input: map[string]any{"text": "pong"},
		}), gateway.StopToolRequested).
		QueueReply(transcript.NewAssistantMessage(transcript.TextBlock{Text: "it said pong"}), gateway.StopEndTurn)

	loop, err := New(gw, []tool.Tool{echo})
	require.NoError(t, err)
	assert.Equal(t, []string{"echo"}, loop.Tools())

	run, err := loop.Ask(context.Background(), "ping the echo tool")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusSucceeded, run.Status)
	assert.Equal(t, 1, run.Iterations)
	assert.Equal(t, 4, run.Transcript.Len())
}

func TestStart_ReportsThroughSupervisor(t *testing.T) {
	gw := gateway.NewMockGateway().
		QueueReply(transcript.NewAssistantMessage(transcript.TextBlock{Text: "hello"}), gateway.StopEndTurn)

	loop, err := New(gw, nil)
	require.NoError(t, err)

	runID, reports, err := loop.Start(context.Background(), "hi")
	require.NoError(t, err)

	report := <-reports
	assert.Equal(t, runID, report.RunID)
	assert.Equal(t, orchestrator.StatusSucceeded, report.Status)

	run, err := loop.Supervisor().Lookup(runID)
	require.NoError(t, err)
	assert.Equal(t, runID, run.ID)
}

func TestNew_RejectsDuplicateTools(t *testing.T) {
	a, err := tool.NewFunctionTool("dup", "first", nil,
		func(_ context.Context, _ map[string]any) (any, error) { return nil, nil })
	require.NoError(t, err)
	b, err := tool.NewFunctionTool("dup", "second", nil,
		func(_ context.Context, _ map[string]any) (any, error) { return nil, nil })
	require.NoError(t, err)

	_, err = New(gateway.NewMockGateway(), []tool.Tool{a, b})
	assert.Error(t, err)
}
