package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolloop/toolloop/gateway"
	"github.com/toolloop/toolloop/orchestrator"
	"github.com/toolloop/toolloop/store"
	"github.com/toolloop/toolloop/tool"
	"github.com/toolloop/toolloop/transcript"
)

// blockingGateway parks until the run context expires, standing in for a
// slow provider.
type blockingGateway struct{}

func (blockingGateway) Invoke(ctx context.Context, _ []transcript.Message, _ []tool.Declaration) (*gateway.Reply, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func initialMsg() transcript.Message {
	return transcript.NewUserMessage(transcript.TextBlock{Text: "hi"})
}

func endTurn(text string) transcript.Message {
	return transcript.NewAssistantMessage(transcript.TextBlock{Text: text})
}

func TestRun_SynchronousSuccess(t *testing.T) {
	gw := gateway.NewMockGateway().
		QueueReply(endTurn("hello"), gateway.StopEndTurn)

	sup := New(gw, nil)
	run, err := sup.Run(context.Background(), initialMsg())
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusSucceeded, run.Status)
	assert.Equal(t, 2, run.Transcript.Len())
}

func TestStart_DeliversExactlyOneReportThenCloses(t *testing.T) {
	gw := gateway.NewMockGateway().
		QueueReply(endTurn("hello"), gateway.StopEndTurn)

	sup := New(gw, nil)
	runID, reports, err := sup.Start(context.Background(), initialMsg())
	require.NoError(t, err)

	report, ok := <-reports
	require.True(t, ok)
	assert.Equal(t, runID, report.RunID)
	assert.Equal(t, orchestrator.StatusSucceeded, report.Status)
	assert.NoError(t, report.Err)

	_, ok = <-reports
	assert.False(t, ok)
}

func TestStart_ArchivesTerminalRun(t *testing.T) {
	gw := gateway.NewMockGateway().
		QueueReply(endTurn("hello"), gateway.StopEndTurn)

	archive := store.NewInMemoryStore()
	sup := New(gw, nil, func(o *Options) { o.Store = archive })

	runID, reports, err := sup.Start(context.Background(), initialMsg())
	require.NoError(t, err)
	<-reports

	run, err := archive.Get(runID)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusSucceeded, run.Status)

	run, err = sup.Lookup(runID)
	require.NoError(t, err)
	assert.Equal(t, runID, run.ID)
}

func TestStart_FailureReportCarriesReasonAndError(t *testing.T) {
	gw := gateway.NewMockGateway().
		QueueError(gateway.Fatalf("bad request"))

	sup := New(gw, nil)
	_, reports, err := sup.Start(context.Background(), initialMsg())
	require.NoError(t, err)

	report := <-reports
	assert.Equal(t, orchestrator.StatusFailed, report.Status)
	assert.Equal(t, orchestrator.ReasonGatewayRejected, report.Reason)
	assert.Error(t, report.Err)
}

func TestStart_RejectsInvalidInitialMessage(t *testing.T) {
	sup := New(gateway.NewMockGateway(), nil)
	_, _, err := sup.Start(context.Background(), endTurn("wrong role"))
	assert.Error(t, err)
}

func TestCancel_StopsActiveRun(t *testing.T) {
	sup := New(blockingGateway{}, nil, func(o *Options) { o.Timeout = 0 })

	runID, reports, err := sup.Start(context.Background(), initialMsg())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sup.ActiveRuns() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, sup.Cancel(runID))

	select {
	case report := <-reports:
		assert.Equal(t, orchestrator.StatusFailed, report.Status)
		assert.Equal(t, orchestrator.ReasonCancelled, report.Reason)
	case <-time.After(time.Second):
		t.Fatal("run did not stop after cancel")
	}

	require.Eventually(t, func() bool { return sup.ActiveRuns() == 0 }, time.Second, time.Millisecond)
}

func TestCancel_UnknownRunIsAnError(t *testing.T) {
	sup := New(gateway.NewMockGateway(), nil)
	assert.Error(t, sup.Cancel("ghost"))
}

func TestStart_TimeoutFailsRun(t *testing.T) {
	sup := New(blockingGateway{}, nil, func(o *Options) { o.Timeout = 20 * time.Millisecond })

	_, reports, err := sup.Start(context.Background(), initialMsg())
	require.NoError(t, err)

	select {
	case report := <-reports:
		assert.Equal(t, orchestrator.StatusFailed, report.Status)
		assert.Equal(t, orchestrator.ReasonTimeout, report.Reason)
	case <-time.After(time.Second):
		t.Fatal("run did not stop at the deadline")
	}
}

func TestStart_IterationLimitPropagates(t *testing.T) {
	gw := gateway.NewMockGateway()
	echo, err := tool.NewFunctionTool("echo", "Echo", nil,
		func(_ context.Context, _ map[string]any) (any, error) { return "ok", nil })
	require.NoError(t, err)
	reg, err := tool.NewRegistry(echo)
	require.NoError(t, err)

	gw.QueueReply(transcript.NewAssistantMessage(transcript.ToolUseBlock{
		ToolUseID: "tu-1", Name: "echo", Input: map[string]any{},
	}), gateway.StopToolRequested)
	gw.QueueReply(transcript.NewAssistantMessage(transcript.ToolUseBlock{
		ToolUseID: "tu-2", Name: "echo", Input: map[string]any{},
	}), gateway.StopToolRequested)

	sup := New(gw, reg, func(o *Options) { o.MaxIterations = 1 })
	run, err := sup.Run(context.Background(), initialMsg())
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusFailed, run.Status)
	assert.Equal(t, orchestrator.ReasonIterationLimit, run.Reason)
	assert.Equal(t, 1, run.Iterations)
}
