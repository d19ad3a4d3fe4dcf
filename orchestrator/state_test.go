package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolloop/toolloop/transcript"
)

func TestState_Terminal(t *testing.T) {
	assert.False(t, StateInvoking.Terminal())
	assert.False(t, StateEvaluating.Terminal())
	assert.False(t, StateDispatching.Terminal())
	assert.False(t, StateMerging.Terminal())
	assert.True(t, StateSucceeded.Terminal())
	assert.True(t, StateFailed.Terminal())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "invoking", StateInvoking.String())
	assert.Equal(t, "failed", StateFailed.String())
}

func TestIterationLimiter_Bounded(t *testing.T) {
	l := NewIterationLimiter(2)
	assert.NoError(t, l.Increment())
	assert.NoError(t, l.Increment())
	assert.Error(t, l.Increment())
	assert.Equal(t, 3, l.Count())
}

func TestIterationLimiter_Unbounded(t *testing.T) {
	l := NewIterationLimiter(0)
	for i := 0; i < 100; i++ {
		assert.NoError(t, l.Increment())
	}
	assert.Equal(t, -1, l.Remaining())
}

func TestRun_CloneIsIndependent(t *testing.T) {
	ts, err := transcript.NewWithInitial(transcript.NewUserMessage(transcript.TextBlock{Text: "hi"}))
	require.NoError(t, err)

	run := &Run{ID: "r-1", Transcript: ts, Status: StatusRunning}
	cp := run.Clone()

	require.NoError(t, cp.Transcript.Append(transcript.NewAssistantMessage(transcript.TextBlock{Text: "hello"})))
	assert.Equal(t, 1, run.Transcript.Len())
	assert.Equal(t, 2, cp.Transcript.Len())
}
