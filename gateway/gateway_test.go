package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolloop/toolloop/transcript"
)

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsTransient(Transientf("rate limited")))
	assert.False(t, IsTransient(Fatalf("bad request")))
	assert.False(t, IsTransient(errors.New("plain")))

	wrapped := Transientf("status 429: %w", errors.New("too many requests"))
	assert.True(t, IsTransient(wrapped))
	assert.Contains(t, wrapped.Error(), "429")
}

func TestTransientStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		assert.True(t, TransientStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, TransientStatus(code), "status %d", code)
	}
}

func TestMockGateway_ScriptOrderAndExhaustion(t *testing.T) {
	msg := transcript.NewAssistantMessage(transcript.TextBlock{Text: "hello"})
	gw := NewMockGateway().
		QueueReply(msg, StopEndTurn).
		QueueError(Transientf("busy"))

	reply, err := gw.Invoke(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StopEndTurn, reply.StopReason)

	_, err = gw.Invoke(context.Background(), nil, nil)
	assert.True(t, IsTransient(err))

	_, err = gw.Invoke(context.Background(), nil, nil)
	var fatal *FatalError
	assert.ErrorAs(t, err, &fatal)
	assert.Equal(t, 3, gw.Calls())
}

func TestMockGateway_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gw := NewMockGateway().QueueReply(transcript.NewAssistantMessage(), StopEndTurn)
	_, err := gw.Invoke(ctx, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
