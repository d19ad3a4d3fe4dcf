package gateway

import (
	"context"
	"sync"

	"github.com/toolloop/toolloop/tool"
	"github.com/toolloop/toolloop/transcript"
)

type mockStep struct {
	reply *Reply
	err   error
}

// MockGateway is a lightweight scripted Gateway useful for tests and
// examples. Steps are consumed in queue order; invoking past the end of the
// script fails fatally so a misbehaving loop cannot spin forever.
type MockGateway struct {
	mu    sync.Mutex
	steps []mockStep
	calls int
}

// NewMockGateway constructs an empty scripted gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// QueueReply appends a successful step returning msg with the given stop reason.
func (m *MockGateway) QueueReply(msg transcript.Message, stop StopReason) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{reply: &Reply{Message: msg, StopReason: stop}})
	return m
}

// QueueUsageReply appends a successful step carrying usage metadata.
func (m *MockGateway) QueueUsageReply(msg transcript.Message, stop StopReason, usage Usage) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{reply: &Reply{Message: msg, StopReason: stop, Usage: &usage}})
	return m
}

// QueueError appends a failing step returning err.
func (m *MockGateway) QueueError(err error) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{err: err})
	return m
}

// Invoke pops and executes the next scripted step.
func (m *MockGateway) Invoke(ctx context.Context, _ []transcript.Message, _ []tool.Declaration) (*Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if len(m.steps) == 0 {
		return nil, Fatalf("mock gateway script exhausted after %d calls", m.calls)
	}

	step := m.steps[0]
	m.steps = m.steps[1:]

	if step.err != nil {
		return nil, step.err
	}
	return step.reply, nil
}

// Calls returns how many times Invoke was attempted.
func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
