package transcript

import "fmt"

// InvariantViolationError reports an append that would corrupt the
// transcript's structure. It signals a programming or integration bug in the
// caller, never a recoverable runtime condition.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("transcript invariant violation: %s", e.Reason)
}

// Transcript is the ordered, append-only conversation history exchanged with
// the model. A Transcript is owned by exactly one orchestration run for the
// run's lifetime; it is not safe for concurrent use and never needs to be,
// because each run is a single sequential state machine.
//
// Append enforces the structural invariants:
//   - roles strictly alternate, starting with a user message
//   - tool-use ids are unique across the whole transcript
//   - every tool result references a tool use from the immediately preceding
//     assistant message, at most once
//   - an assistant message cannot be appended while tool uses are still
//     awaiting results
type Transcript struct {
	messages []Message

	// pendingOrder holds tool-use ids from the last assistant message that
	// still await results, in emission order. pending mirrors it as a set.
	pendingOrder []string
	pending      map[string]struct{}
	seenIDs      map[string]struct{}
}

// New creates an empty transcript.
func New() *Transcript {
	return &Transcript{
		pending: map[string]struct{}{},
		seenIDs: map[string]struct{}{},
	}
}

// NewWithInitial creates a transcript seeded with the initial user message.
func NewWithInitial(initial Message) (*Transcript, error) {
	t := New()
	if err := t.Append(initial); err != nil {
		return nil, err
	}
	return t, nil
}

// Len returns the number of messages. This is the primary bound used by
// callers for loop termination and cost control.
func (t *Transcript) Len() int { return len(t.messages) }

// Messages returns a copy of the message sequence. Block values are shared;
// they are treated as immutable after append.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Last returns the most recent message and true, or a zero Message and false
// when the transcript is empty.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// PendingToolUses reports the tool-use ids from the last assistant message
// that have no result yet, in emission order.
func (t *Transcript) PendingToolUses() []string {
	ids := make([]string, len(t.pendingOrder))
	copy(ids, t.pendingOrder)
	return ids
}

// Append validates msg against the transcript invariants and adds it.
// A failed append leaves the transcript unchanged.
func (t *Transcript) Append(msg Message) error {
	switch msg.Role {
	case RoleUser, RoleAssistant:
	default:
		return &InvariantViolationError{Reason: fmt.Sprintf("unknown role %q", msg.Role)}
	}

	if len(t.messages) == 0 {
		if msg.Role != RoleUser {
			return &InvariantViolationError{Reason: "transcript must start with a user message"}
		}
	} else if t.messages[len(t.messages)-1].Role == msg.Role {
		return &InvariantViolationError{Reason: fmt.Sprintf("consecutive %s messages", msg.Role)}
	}

	switch msg.Role {
	case RoleAssistant:
		if len(t.pending) > 0 {
			return &InvariantViolationError{Reason: "assistant message while tool results are outstanding"}
		}
		if err := t.checkToolUses(msg); err != nil {
			return err
		}
	case RoleUser:
		if err := t.checkToolResults(msg); err != nil {
			return err
		}
	}

	t.messages = append(t.messages, msg)
	t.applyBookkeeping(msg)

	return nil
}

func (t *Transcript) checkToolUses(msg Message) error {
	local := map[string]struct{}{}
	for _, tu := range msg.ToolUses() {
		if tu.ToolUseID == "" {
			return &InvariantViolationError{Reason: fmt.Sprintf("tool use %q has empty id", tu.Name)}
		}
		if _, dup := t.seenIDs[tu.ToolUseID]; dup {
			return &InvariantViolationError{Reason: fmt.Sprintf("duplicate tool use id %q", tu.ToolUseID)}
		}
		if _, dup := local[tu.ToolUseID]; dup {
			return &InvariantViolationError{Reason: fmt.Sprintf("duplicate tool use id %q", tu.ToolUseID)}
		}
		local[tu.ToolUseID] = struct{}{}
	}
	return nil
}

func (t *Transcript) checkToolResults(msg Message) error {
	local := map[string]struct{}{}
	for _, tr := range msg.ToolResults() {
		if _, ok := t.pending[tr.ToolUseID]; !ok {
			return &InvariantViolationError{Reason: fmt.Sprintf("tool result %q has no pending tool use", tr.ToolUseID)}
		}
		if _, dup := local[tr.ToolUseID]; dup {
			return &InvariantViolationError{Reason: fmt.Sprintf("duplicate tool result id %q", tr.ToolUseID)}
		}
		local[tr.ToolUseID] = struct{}{}
	}
	return nil
}

func (t *Transcript) applyBookkeeping(msg Message) {
	switch msg.Role {
	case RoleAssistant:
		for _, tu := range msg.ToolUses() {
			t.pending[tu.ToolUseID] = struct{}{}
			t.pendingOrder = append(t.pendingOrder, tu.ToolUseID)
			t.seenIDs[tu.ToolUseID] = struct{}{}
		}
	case RoleUser:
		for _, tr := range msg.ToolResults() {
			delete(t.pending, tr.ToolUseID)
			for i, id := range t.pendingOrder {
				if id == tr.ToolUseID {
					t.pendingOrder = append(t.pendingOrder[:i], t.pendingOrder[i+1:]...)
					break
				}
			}
		}
	}
}

// Clone returns an independent copy sharing no mutable state with the
// original. Used when archiving terminal runs.
func (t *Transcript) Clone() *Transcript {
	c := New()
	c.messages = make([]Message, len(t.messages))
	copy(c.messages, t.messages)
	c.pendingOrder = append(c.pendingOrder, t.pendingOrder...)
	for id := range t.pending {
		c.pending[id] = struct{}{}
	}
	for id := range t.seenIDs {
		c.seenIDs[id] = struct{}{}
	}
	return c
}
