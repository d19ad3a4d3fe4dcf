package transcript

// Role identifies the author of a Message. Only user and assistant roles
// exist in a transcript; tool results travel inside user messages.
type Role string

const (
	// RoleUser marks messages authored by the caller (including tool results
	// fed back to the model).
	RoleUser Role = "user"
	// RoleAssistant marks messages authored by the model.
	RoleAssistant Role = "assistant"
)

// Block represents a polymorphic segment of message content. Concrete block
// types implement the unexported isBlock marker enabling a closed set.
type Block interface{ isBlock() }

// TextBlock is a plain text content segment.
type TextBlock struct {
	Text string // Plain UTF-8 text
}

// isBlock implements the Block interface for TextBlock.
func (TextBlock) isBlock() {}

// ToolUseBlock is a model-emitted request to execute a named tool.
type ToolUseBlock struct {
	ToolUseID string         // Unique within the transcript
	Name      string         // Tool name as declared to the model
	Input     map[string]any // Structured arguments
}

// isBlock implements the Block interface for ToolUseBlock.
func (ToolUseBlock) isBlock() {}

// ResultStatus classifies the outcome carried by a ToolResultBlock.
type ResultStatus string

const (
	// ResultSuccess indicates the tool handler completed normally.
	ResultSuccess ResultStatus = "success"
	// ResultError indicates the handler failed; the content carries a
	// human-readable message the model can react to.
	ResultError ResultStatus = "error"
)

// ToolResultBlock carries the outcome of a previously requested tool call.
type ToolResultBlock struct {
	ToolUseID string          // Matches the originating ToolUseBlock
	Status    ResultStatus    // success or error
	Content   []ResultContent // Ordered payload segments
}

// isBlock implements the Block interface for ToolResultBlock.
func (ToolResultBlock) isBlock() {}

// ResultContent is a polymorphic payload segment inside a tool result.
type ResultContent interface{ isResultContent() }

// TextContent is a plain text result segment.
type TextContent struct {
	Text string
}

// isResultContent implements the ResultContent interface for TextContent.
func (TextContent) isResultContent() {}

// JSONContent is a structured result segment.
type JSONContent struct {
	Value map[string]any
}

// isResultContent implements the ResultContent interface for JSONContent.
func (JSONContent) isResultContent() {}

// BinaryContent is an opaque binary result segment with optional MIME hint.
type BinaryContent struct {
	Data     []byte
	MimeType string
}

// isResultContent implements the ResultContent interface for BinaryContent.
func (BinaryContent) isResultContent() {}

// Message holds a role plus ordered content blocks. Once appended to a
// Transcript a Message must not be mutated.
type Message struct {
	Role    Role
	Content []Block
}

// NewUserMessage builds a user message from content blocks.
func NewUserMessage(blocks ...Block) Message {
	return Message{Role: RoleUser, Content: blocks}
}

// NewAssistantMessage builds an assistant message from content blocks.
func NewAssistantMessage(blocks ...Block) Message {
	return Message{Role: RoleAssistant, Content: blocks}
}

// ToolUses returns the ToolUseBlock segments of the message preserving their
// original order.
func (m Message) ToolUses() []ToolUseBlock {
	var uses []ToolUseBlock
	for _, b := range m.Content {
		if tu, ok := b.(ToolUseBlock); ok {
			uses = append(uses, tu)
		}
	}
	return uses
}

// ToolResults returns the ToolResultBlock segments of the message preserving
// their original order.
func (m Message) ToolResults() []ToolResultBlock {
	var results []ToolResultBlock
	for _, b := range m.Content {
		if tr, ok := b.(ToolResultBlock); ok {
			results = append(results, tr)
		}
	}
	return results
}

// Text concatenates all text blocks of the message.
func (m Message) Text() string {
	var s string
	for _, b := range m.Content {
		if tb, ok := b.(TextBlock); ok {
			s += tb.Text
		}
	}
	return s
}
