// Package openai adapts the OpenAI Chat Completions API to the gateway
// contract. Tool results become role "tool" messages keyed by call id, and
// finish reasons are normalized so the orchestrator sees the same stop-reason
// vocabulary regardless of provider.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/toolloop/toolloop/gateway"
	"github.com/toolloop/toolloop/tool"
	"github.com/toolloop/toolloop/transcript"
)

// Options configures the OpenAI gateway adapter. Fields mirror a minimal
// subset of Chat Completion parameters.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	System              string
}

// Gateway wraps the OpenAI Chat Completions API behind the generic
// gateway.Gateway interface.
type Gateway struct {
	client *openai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
}

// New creates a gateway using the official client. The API key falls back to
// the OPENAI_API_KEY environment variable when not set explicitly.
func New(optFns ...func(o *Options)) *Gateway {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)

	return &Gateway{client: &client, opts: opts}
}

// NewFromClient creates a gateway from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Gateway {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{client: client, opts: opts}
}

// Invoke sends the conversation and tool declarations to the Chat Completions
// API and normalizes the first choice into a Reply.
func (g *Gateway) Invoke(
	ctx context.Context,
	messages []transcript.Message,
	tools []tool.Declaration,
) (*gateway.Reply, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            g.buildMessages(messages),
		Model:               g.opts.Model,
		Temperature:         openai.Float(g.opts.Temperature),
		MaxCompletionTokens: openai.Int(g.opts.MaxCompletionTokens),
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, gateway.Fatalf("openai response carries no choices")
	}
	choice := resp.Choices[0]

	msg := transcript.Message{Role: transcript.RoleAssistant}
	if choice.Message.Content != "" {
		msg.Content = append(msg.Content, transcript.TextBlock{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		input, err := decodeArguments(tc.Function.Arguments)
		if err != nil {
			return nil, gateway.Fatalf("tool call %q carries malformed arguments: %w", tc.ID, err)
		}
		msg.Content = append(msg.Content, transcript.ToolUseBlock{
			ToolUseID: tc.ID,
			Name:      tc.Function.Name,
			Input:     input,
		})
	}

	return &gateway.Reply{
		Message:    msg,
		StopReason: mapFinishReason(choice.FinishReason),
		Usage: &gateway.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}, nil
}

// mapFinishReason normalizes finish reasons. Unknown values pass through
// verbatim and the orchestrator fails the run on them.
func mapFinishReason(r string) gateway.StopReason {
	switch r {
	case "tool_calls":
		return gateway.StopToolRequested
	case "stop":
		return gateway.StopEndTurn
	default:
		return gateway.StopReason(r)
	}
}

// classify wraps an API failure as transient or fatal. Context expiry is
// returned as-is so callers can distinguish timeout from cancellation.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if gateway.TransientStatus(apierr.StatusCode) {
			return gateway.Transientf("openai api status %d: %w", apierr.StatusCode, err)
		}
		return gateway.Fatalf("openai api status %d: %w", apierr.StatusCode, err)
	}
	// No HTTP response means the request may never have reached the provider.
	return gateway.Transientf("openai transport error: %w", err)
}

func decodeArguments(args string) (map[string]any, error) {
	if args == "" {
		return map[string]any{}, nil
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return nil, err
	}
	if input == nil {
		input = map[string]any{}
	}
	return input, nil
}

// buildMessages converts transcript messages to OpenAI chat messages. Tool
// result blocks expand into dedicated role "tool" messages immediately after
// the assistant turn that requested them.
func (g *Gateway) buildMessages(messages []transcript.Message) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	if g.opts.System != "" {
		out = append(out, openai.SystemMessage(g.opts.System))
	}
	for _, m := range messages {
		switch m.Role {
		case transcript.RoleAssistant:
			out = append(out, buildAssistantMessage(m))
		default:
			out = append(out, buildUserMessages(m)...)
		}
	}
	return out
}

func buildAssistantMessage(m transcript.Message) openai.ChatCompletionMessageParamUnion {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	var text strings.Builder
	for _, b := range m.Content {
		switch block := b.(type) {
		case transcript.TextBlock:
			text.WriteString(block.Text)
		case transcript.ToolUseBlock:
			args := "{}"
			if raw, err := json.Marshal(block.Input); err == nil {
				args = string(raw)
			}
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
				ID:   block.ToolUseID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      block.Name,
					Arguments: args,
				},
			})
		}
	}
	if len(toolCalls) == 0 {
		return openai.AssistantMessage(text.String())
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &openai.ChatCompletionAssistantMessageParam{
		Role:      "assistant",
		ToolCalls: toolCalls,
	}}
}

func buildUserMessages(m transcript.Message) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	var text strings.Builder
	for _, b := range m.Content {
		switch block := b.(type) {
		case transcript.TextBlock:
			text.WriteString(block.Text)
		case transcript.ToolResultBlock:
			out = append(out, openai.ToolMessage(renderResult(block), block.ToolUseID))
		}
	}
	if text.Len() > 0 {
		out = append(out, openai.UserMessage(text.String()))
	}
	return out
}

// renderResult flattens result content into the textual form the chat API
// accepts for tool messages. An error result is prefixed so the model can
// tell success from failure, since the chat format has no error flag.
func renderResult(block transcript.ToolResultBlock) string {
	var sb strings.Builder
	if block.Status == transcript.ResultError {
		sb.WriteString("error: ")
	}
	for i, p := range block.Content {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch piece := p.(type) {
		case transcript.TextContent:
			sb.WriteString(piece.Text)
		case transcript.JSONContent:
			if raw, err := json.Marshal(piece.Value); err == nil {
				sb.Write(raw)
			}
		case transcript.BinaryContent:
			sb.WriteString(base64.StdEncoding.EncodeToString(piece.Data))
		}
	}
	return sb.String()
}

// buildTools converts tool declarations to the OpenAI function tool format.
func buildTools(tools []tool.Declaration) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  t.InputSchema,
			},
		}
	}
	return out
}
