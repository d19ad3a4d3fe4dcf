// Package anthropic adapts the Anthropic Messages API to the gateway
// contract. It converts transcript messages into the SDK's block format,
// normalizes stop reasons, and classifies API failures by HTTP status so the
// orchestrator retries only what is safe to retry.
package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/toolloop/toolloop/gateway"
	"github.com/toolloop/toolloop/tool"
	"github.com/toolloop/toolloop/transcript"
)

// Options configures the Anthropic gateway adapter (model id, sampling,
// max tokens, API key, optional system prompt).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	System      string
}

// Gateway wraps the Anthropic Messages API behind the generic gateway.Gateway
// interface.
type Gateway struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// New creates a gateway using the official client. The API key falls back to
// the ANTHROPIC_API_KEY environment variable when not set explicitly.
func New(optFns ...func(o *Options)) *Gateway {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Gateway{client: &client, opts: opts}
}

// NewFromClient creates a gateway from an existing client, for callers that
// configure transport, retries, or base URL themselves.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Gateway {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{client: client, opts: opts}
}

// Invoke sends the conversation and tool declarations to the Messages API and
// normalizes the response into a Reply.
func (g *Gateway) Invoke(
	ctx context.Context,
	messages []transcript.Message,
	tools []tool.Declaration,
) (*gateway.Reply, error) {
	params := anthropic.MessageNewParams{
		Model:       g.opts.Model,
		Messages:    buildMessages(messages),
		MaxTokens:   g.opts.MaxTokens,
		Temperature: anthropic.Float(g.opts.Temperature),
	}
	if g.opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: g.opts.System}}
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(ctx, err)
	}

	msg := transcript.Message{Role: transcript.RoleAssistant}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			tb := block.AsText()
			if tb.Text != "" {
				msg.Content = append(msg.Content, transcript.TextBlock{Text: tb.Text})
			}
		case "tool_use":
			ub := block.AsToolUse()
			input, err := decodeInput(ub.Input)
			if err != nil {
				return nil, gateway.Fatalf("tool use %q carries malformed input: %w", ub.ID, err)
			}
			msg.Content = append(msg.Content, transcript.ToolUseBlock{
				ToolUseID: ub.ID,
				Name:      ub.Name,
				Input:     input,
			})
		}
	}

	return &gateway.Reply{
		Message:    msg,
		StopReason: mapStopReason(resp.StopReason),
		Usage: &gateway.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			TotalTokens:  int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

// mapStopReason normalizes provider stop reasons. Unknown values pass through
// verbatim and the orchestrator fails the run on them.
func mapStopReason(r anthropic.StopReason) gateway.StopReason {
	switch r {
	case anthropic.StopReasonToolUse:
		return gateway.StopToolRequested
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
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
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		if gateway.TransientStatus(apierr.StatusCode) {
			return gateway.Transientf("anthropic api status %d: %w", apierr.StatusCode, err)
		}
		return gateway.Fatalf("anthropic api status %d: %w", apierr.StatusCode, err)
	}
	// No HTTP response means the request may never have reached the provider.
	return gateway.Transientf("anthropic transport error: %w", err)
}

func decodeInput(raw any) (map[string]any, error) {
	if raw == nil {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var input map[string]any
	if len(b) > 0 && string(b) != "null" {
		if err := json.Unmarshal(b, &input); err != nil {
			return nil, err
		}
	}
	if input == nil {
		input = map[string]any{}
	}
	return input, nil
}

// buildMessages converts transcript messages to Anthropic message params.
// Tool results live inside user messages in both representations, so the
// mapping is block-for-block.
func buildMessages(messages []transcript.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		content := buildContent(m.Content)
		if len(content) == 0 {
			continue
		}
		switch m.Role {
		case transcript.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(content...))
		default:
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out
}

func buildContent(blocks []transcript.Block) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion
	for _, b := range blocks {
		switch block := b.(type) {
		case transcript.TextBlock:
			if block.Text != "" {
				content = append(content, anthropic.NewTextBlock(block.Text))
			}
		case transcript.ToolUseBlock:
			content = append(content, anthropic.NewToolUseBlock(
				block.ToolUseID,
				block.Input,
				block.Name,
			))
		case transcript.ToolResultBlock:
			content = append(content, anthropic.NewToolResultBlock(
				block.ToolUseID,
				renderResult(block.Content),
				block.Status == transcript.ResultError,
			))
		}
	}
	return content
}

// renderResult flattens result content into the textual form the Messages API
// accepts for tool results.
func renderResult(pieces []transcript.ResultContent) string {
	var sb strings.Builder
	for i, p := range pieces {
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

// buildTools converts tool declarations to the Anthropic tool format.
func buildTools(tools []tool.Declaration) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if t.InputSchema != nil {
			if properties, ok := t.InputSchema["properties"]; ok {
				inputSchema.Properties = properties
			}
			inputSchema.Required = requiredNames(t.InputSchema["required"])
		}
		u := anthropic.ToolUnionParamOfTool(inputSchema, t.Name)
		if u.OfTool != nil && t.Description != "" {
			u.OfTool.Description = anthropic.String(t.Description)
		}
		out[i] = u
	}
	return out
}

func requiredNames(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		names := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		return names
	}
	return nil
}
