package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/toolloop/toolloop/gateway"
	"github.com/toolloop/toolloop/internal/util"
	"github.com/toolloop/toolloop/logging"
	"github.com/toolloop/toolloop/retry"
	"github.com/toolloop/toolloop/tool"
	"github.com/toolloop/toolloop/transcript"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// RunID overrides the generated run identifier.
	RunID string
	// GatewayRetry bounds retries of transient model gateway failures.
	GatewayRetry retry.Policy
	// ToolRetry bounds retries of transient tool failures. Exhaustion feeds
	// an error result back to the model instead of failing the run.
	ToolRetry retry.Policy
	// MaxIterations caps tool-use loop cycles per run. A reply that would
	// start one more cycle past the cap fails the run. 0 means unbounded.
	MaxIterations int
	// Logger receives structured progress events.
	Logger logging.Logger
}

// Orchestrator drives one conversation run: it invokes the model gateway,
// interprets the stop reason, dispatches tool requests through the registry,
// merges results into the transcript and loops until a terminal state.
//
// An Orchestrator executes as a single sequential state machine. It is bound
// to exactly one Run and must not be shared across goroutines; concurrent
// conversations each get their own Orchestrator and Transcript.
type Orchestrator struct {
	gw       gateway.Gateway
	registry *tool.Registry
	decls    []tool.Declaration
	limiter  *IterationLimiter
	run      *Run

	gatewayRetry retry.Policy
	toolRetry    retry.Policy
	logger       logging.Logger
}

// New creates an orchestrator owning a fresh transcript seeded with the
// initial user message.
func New(gw gateway.Gateway, registry *tool.Registry, initial transcript.Message, optFns ...func(o *Options)) (*Orchestrator, error) {
	opts := Options{
		RunID:        util.NewID(),
		GatewayRetry: retry.DefaultPolicy(),
		ToolRetry:    retry.DefaultPolicy(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if gw == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if registry == nil {
		var err error
		registry, err = tool.NewRegistry()
		if err != nil {
			return nil, err
		}
	}

	ts, err := transcript.NewWithInitial(initial)
	if err != nil {
		return nil, fmt.Errorf("seed transcript: %w", err)
	}

	return &Orchestrator{
		gw:           gw,
		registry:     registry,
		decls:        registry.Declarations(),
		limiter:      NewIterationLimiter(opts.MaxIterations),
		gatewayRetry: opts.GatewayRetry,
		toolRetry:    opts.ToolRetry,
		logger:       opts.Logger,
		run: &Run{
			ID:         opts.RunID,
			Transcript: ts,
			Status:     StatusRunning,
			StartedAt:  time.Now().UTC(),
		},
	}, nil
}

// RunRecord returns the run owned by this orchestrator. Callers must not
// touch it until Execute has returned.
func (o *Orchestrator) RunRecord() *Run { return o.run }

// Execute drives the state machine to a terminal state and returns the run.
// The two suspension points per cycle are the gateway invocation and each
// tool call; both honor ctx. Cancellation is checked at the top of Invoking,
// so an in-flight external call completes or times out on its own.
func (o *Orchestrator) Execute(ctx context.Context) *Run {
	o.logger.Debug("orchestrator.run.start", "run", o.run.ID, "tools", o.registry.Len())

	state := StateInvoking
	var reply *gateway.Reply
	var pending []transcript.ToolUseBlock
	var results []transcript.ToolResultBlock

	for !state.Terminal() {
		switch state {
		case StateInvoking:
			if err := ctx.Err(); err != nil {
				state = o.fail(ctxReason(err), err)
				continue
			}
			var err error
			reply, err = o.invokeGateway(ctx)
			if err != nil {
				state = o.failGateway(err)
				continue
			}
			if reply.Usage != nil {
				o.run.Usage.InputTokens += reply.Usage.InputTokens
				o.run.Usage.OutputTokens += reply.Usage.OutputTokens
				o.run.Usage.TotalTokens += reply.Usage.TotalTokens
			}
			if err := o.run.Transcript.Append(reply.Message); err != nil {
				state = o.fail(ReasonInvariantViolation, err)
				continue
			}
			state = StateEvaluating

		case StateEvaluating:
			switch reply.StopReason {
			case gateway.StopEndTurn:
				state = o.succeed()
			case gateway.StopToolRequested:
				pending = reply.Message.ToolUses()
				if len(pending) == 0 {
					state = o.fail(ReasonInvariantViolation,
						fmt.Errorf("tool_requested reply carries no tool use blocks"))
					continue
				}
				if err := o.limiter.Increment(); err != nil {
					state = o.fail(ReasonIterationLimit, err)
					continue
				}
				state = StateDispatching
			default:
				// Unknown stop reasons are never defaulted to success.
				state = o.fail(ReasonUnrecognizedStop,
					fmt.Errorf("unrecognized stop reason %q", reply.StopReason))
			}

		case StateDispatching:
			var err error
			results, err = o.dispatch(ctx, pending)
			if err != nil {
				state = o.failDispatch(err)
				continue
			}
			state = StateMerging

		case StateMerging:
			msg := transcript.Message{Role: transcript.RoleUser}
			for _, r := range results {
				msg.Content = append(msg.Content, r)
			}
			if err := o.run.Transcript.Append(msg); err != nil {
				state = o.fail(ReasonInvariantViolation, err)
				continue
			}
			o.run.Iterations++
			pending, results = nil, nil
			state = StateInvoking
		}
	}

	return o.run
}

// invokeGateway calls the gateway under the transient retry policy. A failed
// attempt produces no transcript mutation, which is what makes the retry
// idempotent from the caller's perspective.
func (o *Orchestrator) invokeGateway(ctx context.Context) (*gateway.Reply, error) {
	var reply *gateway.Reply

	start := time.Now()
	err := retry.Do(ctx, o.gatewayRetry, gateway.IsTransient, func(ctx context.Context) error {
		r, err := o.gw.Invoke(ctx, o.run.Transcript.Messages(), o.decls)
		if err != nil {
			return err
		}
		reply = r
		return nil
	})

	o.logger.Debug("orchestrator.gateway.invoked",
		"run", o.run.ID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	if err != nil {
		return nil, err
	}
	return reply, nil
}

// dispatch resolves and executes the pending tool requests strictly in the
// order the model emitted them. Handler failures become error results so the
// model can attempt recovery; an unknown tool name aborts the run.
func (o *Orchestrator) dispatch(ctx context.Context, pending []transcript.ToolUseBlock) ([]transcript.ToolResultBlock, error) {
	results := make([]transcript.ToolResultBlock, 0, len(pending))

	for _, tu := range pending {
		handler, err := o.registry.Resolve(tu.Name)
		if err != nil {
			o.logger.Error("orchestrator.tool.unresolved", "run", o.run.ID, "tool", tu.Name)
			return nil, err
		}

		start := time.Now()
		output, callErr := o.callTool(ctx, handler, tu)
		o.logger.Info("orchestrator.tool.executed",
			"run", o.run.ID,
			"tool", tu.Name,
			"tool_use_id", tu.ToolUseID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", callErr != nil,
		)

		if callErr != nil {
			// Run-level conditions (timeout, cancellation) still abort.
			if errors.Is(callErr, context.DeadlineExceeded) || errors.Is(callErr, context.Canceled) {
				return nil, callErr
			}
			results = append(results, transcript.ToolResultBlock{
				ToolUseID: tu.ToolUseID,
				Status:    transcript.ResultError,
				Content:   []transcript.ResultContent{transcript.TextContent{Text: callErr.Error()}},
			})
			continue
		}

		results = append(results, transcript.ToolResultBlock{
			ToolUseID: tu.ToolUseID,
			Status:    transcript.ResultSuccess,
			Content:   resultContent(output),
		})
	}

	return results, nil
}

// callTool runs one handler under the per-tool retry policy with panic
// recovery, so a crashing tool degrades into an error result instead of
// taking down the run.
func (o *Orchestrator) callTool(ctx context.Context, handler tool.Tool, tu transcript.ToolUseBlock) (any, error) {
	var output any

	err := retry.Do(ctx, o.toolRetry, tool.IsTransient, func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("orchestrator.tool.panic", "run", o.run.ID, "tool", tu.Name, "recover", r)
				err = &panicErr{val: r, stack: debug.Stack()}
			}
		}()

		out, err := handler.Call(ctx, tu.Input)
		if err != nil {
			return err
		}
		output = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	return output, nil
}

func (o *Orchestrator) succeed() State {
	o.run.Status = StatusSucceeded
	o.run.FinishedAt = time.Now().UTC()
	o.logger.Info("orchestrator.run.succeeded",
		"run", o.run.ID,
		"iterations", o.run.Iterations,
		"messages", o.run.Transcript.Len(),
	)
	return StateSucceeded
}

func (o *Orchestrator) fail(reason FailReason, err error) State {
	o.run.Status = StatusFailed
	o.run.Reason = reason
	o.run.LastErr = err
	o.run.FinishedAt = time.Now().UTC()
	o.logger.Error("orchestrator.run.failed",
		"run", o.run.ID,
		"reason", string(reason),
		"error", errString(err),
	)
	return StateFailed
}

// failGateway maps a terminal gateway error onto the failure taxonomy.
func (o *Orchestrator) failGateway(err error) State {
	var exhausted *retry.ExhaustedError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return o.fail(ctxReason(err), err)
	case errors.As(err, &exhausted):
		return o.fail(ReasonGatewayUnavailable, err)
	case gateway.IsTransient(err):
		// Single-attempt policies surface the transient error directly.
		return o.fail(ReasonGatewayUnavailable, err)
	default:
		return o.fail(ReasonGatewayRejected, err)
	}
}

// failDispatch maps a terminal dispatch error onto the failure taxonomy.
func (o *Orchestrator) failDispatch(err error) State {
	var notFound *tool.NotFoundError
	switch {
	case errors.As(err, &notFound):
		return o.fail(ReasonToolNotFound, err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return o.fail(ctxReason(err), err)
	default:
		// Anything else escaping dispatch means the loop broke its own rules.
		return o.fail(ReasonInvariantViolation, err)
	}
}

// ctxReason distinguishes a deadline expiry from an explicit cancellation.
func ctxReason(err error) FailReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonCancelled
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// resultContent maps a handler's return value onto tool result content.
// Strings and byte slices pass through as text and binary; everything else
// is rendered as structured JSON where possible.
func resultContent(v any) []transcript.ResultContent {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []transcript.ResultContent{transcript.TextContent{Text: val}}
	case []byte:
		return []transcript.ResultContent{transcript.BinaryContent{Data: val}}
	case []transcript.ResultContent:
		return val
	case map[string]any:
		return []transcript.ResultContent{transcript.JSONContent{Value: val}}
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return []transcript.ResultContent{transcript.TextContent{Text: fmt.Sprintf("%v", val)}}
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err == nil {
			return []transcript.ResultContent{transcript.JSONContent{Value: m}}
		}
		return []transcript.ResultContent{transcript.TextContent{Text: string(b)}}
	}
}

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("tool panicked: %v", p.val) }
