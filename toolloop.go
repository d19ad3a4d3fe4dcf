// Package toolloop provides a high-level façade over the supervisor, tool
// registry and model gateway abstractions enabling rapid construction of
// tool-using conversation loops. Most applications interact with this
// package by:
//  1. Creating a Loop via New() with a gateway and a set of tools
//  2. Starting conversations asynchronously (Start) or synchronously (Ask)
//  3. Inspecting the terminal run (status, transcript, failure reason)
//
// The façade delegates orchestration to supervisor.Supervisor while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a durable
// run store and a structured logger.
package toolloop

import (
	"context"
	"time"

	"github.com/toolloop/toolloop/gateway"
	"github.com/toolloop/toolloop/logging"
	"github.com/toolloop/toolloop/orchestrator"
	"github.com/toolloop/toolloop/retry"
	"github.com/toolloop/toolloop/store"
	"github.com/toolloop/toolloop/supervisor"
	"github.com/toolloop/toolloop/tool"
	"github.com/toolloop/toolloop/transcript"
)

// Options configures the Loop instance.
type Options struct {
	// GatewayRetry bounds retries of transient model gateway failures.
	GatewayRetry retry.Policy

	// ToolRetry bounds retries of transient tool failures.
	ToolRetry retry.Policy

	// MaxIterations caps tool-use loop cycles per conversation. Exceeding
	// the cap fails the run rather than looping indefinitely.
	MaxIterations int

	// Timeout is the wall-clock budget per conversation.
	Timeout time.Duration

	// Store archives terminal runs (defaults to in-memory).
	Store store.RunStore

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Loop is the high-level façade aggregating the supervisor and registry.
type Loop struct {
	registry *tool.Registry
	sup      *supervisor.Supervisor
}

// New creates a new Loop instance with optional overrides. Any unset service
// is initialized with an in-memory implementation.
func New(gw gateway.Gateway, tools []tool.Tool, optFns ...func(o *Options)) (*Loop, error) {
	opts := Options{
		GatewayRetry:  retry.DefaultPolicy(),
		ToolRetry:     retry.DefaultPolicy(),
		MaxIterations: 10,
		Timeout:       2 * time.Minute,
		Store:         store.NewInMemoryStore(),
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	registry, err := tool.NewRegistry(tools...)
	if err != nil {
		return nil, err
	}

	sup := supervisor.New(gw, registry, func(o *supervisor.Options) {
		o.GatewayRetry = opts.GatewayRetry
		o.ToolRetry = opts.ToolRetry
		o.MaxIterations = opts.MaxIterations
		o.Timeout = opts.Timeout
		o.Store = opts.Store
		o.Logger = opts.Logger
	})

	return &Loop{registry: registry, sup: sup}, nil
}

// Supervisor exposes the underlying supervisor for callers needing
// cancellation or archived-run lookup.
func (l *Loop) Supervisor() *supervisor.Supervisor { return l.sup }

// Tools returns the names of the registered tools.
func (l *Loop) Tools() []string { return l.registry.Names() }

// Start begins an asynchronous conversation from a plain text prompt and
// returns the run id plus the terminal report channel.
func (l *Loop) Start(ctx context.Context, text string) (string, <-chan supervisor.Report, error) {
	return l.sup.Start(ctx, transcript.NewUserMessage(transcript.TextBlock{Text: text}))
}

// StartMessage begins an asynchronous conversation from an arbitrary initial
// user message.
func (l *Loop) StartMessage(ctx context.Context, initial transcript.Message) (string, <-chan supervisor.Report, error) {
	return l.sup.Start(ctx, initial)
}

// Ask runs a conversation to completion and returns the terminal run.
func (l *Loop) Ask(ctx context.Context, text string) (*orchestrator.Run, error) {
	return l.sup.Run(ctx, transcript.NewUserMessage(transcript.TextBlock{Text: text}))
}

// Cancel requests cancellation of an active conversation.
func (l *Loop) Cancel(runID string) error { return l.sup.Cancel(runID) }
