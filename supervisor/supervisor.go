package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/toolloop/toolloop/gateway"
	"github.com/toolloop/toolloop/logging"
	"github.com/toolloop/toolloop/orchestrator"
	"github.com/toolloop/toolloop/retry"
	"github.com/toolloop/toolloop/store"
	"github.com/toolloop/toolloop/tool"
	"github.com/toolloop/toolloop/transcript"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// GatewayRetry bounds retries of transient model gateway failures.
	GatewayRetry retry.Policy
	// ToolRetry bounds retries of transient tool failures.
	ToolRetry retry.Policy
	// MaxIterations caps loop cycles per run; exceeding it fails the run
	// with reason iteration-limit-exceeded. 0 means unbounded.
	MaxIterations int
	// Timeout is the wall-clock budget per run; expiry fails the run with
	// reason timeout. 0 disables the budget.
	Timeout time.Duration
	// Store archives terminal runs.
	Store store.RunStore
	// Logger receives structured progress events.
	Logger logging.Logger
}

// Report is the terminal outcome of a run delivered to the caller. A report
// is emitted exactly once per run; no fatal condition is ever swallowed.
type Report struct {
	RunID      string
	Status     orchestrator.Status
	Reason     orchestrator.FailReason
	Transcript *transcript.Transcript
	Iterations int
	Usage      gateway.Usage
	Err        error
}

// Supervisor owns one orchestrator execution per external request: it
// applies the retry, iteration-limit and timeout policies, tracks active
// runs for cancellation, archives terminal runs and reports the outcome to
// the caller. Public methods are safe for concurrent use.
type Supervisor struct {
	gw       gateway.Gateway
	registry *tool.Registry

	gatewayRetry  retry.Policy
	toolRetry     retry.Policy
	maxIterations int
	timeout       time.Duration

	runStore store.RunStore
	logger   logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Supervisor with optional overrides. All configuration is
// explicit; there is no process-wide shared state.
func New(gw gateway.Gateway, registry *tool.Registry, optFns ...func(o *Options)) *Supervisor {
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

	return &Supervisor{
		gw:            gw,
		registry:      registry,
		gatewayRetry:  opts.GatewayRetry,
		toolRetry:     opts.ToolRetry,
		maxIterations: opts.MaxIterations,
		timeout:       opts.Timeout,
		runStore:      opts.Store,
		logger:        opts.Logger,
		activeRuns:    make(map[string]context.CancelFunc),
	}
}

// Start begins an asynchronous run seeded with the initial user message and
// returns its id plus a channel delivering the terminal report. The channel
// is buffered and closed after the single report, so callers may consume it
// whenever convenient.
func (s *Supervisor) Start(ctx context.Context, initial transcript.Message) (string, <-chan Report, error) {
	orch, err := orchestrator.New(s.gw, s.registry, initial, func(o *orchestrator.Options) {
		o.GatewayRetry = s.gatewayRetry
		o.ToolRetry = s.toolRetry
		o.MaxIterations = s.maxIterations
		o.Logger = s.logger
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	runID := orch.RunRecord().ID

	var runCtx context.Context
	var cancel context.CancelFunc
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	s.mu.Lock()
	s.activeRuns[runID] = cancel
	s.mu.Unlock()

	s.logger.Info("supervisor.run.start", "run", runID, "timeout", s.timeout.String(), "max_iterations", s.maxIterations)

	reports := make(chan Report, 1)

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.activeRuns, runID)
			s.mu.Unlock()
		}()

		run := orch.Execute(runCtx)

		if err := s.runStore.Save(run); err != nil {
			s.logger.Warn("supervisor.run.archive.error", "run", runID, "error", err.Error())
		}

		reports <- reportFor(run)
		close(reports)
	}()

	return runID, reports, nil
}

// Run is a synchronous helper: it starts a run and blocks until the terminal
// report arrives, returning the archived run record.
func (s *Supervisor) Run(ctx context.Context, initial transcript.Message) (*orchestrator.Run, error) {
	runID, reports, err := s.Start(ctx, initial)
	if err != nil {
		return nil, err
	}

	<-reports

	return s.Lookup(runID)
}

// Cancel requests cancellation of an active run. The run stops at the next
// iteration boundary; an in-flight external call is allowed to complete or
// time out on its own. Cancelling an unknown or already terminal run is an
// error.
func (s *Supervisor) Cancel(runID string) error {
	s.mu.Lock()
	cancel, exists := s.activeRuns[runID]
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()
	s.logger.Info("supervisor.run.cancel", "run", runID)

	return nil
}

// Lookup fetches an archived terminal run from the store.
func (s *Supervisor) Lookup(runID string) (*orchestrator.Run, error) {
	return s.runStore.Get(runID)
}

// ActiveRuns returns the number of runs currently executing.
func (s *Supervisor) ActiveRuns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.activeRuns)
}

func reportFor(run *orchestrator.Run) Report {
	return Report{
		RunID:      run.ID,
		Status:     run.Status,
		Reason:     run.Reason,
		Transcript: run.Transcript,
		Iterations: run.Iterations,
		Usage:      run.Usage,
		Err:        run.LastErr,
	}
}
