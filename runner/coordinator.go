package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// Config holds the coordinator settings.
type Config struct {
	Log      log.Logger
	Source   TaskSource
	Executor ProcessExecutor
	Mode     types.Mode
	Threads  int

	// RunBudget stops dispatch once the run has lasted this long, 0 for no limit.
	RunBudget time.Duration
	// RateLimit caps dispatches per second, 0 for no limit.
	RateLimit float64

	Progress         ProgressIndicator
	ProgressInterval time.Duration

	// RunID identifies the run in logs and metrics. Generated when empty.
	RunID string
}

// Coordinator drives one run: it starts the worker pool, owns the
// cancellation token and is the only writer of the Report.
type Coordinator struct {
	config Config
	log    log.Logger
}

// NewCoordinator validates cfg and creates a coordinator.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Source == nil {
		return nil, errors.New("task source is required")
	}
	if cfg.Threads <= 0 {
		return nil, fmt.Errorf("thread count must be positive, got %d", cfg.Threads)
	}
	if cfg.RunBudget < 0 {
		return nil, fmt.Errorf("run budget cannot be negative, got %s", cfg.RunBudget)
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate limit cannot be negative, got %f", cfg.RateLimit)
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Executor == nil {
		cfg.Executor = NewProcessExecutor(cfg.Log)
	}
	if cfg.Progress == nil {
		cfg.Progress = NewNoOpProgressIndicator()
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}
	if cfg.Threads > MaxReasonableConcurrency {
		cfg.Log.Warn("Very high thread count requested", "threads", cfg.Threads,
			"recommendation", "Consider using lower values to avoid resource exhaustion")
	}

	return &Coordinator{
		config: cfg,
		log:    cfg.Log.New("component", "coordinator", "runID", cfg.RunID),
	}, nil
}

// RunID returns the identifier of the run.
func (c *Coordinator) RunID() string {
	return c.config.RunID
}

// Run executes the run until the source is exhausted, ctx is cancelled or the
// run budget elapses, and returns once every dispatched task has finished.
// Cancelling ctx stops dispatch but never kills a running child.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	cfg := c.config

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	report := &Report{
		RunID:   cfg.RunID,
		Mode:    cfg.Mode,
		Threads: cfg.Threads,
	}
	catalog, _ := cfg.Source.(Catalog)
	if catalog != nil {
		report.Total = len(catalog.Cases())
	}
	agg := newAggregator(report, c.log)

	pool := &workerPool{
		executor: cfg.Executor,
		threads:  cfg.Threads,
		mode:     cfg.Mode,
		runID:    cfg.RunID,
		log:      c.log,
	}
	if cfg.RateLimit > 0 {
		pool.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	c.log.Info("Starting run", "mode", cfg.Mode, "threads", cfg.Threads, "total", report.Total,
		"runBudget", cfg.RunBudget, "rateLimit", cfg.RateLimit)
	results := pool.start(runCtx, cfg.Source)

	ticker := time.NewTicker(cfg.ProgressInterval)
	defer ticker.Stop()

	var budget <-chan time.Time
	if cfg.RunBudget > 0 {
		timer := time.NewTimer(cfg.RunBudget)
		defer timer.Stop()
		budget = timer.C
	}

	cancelled := runCtx.Done()
loop:
	for {
		select {
		case res, ok := <-results:
			if !ok {
				break loop
			}
			agg.add(res)
		case <-ticker.C:
			cfg.Progress.Update(agg.snapshot(time.Since(start)))
		case <-budget:
			c.log.Info("Run budget exceeded, waiting for running tasks", "runBudget", cfg.RunBudget)
			cancel(ErrRunBudgetExceeded)
			budget = nil
		case <-cancelled:
			c.log.Info("Run cancelled, waiting for running tasks", "cause", context.Cause(runCtx))
			cancelled = nil
		}
	}

	cause := StopExhausted
	if runCtx.Err() != nil {
		cause = StopInterrupted
		if errors.Is(context.Cause(runCtx), ErrRunBudgetExceeded) {
			cause = StopRunBudget
		}
	}

	duration := time.Since(start)
	cfg.Progress.Finish(agg.snapshot(duration))
	report = agg.finish(cause, duration, catalog)

	c.log.Info("Run completed", "cause", cause, "finished", report.Finished(), "passed", len(report.Passed),
		"failed", report.Failed(), "timedOut", len(report.TimedOut), "unfinished", len(report.Unfinished),
		"duration", duration)
	return report, nil
}
