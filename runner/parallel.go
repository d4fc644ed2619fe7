package runner

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/time/rate"

	"github.com/ethereum-optimism/infra/op-harness/metrics"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

// TaskResult pairs a dispatched task with its outcome.
type TaskResult struct {
	Task    types.Task
	Outcome types.Outcome
}

// workerPool connects a dispatcher, a fixed set of workers and a drain
// monitor. The work queue is unbuffered: a task counts as dispatched once a
// worker has received it, and a worker always runs what it received.
type workerPool struct {
	executor ProcessExecutor
	threads  int
	limiter  *rate.Limiter
	mode     types.Mode
	runID    string
	log      log.Logger
}

// start launches the pool. Dispatch stops when the source runs out or ctx is
// cancelled. The returned channel is closed once every worker has exited.
func (p *workerPool) start(ctx context.Context, source TaskSource) <-chan TaskResult {
	workChan := make(chan types.Task)
	resultChan := make(chan TaskResult, p.threads*resultBufferPerWorker)

	// In-flight children are not bound to the run's cancellation.
	execCtx := context.WithoutCancel(ctx)

	var wg conc.WaitGroup
	for i := 0; i < p.threads; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		wg.Go(func() {
			p.worker(execCtx, workerID, workChan, resultChan)
		})
	}

	go p.dispatch(ctx, source, workChan)

	// Drain monitor
	go func() {
		defer close(resultChan)
		if r := wg.WaitAndRecover(); r != nil {
			p.log.Error("Worker exited abnormally", "panic", r.Value, "stack", string(r.Stack))
		}
		p.log.Debug("All workers drained")
	}()

	return resultChan
}

// dispatch feeds tasks from source to the workers until the source is
// exhausted or ctx is cancelled, then closes workChan.
func (p *workerPool) dispatch(ctx context.Context, source TaskSource, workChan chan<- types.Task) {
	defer close(workChan)

	dispatched := 0
	for ctx.Err() == nil {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				p.log.Debug("Rate limiter wait aborted", "err", err)
				break
			}
		}

		task, ok := source.Next()
		if !ok {
			p.log.Debug("Task source exhausted", "dispatched", dispatched)
			return
		}

		select {
		case workChan <- task:
			dispatched++
		case <-ctx.Done():
			p.log.Debug("Context cancelled while dispatching", "task", task.ID)
		}
	}
	p.log.Debug("Dispatch stopped", "dispatched", dispatched, "cause", context.Cause(ctx))
}

// worker runs tasks until the work queue is closed. Every received task
// yields exactly one result, even if the executor panics.
func (p *workerPool) worker(ctx context.Context, workerID string, workChan <-chan types.Task, resultChan chan<- TaskResult) {
	p.log.Debug("Worker starting", "workerID", workerID)
	defer p.log.Debug("Worker exiting", "workerID", workerID)

	for task := range workChan {
		metrics.RecordDispatch(p.mode, p.runID)
		p.log.Trace("Worker processing task", "workerID", workerID, "task", task.ID, "name", task.Name)

		var outcome types.Outcome
		if r := panics.Try(func() { outcome = p.executor.Execute(ctx, task) }); r != nil {
			p.log.Error("Executor panicked", "workerID", workerID, "task", task.ID, "panic", r.Value)
			metrics.RecordError("executor_panic")
			outcome = types.Outcome{
				TaskID:   task.ID,
				Kind:     types.OutcomeCompleted,
				ExitCode: types.NoExitCode,
				Err:      r.AsError(),
			}
		}

		resultChan <- TaskResult{Task: task, Outcome: outcome}
	}
}
