package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-harness/metrics"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

var _ ProcessExecutor = (*processExecutor)(nil)

// ProcessExecutor runs a single task's command to its outcome. Execute never
// fails: problems starting the child are reported through Outcome.Err.
//
// The context carries tracing only. A child is bounded by its own timeout
// and is never cut short by cancellation of the run.
type ProcessExecutor interface {
	Execute(ctx context.Context, task types.Task) types.Outcome
}

// processExecutor implements ProcessExecutor with os/exec
type processExecutor struct {
	log    log.Logger
	tracer trace.Tracer
}

// NewProcessExecutor creates a new process executor
func NewProcessExecutor(logger log.Logger) ProcessExecutor {
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	return &processExecutor{
		log:    logger.New("component", "executor"),
		tracer: otel.Tracer("process executor"),
	}
}

func (e *processExecutor) Execute(ctx context.Context, task types.Task) types.Outcome {
	_, span := e.tracer.Start(ctx, fmt.Sprintf("task %s", task.ID))
	defer span.End()
	span.SetAttributes(
		attribute.String("task.name", task.Name),
		attribute.Int("task.input_bytes", len(task.Command.Input)),
	)

	outcome := e.run(task)

	span.SetAttributes(
		attribute.String("task.outcome", string(outcome.Kind)),
		attribute.Int("task.exit_code", outcome.ExitCode),
	)
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, outcome.Err.Error())
	}
	return outcome
}

func (e *processExecutor) run(task types.Task) types.Outcome {
	command := task.Command
	cmd := exec.Command(command.Program, command.Args...)
	if command.Input != nil {
		// exec closes the pipe once the reader is drained, signalling end of input.
		cmd.Stdin = bytes.NewReader(command.Input)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = killWaitDelay
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		e.log.Warn("Failed to start process", "task", task.ID, "command", command.Program, "err", err)
		metrics.RecordErrorDetails("spawn", err)
		return types.Outcome{
			TaskID:   task.ID,
			Kind:     types.OutcomeCompleted,
			ExitCode: types.NoExitCode,
			Duration: time.Since(start),
			Err:      fmt.Errorf("failed to start process: %w", err),
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var deadline <-chan time.Time
	if command.Timeout > 0 {
		timer := time.NewTimer(command.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case waitErr := <-done:
		return completedOutcome(task.ID, cmd, waitErr, time.Since(start), stdout.Bytes(), stderr.Bytes())
	case <-deadline:
		if err := killProcessGroup(cmd); err != nil {
			e.log.Debug("Failed to kill timed out process", "task", task.ID, "err", err)
		}
		<-done
		e.log.Debug("Process timed out", "task", task.ID, "timeout", command.Timeout)
		return types.TimedOut(task.ID, time.Since(start))
	}
}

func completedOutcome(id types.TaskID, cmd *exec.Cmd, waitErr error, duration time.Duration, stdout, stderr []byte) types.Outcome {
	outcome := types.Outcome{
		TaskID:   id,
		Kind:     types.OutcomeCompleted,
		ExitCode: types.NoExitCode,
		Duration: duration,
		Stdout:   stdout,
		Stderr:   stderr,
	}
	if cmd.ProcessState != nil {
		// ExitCode is -1 when the child was terminated by a signal.
		outcome.ExitCode = cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
	case errors.Is(waitErr, exec.ErrWaitDelay):
		// The child exited but a descendant held its output open.
	default:
		outcome.Err = fmt.Errorf("failed to run process: %w", waitErr)
	}
	return outcome
}
