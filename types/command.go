package types

import (
	"fmt"
	"strings"
	"time"
)

// TaskID correlates a dispatched Command with its Outcome. IDs are assigned by
// the task source that produced the command.
type TaskID uint64

func (id TaskID) String() string {
	return fmt.Sprintf("#%d", uint64(id))
}

// Command is one fully specified invocation of the candidate program.
type Command struct {
	Program string
	Args    []string
	Input   []byte        // Written to stdin, which is then closed. Nil closes stdin immediately.
	Timeout time.Duration // Per-run wall clock limit, 0 for none
}

// ShellCommand builds a Command that runs script through shell with "-c".
func ShellCommand(shell, script string, input []byte, timeout time.Duration) Command {
	return Command{
		Program: shell,
		Args:    []string{"-c", script},
		Input:   input,
		Timeout: timeout,
	}
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Program
	}
	return c.Program + " " + strings.Join(c.Args, " ")
}

// Task is a Command tagged with the identity the task source gave it.
type Task struct {
	ID      TaskID
	Name    string
	Command Command

	// Expected is the stdout the task should produce. It is only meaningful
	// when HasExpected is set.
	Expected    []byte
	HasExpected bool
}

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeTimedOut  OutcomeKind = "timed_out"
)

// NoExitCode is reported when the process did not exit normally, either
// because it was terminated by a signal or because it never started.
const NoExitCode = -1

// Outcome is the terminal result of executing one Command. Timed out outcomes
// carry no output.
type Outcome struct {
	TaskID   TaskID
	Kind     OutcomeKind
	ExitCode int
	Duration time.Duration
	Stdout   []byte
	Stderr   []byte

	// Err is set when the command could not be run at all (spawn or stdin
	// failure). Such outcomes are Completed with NoExitCode.
	Err error
}

// TimedOut returns the outcome of a run killed by its per-run timeout.
func TimedOut(id TaskID, duration time.Duration) Outcome {
	return Outcome{
		TaskID:   id,
		Kind:     OutcomeTimedOut,
		ExitCode: NoExitCode,
		Duration: duration,
	}
}

// IsTimedOut reports whether the run was killed by its per-run timeout.
func (o Outcome) IsTimedOut() bool {
	return o.Kind == OutcomeTimedOut
}

// Succeeded reports whether the process ran to completion with exit code 0.
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeCompleted && o.Err == nil && o.ExitCode == 0
}

// ExitCodeString renders the exit code, or "unknown" when there is none.
func (o Outcome) ExitCodeString() string {
	if o.ExitCode == NoExitCode {
		return "unknown"
	}
	return fmt.Sprintf("%d", o.ExitCode)
}
