package runner

import (
	"bytes"
	"errors"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-harness/metrics"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

// ErrRunBudgetExceeded is the cancellation cause set when the run outlives
// its configured budget.
var ErrRunBudgetExceeded = errors.New("run budget exceeded")

// StopCause records why a run stopped dispatching.
type StopCause string

const (
	StopExhausted   StopCause = "exhausted"
	StopInterrupted StopCause = "interrupted"
	StopRunBudget   StopCause = "run_budget"
)

// FinishedTask is a task together with its outcome and the bucket it was
// filed under.
type FinishedTask struct {
	Task    types.Task
	Outcome types.Outcome
	Status  types.ResultStatus
}

// Report is the result of a run. Every dispatched task appears in exactly one
// bucket. Tasks of a catalog that were never dispatched are listed in
// Unfinished.
type Report struct {
	RunID    string
	Mode     types.Mode
	Threads  int
	Cause    StopCause
	Duration time.Duration

	// Total is the catalog size, 0 for sources without an end.
	Total int

	Passed      []FinishedTask
	WrongOutput []FinishedTask
	FailedExit  []FinishedTask
	TimedOut    []FinishedTask
	Unfinished  []types.TestCase
}

// Finished returns the number of tasks that reached a bucket.
func (r *Report) Finished() int {
	return len(r.Passed) + len(r.WrongOutput) + len(r.FailedExit) + len(r.TimedOut)
}

// Failed returns the number of tasks that ran to completion and failed.
func (r *Report) Failed() int {
	return len(r.WrongOutput) + len(r.FailedExit)
}

// HasFailures reports whether any finished task failed or timed out.
func (r *Report) HasFailures() bool {
	return r.Failed()+len(r.TimedOut) > 0
}

// Counts returns the size of every bucket.
func (r *Report) Counts() map[types.ResultStatus]int {
	return map[types.ResultStatus]int{
		types.ResultPassed:      len(r.Passed),
		types.ResultWrongOutput: len(r.WrongOutput),
		types.ResultFailedExit:  len(r.FailedExit),
		types.ResultTimedOut:    len(r.TimedOut),
	}
}

// Failures returns the failed and timed out tasks ordered by task ID.
func (r *Report) Failures() []FinishedTask {
	var failures []FinishedTask
	failures = append(failures, r.WrongOutput...)
	failures = append(failures, r.FailedExit...)
	failures = append(failures, r.TimedOut...)
	sortByID(failures)
	return failures
}

// All returns every finished task ordered by task ID.
func (r *Report) All() []FinishedTask {
	all := append(slices.Clone(r.Passed), r.Failures()...)
	sortByID(all)
	return all
}

func sortByID(tasks []FinishedTask) {
	slices.SortFunc(tasks, func(a, b FinishedTask) int {
		switch {
		case a.Task.ID < b.Task.ID:
			return -1
		case a.Task.ID > b.Task.ID:
			return 1
		}
		return 0
	})
}

// Classify decides the bucket of a task's outcome.
func Classify(task types.Task, outcome types.Outcome) types.ResultStatus {
	switch {
	case outcome.IsTimedOut():
		return types.ResultTimedOut
	case !outcome.Succeeded():
		return types.ResultFailedExit
	case task.HasExpected && !OutputMatches(task.Expected, outcome.Stdout):
		return types.ResultWrongOutput
	default:
		return types.ResultPassed
	}
}

// OutputMatches compares output byte for byte, ignoring one trailing newline
// on either side.
func OutputMatches(expected, actual []byte) bool {
	return bytes.Equal(trimNewline(expected), trimNewline(actual))
}

func trimNewline(b []byte) []byte {
	return bytes.TrimSuffix(b, []byte("\n"))
}

// ProgressSnapshot holds the running totals shown by the progress line.
type ProgressSnapshot struct {
	Mode     types.Mode
	Threads  int
	Total    int
	Finished int
	Passed   int
	Failed   int
	TimedOut int
	Elapsed  time.Duration
}

// aggregator is the single writer of a Report.
type aggregator struct {
	report *Report
	seen   map[types.TaskID]struct{}
	log    log.Logger
}

func newAggregator(report *Report, logger log.Logger) *aggregator {
	return &aggregator{
		report: report,
		seen:   make(map[types.TaskID]struct{}),
		log:    logger,
	}
}

func (a *aggregator) add(res TaskResult) {
	if _, dup := a.seen[res.Task.ID]; dup {
		a.log.Error("Duplicate outcome for task, ignoring", "task", res.Task.ID)
		return
	}
	a.seen[res.Task.ID] = struct{}{}

	finished := FinishedTask{
		Task:    res.Task,
		Outcome: res.Outcome,
		Status:  Classify(res.Task, res.Outcome),
	}
	switch finished.Status {
	case types.ResultPassed:
		a.report.Passed = append(a.report.Passed, finished)
	case types.ResultWrongOutput:
		a.report.WrongOutput = append(a.report.WrongOutput, finished)
	case types.ResultFailedExit:
		a.report.FailedExit = append(a.report.FailedExit, finished)
	case types.ResultTimedOut:
		a.report.TimedOut = append(a.report.TimedOut, finished)
	}

	metrics.RecordOutcome(a.report.Mode, a.report.RunID, finished.Status, res.Outcome.Duration)
	a.log.Trace("Task finished", "task", res.Task.ID, "name", res.Task.Name, "status", finished.Status,
		"exitCode", res.Outcome.ExitCodeString(), "duration", res.Outcome.Duration)
}

func (a *aggregator) snapshot(elapsed time.Duration) ProgressSnapshot {
	r := a.report
	return ProgressSnapshot{
		Mode:     r.Mode,
		Threads:  r.Threads,
		Total:    r.Total,
		Finished: r.Finished(),
		Passed:   len(r.Passed),
		Failed:   r.Failed(),
		TimedOut: len(r.TimedOut),
		Elapsed:  elapsed,
	}
}

// finish records the unfinished catalog cases and the stop cause.
func (a *aggregator) finish(cause StopCause, duration time.Duration, catalog Catalog) *Report {
	a.report.Cause = cause
	a.report.Duration = duration
	if catalog != nil {
		for i, tc := range catalog.Cases() {
			if _, ok := a.seen[types.TaskID(i)]; !ok {
				a.report.Unfinished = append(a.report.Unfinished, tc)
			}
		}
	}
	return a.report
}
