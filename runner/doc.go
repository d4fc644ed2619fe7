// Package runner executes a candidate program against a stream of tasks.
//
// The main components are:
//   - TaskSource: produces the next task, either from a fixed catalog of test
//     cases (CatalogSource) or from an input template (GenerativeSource)
//   - ProcessExecutor: runs one command as a child process with an optional
//     per-run timeout
//   - workerPool: a dispatcher loop, a fixed set of workers and a drain monitor
//     connected by channels
//   - Coordinator: owns the cancellation token, enforces the run budget and
//     drives the progress line
//   - aggregator: the single writer of the Report, classifying every outcome
//
// Cancellation is cooperative. Once the token is set no new task is
// dispatched, but a task that reached a worker always runs to completion or to
// its own timeout, so every dispatched task ends up in exactly one bucket of
// the Report.
package runner
