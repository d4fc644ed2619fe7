// Package exitcodes defines the process exit codes of op-harness.
package exitcodes

// A run exits with Success when every finished task passed, with TestFailure
// when any task failed or timed out, and with RuntimeErr when the harness
// itself could not do its job.
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
