package harness

import (
	"errors"
	"fmt"
)

// RuntimeError is a failure of the harness itself: bad flags, an unreadable
// test source, a malformed template. It maps to exit code 2.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError wraps err as a RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError reports a run in which at least one task failed or timed
// out. It maps to exit code 1.
type TestFailureError struct {
	Failed   int
	TimedOut int
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %d failed, %d timed out", e.Failed, e.TimedOut)
}

// NewTestFailureError creates a new TestFailureError
func NewTestFailureError(failed, timedOut int) *TestFailureError {
	return &TestFailureError{Failed: failed, TimedOut: timedOut}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}
