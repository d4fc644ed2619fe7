package runner

import "time"

const (
	// DefaultShell runs the candidate command string as "<shell> -c <command>".
	DefaultShell = "sh"

	// DefaultProgressInterval is the repaint cadence of the progress line.
	DefaultProgressInterval = 100 * time.Millisecond

	// DefaultProgressLogInterval is the cadence of progress log lines when the
	// output is not a terminal.
	DefaultProgressLogInterval = 5 * time.Second

	// MaxReasonableConcurrency is the worker count above which a warning is logged.
	MaxReasonableConcurrency = 32

	// killWaitDelay bounds how long a killed or exited child may keep its
	// output pipes open through grandchildren.
	killWaitDelay = 2 * time.Second

	// resultBufferPerWorker sizes the result queue relative to the pool.
	resultBufferPerWorker = 2
)
