package types

// ResultStatus is the report bucket a finished task was filed under.
type ResultStatus string

const (
	ResultPassed      ResultStatus = "passed"
	ResultWrongOutput ResultStatus = "wrong_output"
	ResultFailedExit  ResultStatus = "failed_exit"
	ResultTimedOut    ResultStatus = "timed_out"
)

// ResultStatuses lists every bucket in report order.
var ResultStatuses = []ResultStatus{ResultPassed, ResultWrongOutput, ResultFailedExit, ResultTimedOut}

// IsFailure reports whether the bucket counts against the run.
func (s ResultStatus) IsFailure() bool {
	return s != ResultPassed
}

// Mode is the kind of run being executed.
type Mode string

const (
	ModeTest Mode = "test"
	ModeFuzz Mode = "fuzz"
)
