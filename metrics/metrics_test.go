package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("spawn failed"),
		},
		{
			name: "error with special chars",
			err:  errors.New("exec: \"nope\": not found"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("broken   pipe"),
		},
	}

	validLabelRegex := regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Regexp(t, validLabelRegex, errToLabel(tt.err))
		})
	}
}

func TestRecordError(t *testing.T) {
	before := testutil.ToFloat64(errorsTotal.WithLabelValues("test_error"))
	RecordError("test_error")
	assert.Equal(t, before+1, testutil.ToFloat64(errorsTotal.WithLabelValues("test_error")))

	label := "report." + errToLabel(errors.New("disk full"))
	before = testutil.ToFloat64(errorsTotal.WithLabelValues(label))
	RecordErrorDetails("report", errors.New("disk full"))
	RecordErrorDetails("report", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(errorsTotal.WithLabelValues(label)))
	assert.Equal(t, "report.disk_full", label)
}

func TestRecordOutcome(t *testing.T) {
	runID := "test-record-outcome"

	RecordDispatch(types.ModeTest, runID)
	RecordDispatch(types.ModeTest, runID)
	assert.Equal(t, 2.0, testutil.ToFloat64(tasksDispatchedTotal.WithLabelValues("test", runID)))

	RecordOutcome(types.ModeTest, runID, types.ResultPassed, 10*time.Millisecond)
	RecordOutcome(types.ModeTest, runID, types.ResultTimedOut, time.Second)
	RecordOutcome(types.ModeTest, runID, types.ResultStatus("bogus"), time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(outcomesTotal.WithLabelValues("test", runID, "passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(outcomesTotal.WithLabelValues("test", runID, "timed_out")))
}

func TestRecordRun(t *testing.T) {
	runID := "test-record-run"
	RecordRun(types.ModeFuzz, runID, "interrupted", map[types.ResultStatus]int{
		types.ResultPassed:     7,
		types.ResultFailedExit: 2,
	}, 3*time.Second)

	assert.Equal(t, 7.0, testutil.ToFloat64(runResults.WithLabelValues("fuzz", runID, "passed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(runResults.WithLabelValues("fuzz", runID, "wrong_output")))
	assert.Equal(t, 3.0, testutil.ToFloat64(runDuration.WithLabelValues("fuzz", runID, "interrupted")))
}

func TestCollectorsRegister(t *testing.T) {
	registry := prometheus.NewRegistry()
	require.NotPanics(t, func() { registry.MustRegister(Collectors()...) })
}
