package runner

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

func TestClassify(t *testing.T) {
	expecting := func(out string) types.Task {
		return types.Task{ID: 1, Expected: []byte(out), HasExpected: true}
	}
	completed := func(code int, stdout string) types.Outcome {
		return types.Outcome{TaskID: 1, Kind: types.OutcomeCompleted, ExitCode: code, Stdout: []byte(stdout)}
	}

	tests := []struct {
		name    string
		task    types.Task
		outcome types.Outcome
		want    types.ResultStatus
	}{
		{
			name:    "matching output",
			task:    expecting("25\n"),
			outcome: completed(0, "25\n"),
			want:    types.ResultPassed,
		},
		{
			name:    "trailing newline ignored",
			task:    expecting("25"),
			outcome: completed(0, "25\n"),
			want:    types.ResultPassed,
		},
		{
			name:    "only one trailing newline ignored",
			task:    expecting("25\n"),
			outcome: completed(0, "25\n\n"),
			want:    types.ResultWrongOutput,
		},
		{
			name:    "wrong output",
			task:    expecting("25\n"),
			outcome: completed(0, "24\n"),
			want:    types.ResultWrongOutput,
		},
		{
			name:    "empty expected output is still compared",
			task:    expecting(""),
			outcome: completed(0, "x"),
			want:    types.ResultWrongOutput,
		},
		{
			name:    "nothing to compare",
			task:    types.Task{ID: 1},
			outcome: completed(0, "anything"),
			want:    types.ResultPassed,
		},
		{
			name:    "non-zero exit beats matching output",
			task:    expecting("25\n"),
			outcome: completed(1, "25\n"),
			want:    types.ResultFailedExit,
		},
		{
			name:    "abnormal exit",
			task:    types.Task{ID: 1},
			outcome: completed(types.NoExitCode, ""),
			want:    types.ResultFailedExit,
		},
		{
			name:    "spawn failure",
			task:    types.Task{ID: 1},
			outcome: types.Outcome{TaskID: 1, Kind: types.OutcomeCompleted, ExitCode: types.NoExitCode, Err: errors.New("boom")},
			want:    types.ResultFailedExit,
		},
		{
			name:    "timed out",
			task:    expecting("25\n"),
			outcome: types.TimedOut(1, time.Second),
			want:    types.ResultTimedOut,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.task, tt.outcome))
		})
	}
}

func TestAggregator(t *testing.T) {
	report := &Report{RunID: "agg", Mode: types.ModeTest, Threads: 2, Total: 5}
	agg := newAggregator(report, log.NewLogger(log.DiscardHandler()))

	add := func(id types.TaskID, outcome types.Outcome) {
		outcome.TaskID = id
		agg.add(TaskResult{
			Task:    types.Task{ID: id, Name: id.String(), Expected: []byte("ok\n"), HasExpected: true},
			Outcome: outcome,
		})
	}
	add(3, types.Outcome{Kind: types.OutcomeCompleted, Stdout: []byte("ok\n")})
	add(0, types.Outcome{Kind: types.OutcomeCompleted, Stdout: []byte("no\n")})
	add(2, types.TimedOut(2, time.Second))
	add(2, types.Outcome{Kind: types.OutcomeCompleted, Stdout: []byte("ok\n")})

	snap := agg.snapshot(time.Second)
	assert.Equal(t, ProgressSnapshot{
		Mode: types.ModeTest, Threads: 2, Total: 5,
		Finished: 3, Passed: 1, Failed: 1, TimedOut: 1, Elapsed: time.Second,
	}, snap)

	final := agg.finish(StopInterrupted, 2*time.Second, NewCatalogSource(testCases(5), CommandSpec{}, testRNG(1)))
	assert.Equal(t, StopInterrupted, final.Cause)
	assert.Equal(t, 3, final.Finished())
	assert.True(t, final.HasFailures())
	require.Len(t, final.Unfinished, 2)
	assert.Equal(t, "case-1", final.Unfinished[0].Name)
	assert.Equal(t, "case-4", final.Unfinished[1].Name)

	var ids []types.TaskID
	for _, ft := range final.All() {
		ids = append(ids, ft.Task.ID)
	}
	assert.Equal(t, []types.TaskID{0, 2, 3}, ids)

	failures := final.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, types.ResultWrongOutput, failures[0].Status)
	assert.Equal(t, types.ResultTimedOut, failures[1].Status)

	assert.Equal(t, map[types.ResultStatus]int{
		types.ResultPassed:      1,
		types.ResultWrongOutput: 1,
		types.ResultFailedExit:  0,
		types.ResultTimedOut:    1,
	}, final.Counts())
}
