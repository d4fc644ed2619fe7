package runner

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-harness/metrics"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process tests need a POSIX shell")
	}
}

func newTestExecutor() ProcessExecutor {
	return NewProcessExecutor(log.NewLogger(log.DiscardHandler()))
}

func shellTask(id types.TaskID, script string, input []byte, timeout time.Duration) types.Task {
	return types.Task{
		ID:      id,
		Name:    script,
		Command: types.ShellCommand(DefaultShell, script, input, timeout),
	}
}

func TestProcessExecutorCompleted(t *testing.T) {
	skipWithoutShell(t)

	tests := []struct {
		name     string
		script   string
		input    []byte
		timeout  time.Duration
		exitCode int
		stdout   string
		stderr   string
	}{
		{
			name:   "echo stdin",
			script: "cat",
			input:  []byte("hello\nworld\n"),
			stdout: "hello\nworld\n",
		},
		{
			name:   "no input reads eof",
			script: "cat; echo done",
			stdout: "done\n",
		},
		{
			name:   "empty input reads eof",
			script: "cat; echo done",
			input:  []byte{},
			stdout: "done\n",
		},
		{
			name:     "non-zero exit",
			script:   "echo oops >&2; exit 3",
			exitCode: 3,
			stderr:   "oops\n",
		},
		{
			name:    "finishes within timeout",
			script:  "read n; echo $((n*n))",
			input:   []byte("5\n"),
			timeout: 5 * time.Second,
			stdout:  "25\n",
		},
		{
			name:   "ignores input",
			script: "echo skipped",
			input:  make([]byte, 1<<20),
			stdout: "skipped\n",
		},
	}

	executor := newTestExecutor()
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := executor.Execute(context.Background(), shellTask(types.TaskID(i), tt.script, tt.input, tt.timeout))
			require.NoError(t, outcome.Err)
			assert.Equal(t, types.TaskID(i), outcome.TaskID)
			assert.Equal(t, types.OutcomeCompleted, outcome.Kind)
			assert.Equal(t, tt.exitCode, outcome.ExitCode)
			assert.Equal(t, tt.stdout, string(outcome.Stdout))
			assert.Equal(t, tt.stderr, string(outcome.Stderr))
			assert.Positive(t, outcome.Duration)
		})
	}
}

func TestProcessExecutorTimeout(t *testing.T) {
	skipWithoutShell(t)

	start := time.Now()
	outcome := newTestExecutor().Execute(context.Background(), shellTask(7, "echo partial; sleep 10; echo late", nil, 200*time.Millisecond))

	assert.True(t, outcome.IsTimedOut())
	assert.Equal(t, types.TaskID(7), outcome.TaskID)
	assert.Empty(t, outcome.Stdout, "timed out runs carry no output")
	assert.GreaterOrEqual(t, outcome.Duration, 200*time.Millisecond)
	assert.Less(t, time.Since(start), 3*time.Second, "the whole process group should be killed")
}

func TestProcessExecutorIgnoresCancellation(t *testing.T) {
	skipWithoutShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := newTestExecutor().Execute(ctx, shellTask(1, "sleep 0.1; echo finished", nil, 0))
	require.NoError(t, outcome.Err)
	assert.Equal(t, "finished\n", string(outcome.Stdout))
}

func TestProcessExecutorSignaled(t *testing.T) {
	skipWithoutShell(t)

	outcome := newTestExecutor().Execute(context.Background(), shellTask(1, "kill -9 $$", nil, 0))
	assert.Equal(t, types.OutcomeCompleted, outcome.Kind)
	assert.Equal(t, types.NoExitCode, outcome.ExitCode)
	assert.False(t, outcome.Succeeded())
}

// errorCount sums harness_errors_total over the error labels starting with prefix.
func errorCount(t *testing.T, prefix string) float64 {
	t.Helper()
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.Collectors()...)
	families, err := registry.Gather()
	require.NoError(t, err)

	var total float64
	for _, family := range families {
		if family.GetName() != metrics.MetricsNamespace+"_errors_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "error" && strings.HasPrefix(l.GetValue(), prefix) {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func TestProcessExecutorSpawnFailure(t *testing.T) {
	before := errorCount(t, "spawn.")
	task := types.Task{
		ID:      3,
		Command: types.ShellCommand("/nonexistent/shell", "true", []byte("x\n"), time.Second),
	}

	outcome := newTestExecutor().Execute(context.Background(), task)
	require.Error(t, outcome.Err)
	assert.Equal(t, types.OutcomeCompleted, outcome.Kind)
	assert.Equal(t, types.NoExitCode, outcome.ExitCode)
	assert.Equal(t, types.ResultFailedExit, Classify(task, outcome))
	assert.Equal(t, before+1, errorCount(t, "spawn."))
}
