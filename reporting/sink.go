package reporting

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-harness/runner"
	"github.com/ethereum-optimism/infra/op-harness/testfile"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

// StripColors removes ANSI escape sequences from rendered text.
func StripColors(s string) string {
	return stripansi.Strip(s)
}

// ReportSink receives the final report of a run.
type ReportSink interface {
	Complete(report *runner.Report) error
}

// ConsoleSink renders the report to a writer, with colors only when the
// writer is a terminal.
type ConsoleSink struct {
	out    io.Writer
	colors bool
	opts   Options
}

// NewConsoleSink creates a sink rendering to out.
func NewConsoleSink(out io.Writer, colors bool, opts Options) *ConsoleSink {
	return &ConsoleSink{out: out, colors: colors, opts: opts}
}

func (s *ConsoleSink) Complete(report *runner.Report) error {
	if s.colors {
		return Render(s.out, report, s.opts)
	}
	var buf bytes.Buffer
	if err := Render(&buf, report, s.opts); err != nil {
		return err
	}
	_, err := io.WriteString(s.out, StripColors(buf.String()))
	return err
}

// TextFileSink writes the report, without colors, to a file.
type TextFileSink struct {
	path string
	opts Options
}

// NewTextFileSink creates a sink writing the report to path.
func NewTextFileSink(path string, opts Options) *TextFileSink {
	return &TextFileSink{path: path, opts: opts}
}

func (s *TextFileSink) Complete(report *runner.Report) error {
	var buf bytes.Buffer
	if err := Render(&buf, report, s.opts); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(s.path, []byte(StripColors(buf.String())), 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// ReplaySink dumps the finished runs of a report as a test document that
// can be fed back to a catalog run.
type ReplaySink struct {
	path string
	log  log.Logger
}

// NewReplaySink creates a sink writing the replay document to path.
func NewReplaySink(path string, logger log.Logger) *ReplaySink {
	return &ReplaySink{path: path, log: logger}
}

// Complete writes the document. Cases the document format cannot represent,
// such as output lines starting with a marker character, are logged and left
// out.
func (s *ReplaySink) Complete(report *runner.Report) error {
	var cases []types.TestCase
	for _, tc := range ReplayCases(report) {
		if _, err := testfile.Serialize([]types.TestCase{tc}); err != nil {
			s.log.Warn("Leaving run out of replay file", "name", tc.Name, "err", err)
			continue
		}
		cases = append(cases, tc)
	}

	if err := testfile.WriteFile(s.path, cases); err != nil {
		return fmt.Errorf("failed to write replay file: %w", err)
	}
	s.log.Info("Wrote replay file", "path", s.path, "cases", len(cases))
	return nil
}

// ReplayCases turns every finished task into a test case: its input as the
// case input and, for runs that completed, its stdout as the expected output.
// Timed out runs produced no output and keep only their input.
func ReplayCases(report *runner.Report) []types.TestCase {
	finished := report.All()
	cases := make([]types.TestCase, 0, len(finished))
	for _, ft := range finished {
		tc := types.TestCase{Name: ft.Task.Name}.WithInput(ft.Task.Command.Input)
		if ft.Outcome.Kind == types.OutcomeCompleted {
			tc = tc.WithOutput(ft.Outcome.Stdout)
		}
		cases = append(cases, tc)
	}
	return cases
}
