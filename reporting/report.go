package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-harness/runner"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

// Options tunes the rendered report.
type Options struct {
	// MaxFailures caps the number of failures rendered in detail, 0 for all.
	MaxFailures int
	// MaxUnfinished caps the number of unfinished cases named, 0 for all.
	MaxUnfinished int
}

// Render writes the textual report of a run: a summary table, then the
// details of every failure and the cases that never ran. The output carries
// ANSI colors; see StripColors.
func Render(w io.Writer, report *runner.Report, opts Options) error {
	var b strings.Builder

	renderSummary(&b, report)
	renderFailures(&b, report, opts.MaxFailures)
	renderUnfinished(&b, report, opts.MaxUnfinished)
	b.WriteString(stopLine(report) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func renderSummary(b *strings.Builder, report *runner.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(b)
	t.SetTitle(fmt.Sprintf("Harness Results: %s (%s, %dx)", report.Mode, formatDuration(report.Duration), report.Threads))
	t.AppendHeader(table.Row{"Result", "Tasks"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Tasks", Align: text.AlignRight},
	})

	t.AppendRow(table.Row{getResultString(types.ResultPassed), len(report.Passed)})
	t.AppendRow(table.Row{getResultString(types.ResultWrongOutput), len(report.WrongOutput)})
	t.AppendRow(table.Row{getResultString(types.ResultFailedExit), len(report.FailedExit)})
	t.AppendRow(table.Row{getResultString(types.ResultTimedOut), len(report.TimedOut)})
	if report.Total > 0 {
		t.AppendRow(table.Row{"- unfinished", len(report.Unfinished)})
	}

	total := fmt.Sprint(report.Finished())
	if report.Total > 0 {
		total = fmt.Sprintf("%d/%d", report.Finished(), report.Total)
	}
	t.AppendFooter(table.Row{"TOTAL", total})

	if report.HasFailures() {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}
	t.Render()
}

func renderFailures(b *strings.Builder, report *runner.Report, limit int) {
	failures := report.Failures()
	if len(failures) == 0 {
		return
	}

	b.WriteString("\n" + text.Colors{text.FgRed, text.Bold}.Sprintf("Failures (%d)", len(failures)) + "\n")
	for i, ft := range failures {
		if limit > 0 && i >= limit {
			b.WriteString(text.FgHiBlack.Sprintf("... and %d more failures", len(failures)-limit) + "\n")
			return
		}
		b.WriteString("\n")
		b.WriteString(FormatFailure(ft))
	}
}

// FormatFailure renders one failed or timed out task.
func FormatFailure(ft runner.FinishedTask) string {
	var b strings.Builder
	name := ft.Task.Name
	if name == "" {
		name = ft.Task.ID.String()
	}
	fmt.Fprintf(&b, "%s %s %s\n",
		text.FgRed.Sprint(getResultString(ft.Status)),
		text.Bold.Sprint(name),
		text.FgHiBlack.Sprintf("(%s, %s)", ft.Task.ID, formatDuration(ft.Outcome.Duration)))

	outcome := ft.Outcome
	switch ft.Status {
	case types.ResultWrongOutput:
		b.WriteString(indent(FormatMismatch(ft.Task.Expected, outcome.Stdout)))
	case types.ResultFailedExit:
		if outcome.Err != nil {
			fmt.Fprintf(&b, "  error: %v\n", outcome.Err)
		} else {
			fmt.Fprintf(&b, "  exit code: %s\n", outcome.ExitCodeString())
		}
	case types.ResultTimedOut:
		fmt.Fprintf(&b, "  timed out after %s\n", formatDuration(ft.Task.Command.Timeout))
	}

	if len(outcome.Stderr) > 0 {
		b.WriteString(text.FgYellow.Sprint("  stderr:") + "\n")
		b.WriteString(indent(indent(string(outcome.Stderr))))
	}
	return b.String()
}

func renderUnfinished(b *strings.Builder, report *runner.Report, limit int) {
	if len(report.Unfinished) == 0 {
		return
	}

	b.WriteString("\n" + text.Colors{text.FgYellow, text.Bold}.Sprintf("Unfinished (%d)", len(report.Unfinished)) + "\n")
	for i, tc := range report.Unfinished {
		if limit > 0 && i >= limit {
			fmt.Fprintf(b, "  ... and %d more\n", len(report.Unfinished)-limit)
			break
		}
		fmt.Fprintf(b, "  %s\n", tc.Name)
	}
}

func stopLine(report *runner.Report) string {
	switch report.Cause {
	case runner.StopInterrupted:
		return text.FgYellow.Sprintf("\nRun %s interrupted after %s", report.RunID, formatDuration(report.Duration))
	case runner.StopRunBudget:
		return text.FgYellow.Sprintf("\nRun %s stopped by its time budget after %s", report.RunID, formatDuration(report.Duration))
	default:
		return text.FgHiBlack.Sprintf("\nRun %s completed in %s", report.RunID, formatDuration(report.Duration))
	}
}

// getResultString returns a symbol-prefixed label for a result bucket
func getResultString(status types.ResultStatus) string {
	switch status {
	case types.ResultPassed:
		return "✓ passed"
	case types.ResultWrongOutput:
		return "✗ wrong output"
	case types.ResultFailedExit:
		return "✗ failed exit"
	case types.ResultTimedOut:
		return "⏱ timed out"
	default:
		return "? unknown"
	}
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

func indent(s string) string {
	if s == "" {
		return ""
	}
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, line := range lines {
		if line == "" {
			continue
		}
		b.WriteString("  " + line)
	}
	if !strings.HasSuffix(s, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}
