package runner

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// ProgressIndicator renders the running totals of a run. Update is called on
// a fixed cadence by the coordinator, Finish once at the end.
type ProgressIndicator interface {
	Update(snap ProgressSnapshot)
	Finish(snap ProgressSnapshot)
}

// noOpProgressIndicator provides a no-op implementation of ProgressIndicator
type noOpProgressIndicator struct{}

// NewNoOpProgressIndicator creates a progress indicator that does nothing
func NewNoOpProgressIndicator() ProgressIndicator {
	return &noOpProgressIndicator{}
}

func (n *noOpProgressIndicator) Update(ProgressSnapshot) {}
func (n *noOpProgressIndicator) Finish(ProgressSnapshot) {}

// NewConsoleProgressIndicator repaints a single line on out when it is a
// terminal, and falls back to periodic log lines otherwise.
func NewConsoleProgressIndicator(out *os.File, logger log.Logger) ProgressIndicator {
	if out != nil && term.IsTerminal(int(out.Fd())) {
		return NewLineProgressIndicator(out)
	}
	return NewLogProgressIndicator(logger, DefaultProgressLogInterval)
}

// lineProgressIndicator repaints one line in place with a carriage return.
type lineProgressIndicator struct {
	out     io.Writer
	lastLen int
}

// NewLineProgressIndicator creates a progress indicator repainting a line on out.
func NewLineProgressIndicator(out io.Writer) ProgressIndicator {
	return &lineProgressIndicator{out: out}
}

func (l *lineProgressIndicator) Update(snap ProgressSnapshot) {
	line := formatProgress(snap)
	pad := l.lastLen - text.RuneWidthWithoutEscSequences(line)
	if pad < 0 {
		pad = 0
	}
	l.lastLen = text.RuneWidthWithoutEscSequences(line)
	_, _ = fmt.Fprintf(l.out, "\r%s%*s", line, pad, "")
}

func (l *lineProgressIndicator) Finish(snap ProgressSnapshot) {
	l.Update(snap)
	_, _ = fmt.Fprintln(l.out)
}

// logProgressIndicator emits progress as log lines, at most once per interval.
type logProgressIndicator struct {
	logger    log.Logger
	interval  time.Duration
	lastLogAt time.Duration
}

// NewLogProgressIndicator creates a progress indicator that logs at most once per interval.
func NewLogProgressIndicator(logger log.Logger, interval time.Duration) ProgressIndicator {
	if interval == 0 {
		interval = DefaultProgressLogInterval
	}
	return &logProgressIndicator{
		logger:   logger,
		interval: interval,
	}
}

func (l *logProgressIndicator) Update(snap ProgressSnapshot) {
	if snap.Elapsed-l.lastLogAt < l.interval {
		return
	}
	l.lastLogAt = snap.Elapsed
	l.log("Progress", snap)
}

func (l *logProgressIndicator) Finish(snap ProgressSnapshot) {
	l.log("Run finished", snap)
}

func (l *logProgressIndicator) log(msg string, snap ProgressSnapshot) {
	l.logger.Info(msg,
		"mode", snap.Mode,
		"finished", snap.Finished,
		"total", snap.Total,
		"passed", snap.Passed,
		"failed", snap.Failed,
		"timedOut", snap.TimedOut,
		"elapsed", snap.Elapsed.Round(time.Millisecond))
}

func formatProgress(snap ProgressSnapshot) string {
	verb := "Testing"
	if snap.Mode == types.ModeFuzz {
		verb = "Fuzzing"
	}
	header := text.Colors{text.FgHiMagenta, text.Bold}.Sprintf("%s (%dx)..", verb, snap.Threads)

	count := text.Colors{text.FgHiBlue, text.Bold}.Sprint(snap.Finished)
	if snap.Total > 0 {
		count = text.Colors{text.FgHiBlue, text.Bold}.Sprintf("%d/%d", snap.Finished, snap.Total)
	}

	return fmt.Sprintf("%s %s %s %s %s %s %s",
		header,
		count,
		text.FgBlue.Sprint("results"),
		text.FgGreen.Sprintf("%d passed", snap.Passed),
		text.FgRed.Sprintf("%d failed", snap.Failed),
		text.FgYellow.Sprintf("%d timed out", snap.TimedOut),
		text.FgHiBlack.Sprintf("[%.1fs]", snap.Elapsed.Seconds()),
	)
}
