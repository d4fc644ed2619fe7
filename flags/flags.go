package flags

import (
	"runtime"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_HARNESS"

var (
	TimeLimit = &cli.Float64Flag{
		Name:    "time-limit",
		Aliases: []string{"l"},
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TIME_LIMIT"),
		Usage:   "Time limit of a single run in seconds (eg. '0.5'). 0 means no limit.",
	}
	Threads = &cli.IntFlag{
		Name:    "threads",
		Aliases: []string{"t"},
		Value:   runtime.NumCPU(),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "THREADS"),
		Usage:   "Number of runs executed in parallel",
	}
	Duration = &cli.Float64Flag{
		Name:    "duration",
		Aliases: []string{"d"},
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DURATION"),
		Usage:   "Stop starting new runs after this many seconds. 0 means no limit.",
	}
	Shell = &cli.StringFlag{
		Name:    "shell",
		Value:   "sh",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHELL"),
		Usage:   "Shell used to run the command, invoked as '<shell> -c <command>'",
	}
	ProgressInterval = &cli.DurationFlag{
		Name:    "progress-interval",
		Value:   100 * time.Millisecond,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROGRESS_INTERVAL"),
		Usage:   "Interval between repaints of the progress line (e.g. '100ms', '1s')",
	}
	Seed = &cli.Uint64Flag{
		Name:    "seed",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SEED"),
		Usage:   "Seed for test ordering and input generation. 0 picks a time-based seed.",
	}
	ReportFile = &cli.StringFlag{
		Name:    "report-file",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORT_FILE"),
		Usage:   "Also write the final report, without colors, to this path",
	}

	Output = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "OUTPUT"),
		Usage:   "Dump every finished run to this path as a replayable test document",
	}
	Rate = &cli.Float64Flag{
		Name:    "rate",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RATE"),
		Usage:   "Maximum runs started per second. 0 means unlimited.",
	}
	NoNewline = &cli.BoolFlag{
		Name:    "no-newline",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "NO_NEWLINE"),
		Usage:   "Do not append a newline to generated inputs",
	}
)

// RunFlags are accepted by every subcommand.
var RunFlags = []cli.Flag{
	TimeLimit,
	Threads,
	Duration,
	Shell,
	ProgressInterval,
	Seed,
	ReportFile,
}

// FuzzFlags are accepted by the fuzz subcommand only.
var FuzzFlags = []cli.Flag{
	Output,
	Rate,
	NoNewline,
}

// Flags are the application-level flags: logging and metrics.
var Flags []cli.Flag

func init() {
	Flags = append(Flags, oplog.CLIFlags(EnvVarPrefix)...)
	Flags = append(Flags, opmetrics.CLIFlags(EnvVarPrefix)...)
}

// TestFlags returns the flags of the test subcommand.
func TestFlags() []cli.Flag {
	return append([]cli.Flag{}, RunFlags...)
}

// AllFuzzFlags returns the flags of the fuzz subcommand.
func AllFuzzFlags() []cli.Flag {
	return append(append([]cli.Flag{}, RunFlags...), FuzzFlags...)
}
