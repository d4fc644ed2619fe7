package harness

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-harness/flags"
	"github.com/ethereum-optimism/infra/op-harness/types"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

// Config holds the application configuration
type Config struct {
	Mode    types.Mode
	Command string // Command string run by Shell for every input
	// Source is the test source in test mode and the input template in fuzz mode.
	Source string

	Shell            string
	TimeLimit        time.Duration // Per-run timeout, 0 for none
	Threads          int
	Duration         time.Duration // Run budget, 0 for none
	ProgressInterval time.Duration
	Seed             uint64
	ReportFile       string // Optional path of the uncolored report

	Output  string  // Replay dump path, fuzz mode only
	Rate    float64 // Max runs started per second, fuzz mode only
	Newline bool    // Append a newline to generated inputs, fuzz mode only

	MetricsConfig opmetrics.CLIConfig
	Log           log.Logger

	// Stdout receives the progress line and the report. Defaults to os.Stdout.
	Stdout *os.File
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger, mode types.Mode, command string, source string) (*Config, error) {
	if mode != types.ModeTest && mode != types.ModeFuzz {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	if command == "" {
		return nil, errors.New("command is required")
	}
	if source == "" {
		if mode == types.ModeFuzz {
			return nil, errors.New("input template is required")
		}
		return nil, errors.New("test source is required")
	}

	timeLimit, err := secondsToDuration(flags.TimeLimit.Name, ctx.Float64(flags.TimeLimit.Name))
	if err != nil {
		return nil, err
	}
	duration, err := secondsToDuration(flags.Duration.Name, ctx.Float64(flags.Duration.Name))
	if err != nil {
		return nil, err
	}

	threads := ctx.Int(flags.Threads.Name)
	if threads <= 0 {
		return nil, fmt.Errorf("threads must be positive, got %d", threads)
	}

	// A test source is a path or a glob; a template is taken verbatim.
	if mode == types.ModeTest {
		source, err = filepath.Abs(source)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for test source: %w", err)
		}
	}

	reportFile, err := absOrEmpty(ctx.String(flags.ReportFile.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for report file: %w", err)
	}

	seed := ctx.Uint64(flags.Seed.Name)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	cfg := &Config{
		Mode:             mode,
		Command:          command,
		Source:           source,
		Shell:            ctx.String(flags.Shell.Name),
		TimeLimit:        timeLimit,
		Threads:          threads,
		Duration:         duration,
		ProgressInterval: ctx.Duration(flags.ProgressInterval.Name),
		Seed:             seed,
		ReportFile:       reportFile,
		MetricsConfig:    opmetrics.ReadCLIConfig(ctx),
		Log:              log,
		Stdout:           os.Stdout,
	}

	if mode == types.ModeFuzz {
		cfg.Output, err = absOrEmpty(ctx.String(flags.Output.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for output: %w", err)
		}
		cfg.Rate = ctx.Float64(flags.Rate.Name)
		if cfg.Rate < 0 || math.IsNaN(cfg.Rate) {
			return nil, fmt.Errorf("rate cannot be negative, got %v", cfg.Rate)
		}
		cfg.Newline = !ctx.Bool(flags.NoNewline.Name)
	}

	return cfg, nil
}

// secondsToDuration converts a flag given in fractional seconds.
func secondsToDuration(name string, seconds float64) (time.Duration, error) {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, fmt.Errorf("%s must be a non-negative number of seconds, got %v", name, seconds)
	}
	if seconds > math.MaxInt64/float64(time.Second) {
		return 0, fmt.Errorf("%s is too large: %v", name, seconds)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func absOrEmpty(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return filepath.Abs(path)
}
