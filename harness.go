// Package harness runs a command against a catalog of test cases or against
// generated inputs, and reports how every run went.
package harness

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"github.com/ethereum-optimism/infra/op-harness/exitcodes"
	"github.com/ethereum-optimism/infra/op-harness/inputgen"
	"github.com/ethereum-optimism/infra/op-harness/metrics"
	"github.com/ethereum-optimism/infra/op-harness/registry"
	"github.com/ethereum-optimism/infra/op-harness/reporting"
	"github.com/ethereum-optimism/infra/op-harness/runner"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/httputil"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

var _ cliapp.Lifecycle = (*Harness)(nil)

// Harness is a single run of the harness, as a cliapp.Lifecycle: Start runs
// the coordinator to completion, reports, then asks the app to close.
type Harness struct {
	config  *Config
	version string
	log     log.Logger

	coordinator *runner.Coordinator
	sinks       []reporting.ReportSink
	reporter    MetricsReporter

	registry      *prometheus.Registry
	metricsServer *httputil.HTTPServer

	report  *runner.Report
	stopped atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New loads the test source or parses the input template, and wires the
// coordinator, the report sinks and the metrics registry.
func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Harness, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Log == nil {
		config.Log = log.New()
		config.Log.Error("No logger provided, using default")
	}
	if config.Stdout == nil {
		config.Stdout = os.Stdout
	}
	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}

	config.Log.Debug("Creating harness with config",
		"mode", config.Mode,
		"command", config.Command,
		"source", config.Source,
		"threads", config.Threads,
		"timeLimit", config.TimeLimit,
		"duration", config.Duration,
		"seed", config.Seed)

	h := &Harness{
		config:           config,
		version:          version,
		log:              config.Log,
		reporter:         NewDefaultMetricsReporter(),
		shutdownCallback: shutdownCallback,
	}

	source, err := h.newSource()
	if err != nil {
		return nil, err
	}

	coordinator, err := runner.NewCoordinator(runner.Config{
		Log:              config.Log,
		Source:           source,
		Executor:         runner.NewProcessExecutor(config.Log),
		Mode:             config.Mode,
		Threads:          config.Threads,
		RunBudget:        config.Duration,
		RateLimit:        config.Rate,
		Progress:         runner.NewConsoleProgressIndicator(config.Stdout, config.Log),
		ProgressInterval: config.ProgressInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}
	h.coordinator = coordinator

	colors := term.IsTerminal(int(config.Stdout.Fd()))
	h.sinks = append(h.sinks, reporting.NewConsoleSink(config.Stdout, colors, reporting.Options{}))
	if config.ReportFile != "" {
		h.sinks = append(h.sinks, reporting.NewTextFileSink(config.ReportFile, reporting.Options{}))
	}
	if config.Mode == types.ModeFuzz && config.Output != "" {
		h.sinks = append(h.sinks, reporting.NewReplaySink(config.Output, config.Log))
	}

	h.registry = opmetrics.NewRegistry()
	h.registry.MustRegister(metrics.Collectors()...)

	config.Log.Info("harness.New: created coordinator", "runID", coordinator.RunID())
	return h, nil
}

func (h *Harness) newSource() (runner.TaskSource, error) {
	cfg := h.config
	spec := runner.CommandSpec{
		Shell:   cfg.Shell,
		Command: cfg.Command,
		Timeout: cfg.TimeLimit,
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	switch cfg.Mode {
	case types.ModeTest:
		reg, err := registry.NewRegistry(registry.Config{
			Log:    cfg.Log,
			Source: cfg.Source,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create registry: %w", err)
		}
		cases := reg.GetTestCases()
		if len(cases) == 0 {
			cfg.Log.Warn("Test source contains no test cases", "source", cfg.Source, "kind", reg.Kind())
		}
		return runner.NewCatalogSource(cases, spec, rng), nil
	case types.ModeFuzz:
		template, err := inputgen.Parse(cfg.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to parse input template: %w", err)
		}
		cfg.Log.Debug("Parsed input template", "template", template.String(), "kind", template.Kind())
		return runner.NewGenerativeSource(template, spec, rng, cfg.Newline), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

// Start runs the harness once. It returns a TestFailureError when a task
// failed or timed out, and closes the app otherwise.
// Start implements the cliapp.Lifecycle interface.
func (h *Harness) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	h.log.Info("Starting op-harness", "mode", h.config.Mode, "version", h.version, "seed", h.config.Seed)

	if err := h.startMetrics(); err != nil {
		return NewRuntimeError(err)
	}

	report, err := h.coordinator.Run(ctx)
	if err != nil {
		h.log.Error("Runtime error running tasks", "error", err)
		return errors.Join(NewRuntimeError(err), h.stopMetrics(ctx))
	}
	h.report = report
	h.reporter.ReportResults(report)

	for _, sink := range h.sinks {
		if err := sink.Complete(report); err != nil {
			h.log.Error("Failed to write report", "error", err)
			metrics.RecordErrorDetails("report", err)
			return errors.Join(NewRuntimeError(err), h.stopMetrics(ctx))
		}
	}
	h.log.Info("Run completed", "runID", report.RunID, "cause", report.Cause,
		"finished", report.Finished(), "failed", report.Failed())

	if report.HasFailures() {
		h.log.Warn("Run completed with failures, returning exit code 1")
		failed := len(report.WrongOutput) + len(report.FailedExit)
		return errors.Join(NewTestFailureError(failed, len(report.TimedOut)), h.stopMetrics(ctx))
	}

	go func() {
		h.shutdownCallback(nil)
	}()
	return nil
}

func (h *Harness) startMetrics() error {
	metricsCfg := h.config.MetricsConfig
	if !metricsCfg.Enabled {
		return nil
	}
	h.log.Info("Starting metrics server", "addr", metricsCfg.ListenAddr, "port", metricsCfg.ListenPort)
	server, err := opmetrics.StartServer(h.registry, metricsCfg.ListenAddr, metricsCfg.ListenPort)
	if err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	h.log.Info("Started metrics server", "endpoint", server.Addr())
	h.metricsServer = server
	return nil
}

func (h *Harness) stopMetrics(ctx context.Context) error {
	if h.metricsServer == nil {
		return nil
	}
	server := h.metricsServer
	h.metricsServer = nil
	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop metrics server: %w", err)
	}
	return nil
}

// Stop stops the metrics server. Running tasks are never killed: Start only
// returns once they have finished.
// Stop implements the cliapp.Lifecycle interface.
func (h *Harness) Stop(ctx context.Context) error {
	h.log.Info("Stopping op-harness")
	if h.stopped.Swap(true) {
		h.log.Debug("Harness already stopped, nothing to do")
		return nil
	}
	return h.stopMetrics(ctx)
}

// Stopped implements the cliapp.Lifecycle interface.
func (h *Harness) Stopped() bool {
	return h.stopped.Load()
}

// Report returns the report of the last run, nil before Start returned.
func (h *Harness) Report() *runner.Report {
	return h.report
}

// RunID returns the ID of the run.
func (h *Harness) RunID() string {
	return h.coordinator.RunID()
}
