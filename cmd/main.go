package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	harness "github.com/ethereum-optimism/infra/op-harness"
	"github.com/ethereum-optimism/infra/op-harness/exitcodes"
	"github.com/ethereum-optimism/infra/op-harness/flags"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-harness"
	app.Usage = "Run a program against test cases or generated inputs"
	app.Description = "op-harness feeds inputs to a command in parallel and checks what it prints"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Commands = []*cli.Command{
		{
			Name:      "test",
			Usage:     "Run the command against every case of a test source",
			ArgsUsage: "<command> <test-source>",
			Description: "The test source is a directory of <name>.in/<name>.out pairs, a glob matching " +
				"input files, a test document or a YAML catalog.",
			Flags:  cliapp.ProtectFlags(flags.TestFlags()),
			Action: cliapp.LifecycleCmd(run(types.ModeTest)),
		},
		{
			Name:      "fuzz",
			Usage:     "Run the command against generated inputs until interrupted",
			ArgsUsage: "<command> <input-template>",
			Description: "Templates: [a,b] concatenates, {a,b} picks one, (min-max) draws an integer, " +
				"anything else is literal text.",
			Flags:  cliapp.ProtectFlags(flags.AllFuzzFlags()),
			Action: cliapp.LifecycleCmd(run(types.ModeFuzz)),
		},
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if harness.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else if harness.IsTestFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			} else {
				// Unknown errors come from the CLI layer: bad flags or arguments.
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			}
		}
	}

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(mode types.Mode) cliapp.LifecycleAction {
	return func(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
		logCfg := oplog.ReadCLIConfig(ctx)
		log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
		oplog.SetGlobalLogHandler(log.Handler())
		oplog.SetupDefaults()

		if ctx.NArg() != 2 {
			return nil, harness.NewRuntimeError(fmt.Errorf("expected 2 arguments, got %d: usage: %s %s %s",
				ctx.NArg(), ctx.App.Name, ctx.Command.Name, ctx.Command.ArgsUsage))
		}

		cfg, err := harness.NewConfig(ctx, log, mode, ctx.Args().Get(0), ctx.Args().Get(1))
		if err != nil {
			// Wrap in RuntimeError to signal this should exit with code 2
			return nil, harness.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
		}

		cfg.Log.Debug("Config", "config", cfg)

		h, err := harness.New(ctx.Context, cfg, Version, closeApp)
		if err != nil {
			return nil, harness.NewRuntimeError(fmt.Errorf("failed to create harness: %w", err))
		}
		return h, nil
	}
}
