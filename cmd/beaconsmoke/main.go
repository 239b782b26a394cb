package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vk/beacongrid/internal/cli"
	"github.com/vk/beacongrid/internal/ctxlog"
	"github.com/vk/beacongrid/internal/smoke"
)

// main is the entrypoint for the beaconsmoke client.
func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW io.Writer, args []string) error {
	flagSet := flag.NewFlagSet("beaconsmoke", flag.ContinueOnError)
	flagSet.SetOutput(outW)
	flagSet.Usage = cli.Usagef(flagSet, outW, `
beaconsmoke - smoke tester for a beacond endpoint.

Posts a scenario of beacon messages and validates every response. Without
-scenario it runs the built-in fixed sequence.

Options:
`)

	scenarioFlag := flagSet.String("scenario", "", "Path to a scenario .hcl file or a directory of them.")
	sFlag := flagSet.String("s", "", "Path to a scenario .hcl file or a directory of them (shorthand).")
	endpointFlag := flagSet.String("endpoint", "", "Target endpoint. Overrides the scenario's default.")
	watchFlag := flagSet.Bool("watch", false, "Also verify each accepted message on the live Socket.IO channel.")
	logOpts := cli.RegisterLogFlags(flagSet)

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}
	if err := logOpts.Validate(); err != nil {
		return err
	}

	scenarioPath := *scenarioFlag
	if scenarioPath == "" {
		scenarioPath = *sFlag
	}

	var scenario *smoke.Scenario
	if scenarioPath == "" {
		scenario = smoke.Builtin(*endpointFlag)
	} else {
		loaded, err := smoke.Load(scenarioPath)
		if err != nil {
			return &cli.ExitError{Code: 2, Message: err.Error()}
		}
		scenario = loaded
		if *endpointFlag != "" {
			scenario.Endpoint = *endpointFlag
		}
	}

	logger := logOpts.NewLogger(outW)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = ctxlog.WithLogger(ctx, logger)

	var watcher *smoke.Watcher
	if *watchFlag {
		w, err := smoke.NewWatcher(ctx, scenario.Endpoint, scenario.Timeout)
		if err != nil {
			return fmt.Errorf("failed to start watch mode: %w", err)
		}
		defer w.Close()
		watcher = w
	}

	results, runErr := smoke.NewRunner(scenario.Timeout, watcher).Run(ctx, scenario)
	for _, result := range results {
		if result.OK() {
			fmt.Fprintf(outW, "PASS  %s (%d %s, %s)\n", result.Step.Name, result.Status, result.Code, result.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(outW, "FAIL  %s: %v\n", result.Step.Name, result.Err)
		}
	}

	if runErr != nil {
		return &cli.ExitError{Code: 1, Message: runErr.Error()}
	}
	return nil
}
