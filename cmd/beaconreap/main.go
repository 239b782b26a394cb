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
	"github.com/vk/beacongrid/internal/reaper"
)

// main is the entrypoint for the beaconreap process terminator.
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
	flagSet := flag.NewFlagSet("beaconreap", flag.ContinueOnError)
	flagSet.SetOutput(outW)
	flagSet.Usage = cli.Usagef(flagSet, outW, `
beaconreap - terminate processes matching a name pattern.

Usage:
  beaconreap [options] PATTERN

Arguments:
  PATTERN
    Substring matched against process names and command lines. The
    reaper's own process is always excluded.

Options:
`)

	forceFlag := flagSet.Bool("force", false, "Send SIGKILL immediately instead of SIGTERM first.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Only list matching processes, signal nothing.")
	graceFlag := flagSet.Duration("grace", 5*time.Second, "How long processes get to exit after SIGTERM before SIGKILL.")
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

	pattern := flagSet.Arg(0)
	if pattern == "" {
		flagSet.Usage()
		return nil
	}

	logger := logOpts.NewLogger(outW)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = ctxlog.WithLogger(ctx, logger)

	matches, err := reaper.FindMatches(ctx, reaper.SystemLister, pattern, int32(os.Getpid()))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		// Nothing to do is a success, not an error.
		fmt.Fprintf(outW, "no processes matching %q\n", pattern)
		return nil
	}

	results := reaper.Reap(ctx, matches, reaper.Options{
		Force:  *forceFlag,
		DryRun: *dryRunFlag,
		Grace:  *graceFlag,
	})
	for _, result := range results {
		if result.Err != nil {
			fmt.Fprintf(outW, "%-8s pid %d (%s): %v\n", result.Outcome, result.PID, result.Name, result.Err)
		} else {
			fmt.Fprintf(outW, "%-8s pid %d (%s)\n", result.Outcome, result.PID, result.Name)
		}
	}

	if failed := reaper.Failed(results); failed > 0 {
		return &cli.ExitError{Code: 1, Message: fmt.Sprintf("failed to terminate %d of %d processes", failed, len(results))}
	}
	return nil
}
