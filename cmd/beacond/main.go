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

	"github.com/joho/godotenv"

	"github.com/vk/beacongrid/internal/app"
	"github.com/vk/beacongrid/internal/cli"
)

// main is the entrypoint for the beacond ingest service.
func main() {
	// Use a minimal logger until the full one is configured.
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
func run(outW io.Writer, args []string) (err error) {
	flagSet := flag.NewFlagSet("beacond", flag.ContinueOnError)
	flagSet.SetOutput(outW)
	flagSet.Usage = cli.Usagef(flagSet, outW, `
beacond - beacon message ingest service.

Receives tracker beacon messages on POST /api/receive, stores per-device
history, and serves the operator web view on the same port.

Options:
`)

	configFlag := flagSet.String("config", "", "Path to an HCL config file.")
	listenFlag := flagSet.String("listen", "", "Listen address, e.g. ':5000'. Overrides config.")
	storeFlag := flagSet.String("store", "", "Store backend: 'memory', 'snapshot' or 'redis'. Overrides config.")
	snapshotFlag := flagSet.String("snapshot", "", "Snapshot file path for the snapshot backend. Overrides config.")
	redisFlag := flagSet.String("redis", "", "Redis address for the redis backend. Overrides config.")
	noLiveFlag := flagSet.Bool("no-live", false, "Disable the Socket.IO live channel.")
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

	// A .env file is optional; BEACOND_* variables land in the config below.
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded .env file.")
	}

	cfg := app.DefaultConfig()
	if *configFlag != "" {
		if err := cfg.ApplyFile(*configFlag); err != nil {
			return &cli.ExitError{Code: 2, Message: err.Error()}
		}
	}
	cfg.ApplyEnv()
	if *listenFlag != "" {
		cfg.ListenAddr = *listenFlag
	}
	if *storeFlag != "" {
		cfg.StoreBackend = *storeFlag
	}
	if *snapshotFlag != "" {
		cfg.SnapshotPath = *snapshotFlag
	}
	if *redisFlag != "" {
		cfg.RedisAddr = *redisFlag
	}
	if *noLiveFlag {
		cfg.LiveEnabled = false
	}

	logger := logOpts.NewLogger(outW)

	// NewApp panics on critical startup errors; turn those into a clean
	// exit message instead of a stack trace.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("a critical startup error occurred: %v", r)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	beacondApp := app.NewApp(ctx, logger, &cfg)
	return beacondApp.Run(ctx)
}
