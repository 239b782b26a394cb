package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// LogOptions holds the logging flags shared by every beacongrid binary.
type LogOptions struct {
	Level  string
	Format string
}

// RegisterLogFlags attaches the shared -log-level and -log-format flags to a
// flag set and returns the struct they populate.
func RegisterLogFlags(fs *flag.FlagSet) *LogOptions {
	opts := &LogOptions{}
	fs.StringVar(&opts.Format, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	fs.StringVar(&opts.Level, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	return opts
}

// Validate normalizes the options and rejects unknown values with an
// ExitError carrying the conventional usage exit code.
func (o *LogOptions) Validate() error {
	o.Format = strings.ToLower(o.Format)
	if o.Format != "text" && o.Format != "json" {
		return &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	o.Level = strings.ToLower(o.Level)
	switch o.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	return nil
}

// NewLogger creates and configures a new slog.Logger instance from validated
// options. It does not set the global logger, allowing for isolated logger
// instances.
func (o *LogOptions) NewLogger(outW io.Writer) *slog.Logger {
	var level slog.Level
	switch o.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler

	if o.Format == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}

	return slog.New(handler)
}

// Usagef writes a formatted usage banner followed by the flag defaults.
func Usagef(fs *flag.FlagSet, output io.Writer, banner string) func() {
	return func() {
		fmt.Fprint(output, banner)
		fs.PrintDefaults()
	}
}
