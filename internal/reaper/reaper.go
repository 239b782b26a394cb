// Package reaper locates OS processes by a name pattern and terminates
// them: SIGTERM first, then SIGKILL for anything still alive after the
// grace period. The reaper never signals its own process.
package reaper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vk/beacongrid/internal/ctxlog"
)

// Target is the minimal process surface the reaper needs. The production
// implementation wraps gopsutil; tests substitute fakes.
type Target interface {
	Pid() int32
	Name() string
	Cmdline() string
	Terminate() error
	Kill() error
	Running() (bool, error)
}

// Lister enumerates candidate processes.
type Lister func(ctx context.Context) ([]Target, error)

// Options controls one reap run. Matching has already happened in
// FindMatches by the time Reap runs.
type Options struct {
	// Force skips the graceful phase and sends SIGKILL immediately.
	Force bool
	// DryRun only reports matches without signalling anything.
	DryRun bool
	// Grace is how long terminated processes get to exit before SIGKILL.
	Grace time.Duration
	// Poll is the interval at which survivors are re-checked.
	Poll time.Duration
}

// Outcome classifies what happened to one matched process.
type Outcome string

const (
	// OutcomeMatched is reported in dry-run mode.
	OutcomeMatched Outcome = "matched"
	// OutcomeExited means the process left on SIGTERM within the grace period.
	OutcomeExited Outcome = "exited"
	// OutcomeKilled means SIGKILL was sent (forced, or after the grace period).
	OutcomeKilled Outcome = "killed"
	// OutcomeFailed means signalling the process failed.
	OutcomeFailed Outcome = "failed"
)

// Result is the per-process outcome, reported for every match.
type Result struct {
	PID     int32
	Name    string
	Outcome Outcome
	Err     error
}

// FindMatches lists processes whose name or command line contains the
// pattern, excluding the calling process itself.
func FindMatches(ctx context.Context, list Lister, pattern string, selfPid int32) ([]Target, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("pattern must not be empty")
	}

	targets, err := list(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var matches []Target
	for _, t := range targets {
		if t.Pid() == selfPid {
			continue
		}
		if strings.Contains(t.Name(), pattern) || strings.Contains(t.Cmdline(), pattern) {
			matches = append(matches, t)
		}
	}
	return matches, nil
}

// Reap signals every target per the options and reports per-process
// outcomes. Signals are sent in a simple sequential loop.
func Reap(ctx context.Context, targets []Target, opts Options) []Result {
	logger := ctxlog.FromContext(ctx)

	if opts.DryRun {
		results := make([]Result, 0, len(targets))
		for _, t := range targets {
			logger.Info("Would terminate process.", "pid", t.Pid(), "name", t.Name())
			results = append(results, Result{PID: t.Pid(), Name: t.Name(), Outcome: OutcomeMatched})
		}
		return results
	}

	if opts.Force {
		results := make([]Result, 0, len(targets))
		for _, t := range targets {
			result := Result{PID: t.Pid(), Name: t.Name()}
			if err := t.Kill(); err != nil {
				logger.Error("Failed to kill process.", "pid", t.Pid(), "name", t.Name(), "error", err)
				result.Outcome = OutcomeFailed
				result.Err = err
			} else {
				logger.Info("Killed process.", "pid", t.Pid(), "name", t.Name())
				result.Outcome = OutcomeKilled
			}
			results = append(results, result)
		}
		return results
	}

	return reapGracefully(ctx, targets, opts)
}

// reapGracefully sends SIGTERM to all targets, waits up to the grace period
// for them to exit, then SIGKILLs the stragglers.
func reapGracefully(ctx context.Context, targets []Target, opts Options) []Result {
	logger := ctxlog.FromContext(ctx)

	poll := opts.Poll
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}

	results := make([]Result, len(targets))
	pending := make(map[int]Target, len(targets))

	for i, t := range targets {
		results[i] = Result{PID: t.Pid(), Name: t.Name()}
		if err := t.Terminate(); err != nil {
			logger.Error("Failed to terminate process.", "pid", t.Pid(), "name", t.Name(), "error", err)
			results[i].Outcome = OutcomeFailed
			results[i].Err = err
			continue
		}
		logger.Info("Sent SIGTERM.", "pid", t.Pid(), "name", t.Name())
		pending[i] = t
	}

	deadline := time.Now().Add(opts.Grace)
	for len(pending) > 0 && time.Now().Before(deadline) {
		for i, t := range pending {
			running, err := t.Running()
			if err != nil || !running {
				logger.Info("Process exited after SIGTERM.", "pid", t.Pid(), "name", t.Name())
				results[i].Outcome = OutcomeExited
				delete(pending, i)
			}
		}
		if len(pending) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			// Cancelled mid-wait: escalate immediately rather than leaving
			// half-terminated processes behind.
			deadline = time.Now()
		case <-time.After(poll):
		}
	}

	for i, t := range pending {
		if err := t.Kill(); err != nil {
			logger.Error("Failed to kill process after grace period.", "pid", t.Pid(), "name", t.Name(), "error", err)
			results[i].Outcome = OutcomeFailed
			results[i].Err = err
			continue
		}
		logger.Warn("Grace period expired, killed process.", "pid", t.Pid(), "name", t.Name())
		results[i].Outcome = OutcomeKilled
	}

	return results
}

// Failed counts results that ended in failure.
func Failed(results []Result) int {
	failed := 0
	for _, r := range results {
		if r.Outcome == OutcomeFailed {
			failed++
		}
	}
	return failed
}
