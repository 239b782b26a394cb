package reaper

import (
	"context"

	"github.com/shirou/gopsutil/v4/process"
)

// sysTarget adapts one gopsutil process to the Target interface. Name and
// command line are captured at listing time; both can legitimately be
// unreadable (short-lived or foreign processes), in which case they stay
// empty and simply never match.
type sysTarget struct {
	proc    *process.Process
	name    string
	cmdline string
}

func (t *sysTarget) Pid() int32 { return t.proc.Pid }

func (t *sysTarget) Name() string { return t.name }

func (t *sysTarget) Cmdline() string { return t.cmdline }

func (t *sysTarget) Terminate() error { return t.proc.Terminate() }

func (t *sysTarget) Kill() error { return t.proc.Kill() }

func (t *sysTarget) Running() (bool, error) {
	return t.proc.IsRunning()
}

// SystemLister enumerates the live process table via gopsutil.
func SystemLister(ctx context.Context) ([]Target, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	targets := make([]Target, 0, len(procs))
	for _, p := range procs {
		t := &sysTarget{proc: p}
		t.name, _ = p.NameWithContext(ctx)
		t.cmdline, _ = p.CmdlineWithContext(ctx)
		targets = append(targets, t)
	}
	return targets, nil
}
