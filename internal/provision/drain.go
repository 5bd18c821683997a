package provision

import (
	"context"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

var (
	drainInterval = time.Second
	drainDeadline = 20 * time.Minute
)

type procInfo struct {
	PID     int32
	Name    string
	Cmdline string
}

var listProcesses = func(ctx context.Context) ([]procInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]procInfo, 0, len(procs))
	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cmdline, _ := proc.CmdlineWithContext(ctx)
		out = append(out, procInfo{PID: proc.Pid, Name: name, Cmdline: cmdline})
	}
	return out, nil
}

var installerNameMarkers = []string{"setup", "installer", "install"}

// installerMatcher matches installer processes carrying token in their name
// or command line.
func installerMatcher(token string) func(procInfo) bool {
	token = strings.ToLower(token)
	return func(pi procInfo) bool {
		name := strings.ToLower(pi.Name)
		if !containsAny(name, installerNameMarkers) {
			return false
		}
		return token == "" || strings.Contains(name, token) || strings.Contains(strings.ToLower(pi.Cmdline), token)
	}
}

// waitInstallersDrained blocks until no process matches, the deadline passes
// or ctx is cancelled. Installers may detach from the process we started, so
// its exit alone does not mean the install finished.
func (p *Provisioner) waitInstallersDrained(ctx context.Context, match func(procInfo) bool) error {
	deadline := time.Now().Add(drainDeadline)
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		procs, err := listProcesses(ctx)
		if err != nil {
			p.logf("list processes: %v", err)
			return nil
		}
		var pending []string
		for _, pi := range procs {
			if match(pi) {
				pending = append(pending, pi.Name)
			}
		}
		if len(pending) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			p.logf("installer processes still running after %s: %s", drainDeadline, strings.Join(pending, ", "))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
