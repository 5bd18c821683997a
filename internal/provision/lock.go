package provision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

var (
	lockPollInterval = 250 * time.Millisecond
	// lockDeadline bounds the wait for another install.
	lockDeadline = 45 * time.Minute
	// lockStaleAge is the age after which a lock is treated as abandoned
	// even if its recorded owner appears alive.
	lockStaleAge = 2 * time.Hour
)

// pidAlive reports whether pid is running. Lookup errors count as alive.
var pidAlive = func(ctx context.Context, pid int32) bool {
	ok, err := process.PidExistsWithContext(ctx, pid)
	return err != nil || ok
}

// ErrLockTimeout is returned when an install lock stays held past lockDeadline.
var ErrLockTimeout = errors.New("timed out waiting for install lock")

// acquireInstallLock serialises installs of the same version across
// concurrent jobs and processes sharing the application directory. Locks
// whose owner is gone or that are older than lockStaleAge are removed.
func (p *Provisioner) acquireInstallLock(ctx context.Context, name string) (func(), error) {
	if err := os.MkdirAll(p.Paths.Root, 0o755); err != nil {
		return nil, fmt.Errorf("prepare app dir: %w", err)
	}

	lockPath := filepath.Join(p.Paths.Root, fmt.Sprintf("install-%s.lock", name))
	deadline := time.Now().Add(lockDeadline)
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
			_ = f.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("acquire install lock: %w", err)
		}
		if p.removeStaleLock(ctx, lockPath) {
			continue
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w %s", ErrLockTimeout, lockPath)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire install lock: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// removeStaleLock deletes lockPath when its owner process is gone or the
// file is older than lockStaleAge, and reports whether it did.
func (p *Provisioner) removeStaleLock(ctx context.Context, lockPath string) bool {
	info, err := os.Stat(lockPath)
	if err != nil {
		// Released between the open and the stat; retry right away.
		return errors.Is(err, os.ErrNotExist)
	}
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return false
	}

	reason := ""
	if pid, err := strconv.ParseInt(string(bytes.TrimSpace(data)), 10, 32); err == nil && pid > 0 && !pidAlive(ctx, int32(pid)) {
		reason = fmt.Sprintf("owner %d is not running", pid)
	} else if age := time.Since(info.ModTime()); age > lockStaleAge {
		reason = fmt.Sprintf("held for %s", age.Round(time.Second))
	}
	if reason == "" {
		return false
	}

	// Only remove the lock that was inspected, not one taken since.
	if current, err := os.ReadFile(lockPath); err != nil || !bytes.Equal(current, data) {
		return false
	}
	p.logf("removing stale install lock %s: %s", lockPath, reason)
	if err := os.Remove(lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logf("remove stale lock %s: %v", lockPath, err)
		return false
	}
	return true
}
