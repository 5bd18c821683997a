//go:build !windows

package runner

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureTree places the child in its own process group so cancellation
// can signal every descendant.
func configureTree(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			return cmd.Process.Kill()
		}
		return nil
	}
}

// IsLockError reports whether err is a transient file-lock failure.
func IsLockError(err error) bool {
	return errors.Is(err, unix.ETXTBSY)
}

func openExclusive(path string) (*os.File, error) {
	return os.Open(path)
}

func openShared(path string) (*os.File, error) {
	return os.Open(path)
}
