// Package runner starts external processes, retrying transient file-lock
// failures and terminating the whole process tree on cancellation.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// ErrLocked reports that a file stayed locked after every retry.
var ErrLocked = errors.New("file locked")

const (
	startAttempts = 5
	startBackoff  = 500 * time.Millisecond
	waitDelay     = 5 * time.Second
)

type RunOptions struct {
	Dir    string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// RunResult holds captured output. ExitCode is -1 when the process never
// produced one (start failure or cancellation).
type RunResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Output returns stdout followed by stderr.
func (r RunResult) Output() string {
	return string(r.Stdout) + string(r.Stderr)
}

// Runner executes a command. A process that ran to completion returns a nil
// error whatever its exit code; errors are reserved for start failures and
// cancellation.
type Runner interface {
	Run(ctx context.Context, command string, args []string, opts RunOptions) (RunResult, error)
}

type CmdRunner struct{}

func (CmdRunner) Run(ctx context.Context, command string, args []string, opts RunOptions) (RunResult, error) {
	var stdoutBuf, stderrBuf bytes.Buffer

	stdoutWriter := io.Writer(&stdoutBuf)
	if opts.Stdout != nil {
		stdoutWriter = io.MultiWriter(&stdoutBuf, opts.Stdout)
	}
	stderrWriter := io.Writer(&stderrBuf)
	if opts.Stderr != nil {
		stderrWriter = io.MultiWriter(&stderrBuf, opts.Stderr)
	}

	var (
		cmd *exec.Cmd
		err error
	)
	for attempt := 1; ; attempt++ {
		cmd = exec.CommandContext(ctx, command, args...)
		if opts.Dir != "" {
			cmd.Dir = opts.Dir
		}
		if len(opts.Env) > 0 {
			cmd.Env = append(os.Environ(), opts.Env...)
		}
		cmd.Stdout = stdoutWriter
		cmd.Stderr = stderrWriter
		cmd.WaitDelay = waitDelay
		configureTree(cmd)

		err = cmd.Start()
		if err == nil {
			break
		}
		if !IsLockError(err) || attempt >= startAttempts {
			result := RunResult{ExitCode: -1}
			if IsLockError(err) {
				return result, fmt.Errorf("start %s: %w: %v", command, ErrLocked, err)
			}
			return result, fmt.Errorf("start %s: %w", command, err)
		}
		if sleepErr := sleepCtx(ctx, startBackoff); sleepErr != nil {
			return RunResult{ExitCode: -1}, sleepErr
		}
	}

	err = cmd.Wait()
	result := RunResult{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes(), ExitCode: -1}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("%s: %w", command, ctxErr)
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return result, fmt.Errorf("%s: %w", command, err)
	}
	return result, nil
}

var _ Runner = CmdRunner{}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
