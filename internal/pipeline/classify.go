package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"fontbake/internal/runner"
)

// LicensingHint is appended to failures caused by a missing editor license.
const LicensingHint = "Unity could not obtain a license. Open Unity Hub, sign in and activate a (Personal) license, then retry."

const (
	licensingExitCode = 198
	logTailBytes      = 16 << 10
	logTailLines      = 40
)

var licensingMarkers = []string{
	"no valid unity editor license found",
	"com.unity.editor.headless",
	"license is not active",
	"failed to activate/update license",
}

// EditorError reports a non-zero editor exit.
type EditorError struct {
	Phase     Phase
	ExitCode  int
	Licensing bool
	LogPath   string
	LogTail   string
}

func (e *EditorError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "unity %s phase failed with exit code %d", e.Phase, e.ExitCode)
	if e.Licensing {
		b.WriteString(": ")
		b.WriteString(LicensingHint)
	}
	if e.LogPath != "" {
		fmt.Fprintf(&b, " (log: %s)", e.LogPath)
	}
	if e.LogTail != "" {
		b.WriteString("\n--- log tail ---\n")
		b.WriteString(e.LogTail)
	}
	return b.String()
}

// IsLicensingFailure reports whether an exit code or log excerpt points at
// a licensing problem.
func IsLicensingFailure(exitCode int, logTail string) bool {
	if exitCode == licensingExitCode {
		return true
	}
	lower := strings.ToLower(logTail)
	for _, m := range licensingMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	for _, line := range strings.Split(lower, "\n") {
		if strings.Contains(line, "license system") && strings.Contains(line, "error") {
			return true
		}
	}
	return false
}

// classify builds the error for a failed phase from the log file, falling
// back to the captured process output when the log is unreadable.
func classify(ctx context.Context, phase Phase, res runner.RunResult, logPath string) *EditorError {
	logTail := readLogTail(ctx, logPath)
	if logTail == "" {
		logTail = lastLines(res.Output(), logTailLines)
	}
	return &EditorError{
		Phase:     phase,
		ExitCode:  res.ExitCode,
		Licensing: IsLicensingFailure(res.ExitCode, logTail),
		LogPath:   logPath,
		LogTail:   logTail,
	}
}

func readLogTail(ctx context.Context, path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	offset := info.Size() - logTailBytes
	if offset < 0 {
		offset = 0
	}
	data, _, err := runner.ReadFileRange(ctx, path, offset, logTailBytes, runner.Retry{Attempts: 5})
	if err != nil {
		return ""
	}
	return lastLines(string(data), logTailLines)
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimRight(strings.ReplaceAll(text, "\r\n", "\n"), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
